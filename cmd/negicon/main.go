//go:build rp2040

// Firmware entry point for a Negicon chain node on the RP2040.
//
// Build for the root board (USB, downstream UARTs):
//
//	tinygo flash -target=pico -tags=negicon_root ./cmd/negicon
//
// Leaf boards omit the tag and talk upstream over UART0.
package main

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"github.com/negimeister/negicon-v3-fw/bus"
	"github.com/negimeister/negicon-v3-fw/platform/rp2040"
	"github.com/negimeister/negicon-v3-fw/services/config"
	"github.com/negimeister/negicon-v3-fw/services/node"

	_ "github.com/negimeister/negicon-v3-fw/services/input/modules/button"
	_ "github.com/negimeister/negicon-v3-fw/services/input/modules/encoder"
	_ "github.com/negimeister/negicon-v3-fw/services/input/modules/fader"
)

// Backplane chip selects, one per slot, in slot order.
var slotCS = []machine.Pin{
	machine.GP2, machine.GP3, machine.GP4,
	machine.GP5, machine.GP6, machine.GP7,
	machine.GP8, machine.GP9, machine.GP10,
}

func main() {
	time.Sleep(500 * time.Millisecond)
	ctx := context.Background()

	machine.SPI0.Configure(machine.SPIConfig{
		Frequency: 2_000_000,
		Mode:      3,
	})

	_ = uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: rp2040.LinkBaud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	_ = uartx.UART1.Configure(uartx.UARTConfig{
		BaudRate: rp2040.LinkBaud,
		TX:       machine.UART1_TX_PIN,
		RX:       machine.UART1_RX_PIN,
	})

	b := bus.NewBus(8)

	deps := node.Deps{
		SlotBus: rp2040.NewSlotBus(machine.SPI0, slotCS),
	}
	if isRootBoard {
		deps.LinkPort = rp2040.NewLinkPort(ctx, []*uartx.UART{uartx.UART0, uartx.UART1})
		deps.Host = rp2040.NewHostTransport()
	} else {
		deps.LinkPort = rp2040.NewLinkPort(ctx, []*uartx.UART{uartx.UART1})
		deps.Uplink = rp2040.NewUplink(uartx.UART0)
	}

	// Host-requested reboot into the UF2 bootloader.
	bootConn := b.NewConnection("boot")
	bootSub := bootConn.Subscribe(bus.T("negicon", "boot"))
	go func() {
		<-bootSub.Channel()
		machine.EnterBootloader()
	}()

	go node.Run(ctx, b.NewConnection("negicon"), deps)

	cfgCtx := context.WithValue(ctx, config.CtxBoardKey, boardName)
	config.NewConfigService().Start(cfgCtx, b.NewConnection("config"))

	select {}
}
