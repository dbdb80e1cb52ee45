//go:build rp2040

// Package rp2040 binds the node service's hardware endpoints to the RP2040:
// the slot backplane over SPI with one chip select per slot, chain links
// over the two UARTs, and the host transport over native USB HID.
package rp2040

import (
	"machine"

	"tinygo.org/x/drivers"

	"github.com/negimeister/negicon-v3-fw/drivers/mlx90363"
	"github.com/negimeister/negicon-v3-fw/errcode"
	"github.com/negimeister/negicon-v3-fw/types"
	"github.com/negimeister/negicon-v3-fw/wire"
)

// SlotBus drives the module backplane: a shared SPI bus with one chip select
// line per slot. Every transfer clocks one 8-byte cell each way; the reply
// to a request arrives in the following transfer, so each operation is a
// request transfer plus a clock-out transfer.
//
// A slot can host a module controller speaking the cell protocol or a bare
// MLX90363 sensor. The probe reply opcode tells them apart; MLX slots are
// driven through the sensor driver directly, the way the original backplane
// firmware polls its angle sensors.
type SlotBus struct {
	spi drivers.SPI
	cs  []machine.Pin

	class []uint8 // last probe reply opcode per slot; 0 until a probe succeeds
	mlx   []mlx90363.Device

	challenge uint16
	tx        [wire.CellSize]byte
	rx        [wire.CellSize]byte
}

// NewSlotBus configures the chip selects and returns the backplane. The SPI
// bus must already be configured.
func NewSlotBus(spi drivers.SPI, cs []machine.Pin) *SlotBus {
	b := &SlotBus{
		spi:   spi,
		cs:    cs,
		class: make([]uint8, len(cs)),
		mlx:   make([]mlx90363.Device, len(cs)),
	}
	for i, p := range cs {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.High()
		pin := p
		b.mlx[i] = mlx90363.New(spi, func(sel bool) {
			if sel {
				pin.Low()
			} else {
				pin.High()
			}
		})
	}
	return b
}

func (b *SlotBus) exchange(slot uint8, req []byte) ([]byte, error) {
	p := b.cs[slot]
	p.Low()
	err := b.spi.Tx(req, b.rx[:])
	p.High()
	if err != nil {
		return nil, err
	}
	return b.rx[:], nil
}

func (b *SlotBus) nextChallenge() uint16 {
	b.challenge++
	return b.challenge
}

// Probe issues a challenge and accepts any valid echo, remembering which
// device class answered. An empty slot clocks back idle bytes that fail the
// CRC, which reads as no presence.
func (b *SlotBus) Probe(slot uint8) bool {
	if int(slot) >= len(b.cs) {
		return false
	}
	c := b.nextChallenge()
	if _, err := b.exchange(slot, wire.AppendNop(b.tx[:0], c)); err != nil {
		return false
	}
	rep, err := b.exchange(slot, wire.AppendNop(b.tx[:0], b.nextChallenge()))
	if err != nil {
		return false
	}
	nop, err := wire.ParseNopReply(rep, c)
	if err != nil {
		b.class[slot] = 0
		return false
	}
	b.class[slot] = nop.Opcode
	return true
}

// ReadIdentity asks the module to describe itself. Bare sensors cannot; the
// driver synthesizes their descriptor.
func (b *SlotBus) ReadIdentity(slot uint8) (types.Descriptor, error) {
	if b.class[slot] == wire.OpNopReplyMLX {
		return b.mlx[slot].Identity()
	}
	if _, err := b.exchange(slot, wire.AppendDescribe(b.tx[:0])); err != nil {
		return types.Descriptor{}, err
	}
	rep, err := b.exchange(slot, wire.AppendNop(b.tx[:0], b.nextChallenge()))
	if err != nil {
		return types.Descriptor{}, err
	}
	return wire.ParseDescriptor(rep)
}

// ReadRaw polls one channel for its current raw sample.
func (b *SlotBus) ReadRaw(slot, channel uint8) (uint16, error) {
	if b.class[slot] == wire.OpNopReplyMLX {
		if channel != 0 {
			return 0, errcode.UnknownChannel
		}
		return b.mlx[slot].Sample()
	}
	if _, err := b.exchange(slot, wire.AppendPoll(b.tx[:0], channel)); err != nil {
		return 0, err
	}
	rep, err := b.exchange(slot, wire.AppendNop(b.tx[:0], b.nextChallenge()))
	if err != nil {
		return 0, err
	}
	return wire.ParseSample(rep, channel)
}
