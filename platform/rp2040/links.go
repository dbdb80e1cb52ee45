//go:build rp2040

// platform/rp2040/links.go
package rp2040

import (
	"context"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"github.com/negimeister/negicon-v3-fw/types"
	"github.com/negimeister/negicon-v3-fw/wire"
)

// LinkBaud is the chain UART rate. One full frame at 5 ms ticks needs well
// under this; headroom covers resync after a glitch.
const LinkBaud = 921600

// LinkPort receives downstream aggregate frames, one UART per attach point.
// A reader goroutine per UART reassembles cell-aligned frames from the byte
// stream and posts them as link events; a corrupted stretch is skipped one
// byte at a time until a header cell checks out again.
type LinkPort struct {
	uarts  []*uartx.UART
	events chan types.LinkEvent
}

// NewLinkPort starts a frame reader for every downstream UART.
func NewLinkPort(ctx context.Context, uarts []*uartx.UART) *LinkPort {
	p := &LinkPort{
		uarts:  uarts,
		events: make(chan types.LinkEvent, 2*len(uarts)+2),
	}
	for i, u := range uarts {
		go p.readLoop(ctx, i, u)
	}
	return p
}

func (p *LinkPort) Links() int { return len(p.uarts) }

// Send transmits a frame downstream. The chain carries no downstream
// traffic yet; kept for symmetry with the host simulator's port.
func (p *LinkPort) Send(link int, frame []byte) bool {
	if link < 0 || link >= len(p.uarts) {
		return false
	}
	n, err := p.uarts[link].Write(frame)
	return err == nil && n == len(frame)
}

func (p *LinkPort) Events() <-chan types.LinkEvent { return p.events }

func (p *LinkPort) readLoop(ctx context.Context, link int, u *uartx.UART) {
	buf := make([]byte, 0, 2*wire.MaxFrameSize)
	tmp := make([]byte, 64)

	for {
		n, err := u.RecvSomeContext(ctx, tmp)
		if err != nil {
			return
		}
		buf = append(buf, tmp[:n]...)

		for len(buf) >= wire.CellSize {
			hdr := buf[:wire.CellSize]
			if wire.Check(hdr) != nil || hdr[0] != wire.OpFrame {
				// Not frame-aligned; slide one byte and retry.
				buf = buf[1:]
				continue
			}
			need := (1 + int(hdr[2])) * wire.CellSize
			if need > wire.MaxFrameSize {
				buf = buf[1:]
				continue
			}
			if len(buf) < need {
				break
			}
			frame := make([]byte, need)
			copy(frame, buf[:need])
			buf = buf[need:]

			select {
			case p.events <- types.LinkEvent{Link: link, Frame: frame}:
			default:
				// Inbox full: the node is behind; newest frame loses,
				// staleness accounting covers the gap.
			}
		}

		// Reclaim capacity once the slice head has drifted far.
		if cap(buf)-len(buf) < wire.CellSize {
			fresh := make([]byte, len(buf), 2*wire.MaxFrameSize)
			copy(fresh, buf)
			buf = fresh
		}
	}
}

// Uplink transmits this node's merged frame to its parent over one UART.
// Physical attachment is not detectable from the UART alone; boards without
// an upstream connector run with a nil uplink and the root config flag.
type Uplink struct {
	u *uartx.UART
}

func NewUplink(u *uartx.UART) *Uplink { return &Uplink{u: u} }

func (l *Uplink) Forward(frame []byte) bool {
	n, err := l.u.Write(frame)
	return err == nil && n == len(frame)
}

func (l *Uplink) Connected() bool { return true }
