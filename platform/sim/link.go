// platform/sim/link.go
package sim

import (
	"sync/atomic"

	"github.com/negimeister/negicon-v3-fw/types"
)

// LinkPort is the downstream side of a node's chain connectors. Each attach
// point can hand out one Uplink (the virtual cable) for a child node.
type LinkPort struct {
	n      int
	events chan types.LinkEvent
}

// NewLinkPort creates a port with n attach points.
func NewLinkPort(n int) *LinkPort {
	return &LinkPort{n: n, events: make(chan types.LinkEvent, 4*n+4)}
}

func (p *LinkPort) Links() int { return p.n }

// Send is the parent-to-child direction. The chain carries no downstream
// traffic yet, so the simulator accepts and discards it.
func (p *LinkPort) Send(link int, frame []byte) bool { return true }

func (p *LinkPort) Events() <-chan types.LinkEvent { return p.events }

// Attach plugs a virtual cable into attach point link and returns the child
// side. The cable starts connected.
func (p *LinkPort) Attach(link int) *Uplink {
	u := &Uplink{port: p, link: link}
	u.connected.Store(true)
	return u
}

// Uplink is the child side of a virtual cable. Forward drops on a full inbox
// rather than blocking, the same contract the hardware transfer gives.
type Uplink struct {
	port      *LinkPort
	link      int
	connected atomic.Bool
}

func (u *Uplink) Forward(frame []byte) bool {
	if !u.connected.Load() {
		return false
	}
	cp := append([]byte(nil), frame...)
	select {
	case u.port.events <- types.LinkEvent{Link: u.link, Frame: cp}:
		return true
	default:
		return false
	}
}

func (u *Uplink) Connected() bool { return u.connected.Load() }

// SetConnected pulls or reinserts the cable. A disconnected child elects
// itself root; the parent ages the silent link out as a topology change.
func (u *Uplink) SetConnected(c bool) { u.connected.Store(c) }
