// platform/sim/host.go
package sim

import (
	"sync/atomic"
)

// Host is a channel-backed stand-in for the USB HID endpoint.
type Host struct {
	in   chan []byte
	out  chan []byte
	busy atomic.Bool

	// Dropped counts reports refused because the inbox was full or the
	// endpoint was forced busy.
	Dropped atomic.Uint32
}

func NewHost() *Host {
	return &Host{
		in:  make(chan []byte, 64),
		out: make(chan []byte, 8),
	}
}

// SetBusy forces SubmitReport to refuse, for exercising the drop path.
func (h *Host) SetBusy(b bool) { h.busy.Store(b) }

func (h *Host) SubmitReport(report []byte) bool {
	if h.busy.Load() {
		h.Dropped.Add(1)
		return false
	}
	cp := append([]byte(nil), report...)
	select {
	case h.in <- cp:
		return true
	default:
		h.Dropped.Add(1)
		return false
	}
}

func (h *Host) OutputReports() <-chan []byte { return h.out }

// Reports exposes the device-to-host direction for the console and tests.
func (h *Host) Reports() <-chan []byte { return h.in }

// Inject delivers a host-to-device output report.
func (h *Host) Inject(report []byte) {
	cp := append([]byte(nil), report...)
	h.out <- cp
}
