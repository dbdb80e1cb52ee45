// types/hal.go
package types

// Hardware abstraction consumed by the engine. Implementations live under
// platform/ (simulated backplane on the host, SPI glue on rp2040). All calls
// are non-blocking at tick granularity; genuinely asynchronous operations
// (link transfers, host reports) complete through channels.

// SlotBus gives access to the physical slots of one node.
type SlotBus interface {
	// Probe performs the challenge/response presence check for a slot.
	Probe(slot uint8) bool

	// ReadIdentity reads the module descriptor of an occupied slot.
	// Errors: wire.ErrCRC, wire.ErrOpcode, errcode.Timeout.
	ReadIdentity(slot uint8) (Descriptor, error)

	// ReadRaw reads one raw channel sample from an active module.
	ReadRaw(slot, channel uint8) (uint16, error)
}

// LinkEvent is delivered into the per-tick inbox of the chain manager.
type LinkEvent struct {
	Link  int    // downstream link index
	Frame []byte // received frame bytes; nil for a failed transfer
	Err   error
}

// LinkPort drives the downstream chain links of one node.
type LinkPort interface {
	// Links is the number of downstream attach points (fixed per board).
	Links() int

	// Send begins an asynchronous frame transfer on a link. It returns
	// false when the link is busy with a previous transfer; the frame for
	// this tick is then dropped (bounded staleness, never queueing).
	Send(link int, frame []byte) bool

	// Events delivers inbound frames and transfer failures.
	Events() <-chan LinkEvent
}

// Uplink hands the merged frame to the upstream neighbour. On hardware this
// loads the SPI slave exchange buffer read by the upstream master.
type Uplink interface {
	// Forward stages the frame for the next upstream exchange. Returns
	// false if the previous frame has not been collected yet.
	Forward(frame []byte) bool

	// Connected reports whether an upstream master has polled recently.
	// A node with no live uplink acts as root.
	Connected() bool
}

// HostTransport is the HID side of the root node.
type HostTransport interface {
	// SubmitReport hands one input report to the host. Returns false when
	// the transport is busy; the report is then dropped for this tick.
	SubmitReport(report []byte) bool

	// OutputReports delivers host-to-device output reports.
	OutputReports() <-chan []byte
}
