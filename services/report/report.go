// Package report converts the root node's fully merged aggregate frame
// into host-facing HID input reports. Each report carries one 8-byte input
// event cell (compact channel id, value, controller, sequence). The emitter
// never blocks on the transport: when the host is not ready the report for
// this tick is dropped and counted, never queued.
package report

import (
	"github.com/negimeister/negicon-v3-fw/types"
	"github.com/negimeister/negicon-v3-fw/wire"
)

// USB identity of the controller.
const (
	VendorID  = 0x1209
	ProductID = 0x3939

	Manufacturer = "LeekLabs International"
	Product      = "Negicon v3"
	SerialNumber = "3939"
)

// HIDDescriptor is the report descriptor: vendor-defined 8-byte input and
// output reports.
var HIDDescriptor = []byte{
	0x05, 0x01, // USAGE_PAGE (Generic Desktop)
	0x09, 0x00, // USAGE (Undefined)
	0xa1, 0x01, // COLLECTION (Application)
	0x09, 0x01, //   USAGE (Pointer)
	0xa1, 0x00, //   COLLECTION (Physical)
	0x09, 0x02, //     USAGE (Undefined)
	0x15, 0x00, //     LOGICAL_MINIMUM (0)
	0x26, 0xFF, 0x00, // LOGICAL_MAXIMUM (255)
	0x75, 0x08, //     REPORT_SIZE (8)
	0x95, 0x08, //     REPORT_COUNT (8)
	0x81, 0x02, //     INPUT (Data,Var,Abs)
	0x09, 0x03, //     USAGE (Undefined)
	0x15, 0x00, //     LOGICAL_MINIMUM (0)
	0x26, 0xFF, 0x00, // LOGICAL_MAXIMUM (255)
	0x75, 0x08, //     REPORT_SIZE (8)
	0x95, 0x08, //     REPORT_COUNT (8)
	0x91, 0x02, //     OUTPUT (Data,Var,Abs)
	0xc0, //   END_COLLECTION
	0xc0, // END_COLLECTION
}

// Output report opcodes (byte 0 of a host-to-device report).
const (
	OutBoot = 0x39 // reset to bootloader
	OutZero = 0x5A // re-zero the channel named by bytes 1..2 (big endian id)
)

// Output is a decoded host output report.
type Output struct {
	Boot bool
	Zero bool
	ID   uint16
}

// ParseOutput decodes a host output report. Unknown opcodes return ok=false.
func ParseOutput(b []byte) (Output, bool) {
	if len(b) == 0 {
		return Output{}, false
	}
	switch b[0] {
	case OutBoot:
		return Output{Boot: true}, true
	case OutZero:
		if len(b) < 3 {
			return Output{}, false
		}
		return Output{Zero: true, ID: uint16(b[1])<<8 | uint16(b[2])}, true
	default:
		return Output{}, false
	}
}

// Emitter assigns compact ids to global addresses and reports value changes
// to the host. Ids are recomputed only on topology change; a surviving
// address keeps its id, so the host's view is never silently renumbered
// while modules stay plugged in.
type Emitter struct {
	host       types.HostTransport
	controller uint8

	ids    map[types.Address]uint16
	byID   map[uint16]types.Address
	prev   map[uint16]int16
	nextID uint16
	dirty  bool // force a full refresh after a topology change

	seq uint8
	buf [wire.CellSize]byte

	// DroppedReports counts transport-busy ticks.
	DroppedReports uint32
}

// NewEmitter creates an emitter for the given host transport. controller is
// the root node's id, stamped into every event cell.
func NewEmitter(host types.HostTransport, controller uint8) *Emitter {
	return &Emitter{
		host:       host,
		controller: controller,
		ids:        map[types.Address]uint16{},
		byID:       map[uint16]types.Address{},
		prev:       map[uint16]int16{},
	}
}

// Rebuild recomputes the address book after a topology change. Surviving
// addresses keep their ids; vanished ones are retired; new ones get fresh
// ids in frame (depth-first) order. All channels are re-reported on the
// next Emit so the host resynchronizes.
func (e *Emitter) Rebuild(entries []types.Entry) {
	seen := make(map[types.Address]bool, len(entries))
	for _, en := range entries {
		seen[en.Addr] = true
		if _, ok := e.ids[en.Addr]; !ok {
			id := e.nextID
			e.nextID++
			e.ids[en.Addr] = id
			e.byID[id] = en.Addr
		}
	}
	for addr, id := range e.ids {
		if !seen[addr] {
			delete(e.ids, addr)
			delete(e.byID, id)
			delete(e.prev, id)
		}
	}
	e.dirty = true
}

// Resolve maps a compact id back to its global address.
func (e *Emitter) Resolve(id uint16) (types.Address, bool) {
	a, ok := e.byID[id]
	return a, ok
}

// Addresses returns the current address set, for topology notifications.
func (e *Emitter) Addresses(dst []types.Address) []types.Address {
	for addr := range e.ids {
		dst = append(dst, addr)
	}
	return dst
}

// Emit reports changed channels from the merged frame, one event cell per
// report. After a Rebuild every channel is reported once regardless of
// change, so a freshly attached module shows up with its initial zero.
func (e *Emitter) Emit(entries []types.Entry) {
	for _, en := range entries {
		id, ok := e.ids[en.Addr]
		if !ok {
			continue // not in the book until the next Rebuild
		}
		last, seen := e.prev[id]
		if !e.dirty && seen && last == en.Value {
			continue
		}
		if !e.submit(id, en.Value, en.Addr) {
			// Host busy: drop this tick's remaining changes too; the
			// next tick re-diffs from prev, so nothing is lost except
			// freshness, which is bounded by one tick.
			e.DroppedReports++
			return
		}
		e.prev[id] = en.Value
	}
	e.dirty = false
}

func (e *Emitter) submit(id uint16, value int16, addr types.Address) bool {
	controller := e.controller
	if d := addr.Depth(); d > 0 {
		controller = addr.Path[d-1]
	}
	cell := wire.AppendEvent(e.buf[:0], wire.Event{
		ID:         id,
		Value:      value,
		Controller: controller,
		Seq:        e.seq,
	})
	if !e.host.SubmitReport(cell) {
		return false
	}
	e.seq++
	return true
}
