// types/types.go
package types

// -----------------------------------------------------------------------------
// Module identity
// -----------------------------------------------------------------------------

// ModuleType is the wire-level type tag read from a module during identify.
type ModuleType uint8

// Known module type tags.
const (
	ModuleButton  ModuleType = 0x01
	ModuleEncoder ModuleType = 0x02
	ModuleFader   ModuleType = 0x03
)

// Descriptor is the identity data read from a newly detected module.
// Immutable once read; re-read only on a fresh identify pass.
type Descriptor struct {
	Type     ModuleType
	Channels uint8
}

// -----------------------------------------------------------------------------
// Addressing
// -----------------------------------------------------------------------------

// MaxHops is the maximum number of chain hops below any node. Together with
// the local node this caps chain depth at MaxHops+1. Fixed so that addresses
// and frames fit fixed-capacity tables with no heap growth.
const MaxHops = 3

// MaxSlots and MaxChannels bound the per-node slot table and the per-module
// channel count (slot and channel share one wire byte, a nibble each).
const (
	MaxSlots    = 16
	MaxChannels = 16
)

// NoNode marks unused path positions in an Address.
const NoNode uint8 = 0xFF

// Address is the global identity of one channel: the node path from the
// observing node down to the owning node, plus slot and channel indices.
// Path entries after the owning node are NoNode. An all-NoNode path means
// the channel is local to the observing node.
type Address struct {
	Path    [MaxHops]uint8
	Slot    uint8
	Channel uint8
}

// Local reports whether the address belongs to the observing node itself.
func (a Address) Local() bool { return a.Path[0] == NoNode }

// Depth returns the number of hops encoded in the path.
func (a Address) Depth() int {
	for i, p := range a.Path {
		if p == NoNode {
			return i
		}
	}
	return MaxHops
}

// Prepend returns the address as seen one hop further upstream, through the
// node with the given id. Returns false if the path is already full.
func (a Address) Prepend(node uint8) (Address, bool) {
	if a.Path[MaxHops-1] != NoNode {
		return a, false
	}
	out := a
	copy(out.Path[1:], a.Path[:MaxHops-1])
	out.Path[0] = node
	return out, true
}

// EmptyPath is the path of a local address.
func EmptyPath() [MaxHops]uint8 { return [MaxHops]uint8{NoNode, NoNode, NoNode} }

// Entry is one (address, value) pair inside an aggregate frame.
type Entry struct {
	Addr  Address
	Value int16
}

// -----------------------------------------------------------------------------
// Bus payloads
// -----------------------------------------------------------------------------

// NodeState is the retained service state document.
type NodeState struct {
	Level  string `json:"level"` // "idle" | "ready" | "error" | "stopped"
	Status string `json:"status"`
	TSms   int64  `json:"ts_ms"`
}

// SlotStatus is the retained per-slot hotplug document.
type SlotStatus struct {
	State    string `json:"state"` // hotplug state name
	Type     uint8  `json:"type,omitempty"`
	Channels uint8  `json:"channels,omitempty"`
	TSms     int64  `json:"ts_ms"`
}

// TopologyInfo is published (retained) whenever the address set changes.
type TopologyInfo struct {
	Epoch     uint32    `json:"epoch"`
	Addresses []Address `json:"addresses"`
	TSms      int64     `json:"ts_ms"`
}

// Diag holds the node's diagnostic counters. Faults never halt the node;
// they are counted and published instead.
type Diag struct {
	SampleOverruns uint32 `json:"sample_overruns"`
	DroppedReports uint32 `json:"dropped_reports"`
	CRCErrors      uint32 `json:"crc_errors"`
	LinkLosses     uint32 `json:"link_losses"`
	IdentifyFails  uint32 `json:"identify_fails"`
	Truncations    uint32 `json:"truncations"`
	TSms           int64  `json:"ts_ms"`
}

// ErrorReply is the generic negative control reply.
type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
