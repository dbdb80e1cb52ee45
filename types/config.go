// types/config.go
package types

// NodeConfig configures one chain node. Delivered on the bus as a typed
// payload (or JSON bytes) on topic config/negicon.
type NodeConfig struct {
	// NodeID is the node's chain identity, assigned by configuration or by
	// the simulator; never hardcoded in the engine.
	NodeID uint8 `json:"node_id"`

	// Root forces host-facing behaviour. A node with no upstream link acts
	// as root even when this is false.
	Root bool `json:"root,omitempty"`

	// Slots is the number of physical slots on this node (max MaxSlots).
	Slots int `json:"slots"`

	// TickMS is the sampling tick period in milliseconds. Default 5.
	TickMS int `json:"tick_ms,omitempty"`

	// ScanMS is the hotplug scan period in milliseconds. Default 50.
	ScanMS int `json:"scan_ms,omitempty"`

	// DebounceScans is the number of consecutive scan passes a presence
	// signal must survive before identify starts. Default 2.
	DebounceScans int `json:"debounce_scans,omitempty"`

	// LinkStaleTicks is the number of sampling ticks without a downstream
	// frame after which the link is treated as lost. Default 3.
	LinkStaleTicks int `json:"link_stale_ticks,omitempty"`
}

// WithDefaults returns a copy with zero fields replaced by defaults and
// out-of-range fields clamped.
func (c NodeConfig) WithDefaults() NodeConfig {
	out := c
	if out.Slots <= 0 {
		out.Slots = 1
	}
	if out.Slots > MaxSlots {
		out.Slots = MaxSlots
	}
	if out.TickMS <= 0 {
		out.TickMS = 5
	}
	if out.ScanMS <= 0 {
		out.ScanMS = 50
	}
	if out.DebounceScans <= 0 {
		out.DebounceScans = 2
	}
	if out.LinkStaleTicks <= 0 {
		out.LinkStaleTicks = 3
	}
	return out
}
