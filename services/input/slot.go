// services/input/slot.go
package input

import (
	"github.com/negimeister/negicon-v3-fw/types"
)

// Channel is the smallest addressable input unit inside a module.
//
// Invariant: value == Decode(raw, offset). Zeroing a channel rewrites only
// the offset, so software state can never permanently desynchronize from the
// physical device; a power cycle or explicit re-zero always recovers a known
// mapping.
type Channel struct {
	raw    uint16
	offset uint16
	value  int16
}

// Value returns the current reported value.
func (c *Channel) Value() int16 { return c.value }

// Module is a bound, active module instance: descriptor, behavior and
// per-channel runtime state. Created on entry to Active, destroyed on
// teardown. Exclusively owned by its slot.
type Module struct {
	Desc     types.Descriptor
	behavior Behavior
	nch      uint8
	ch       [types.MaxChannels]Channel
	phase    uint8 // cadence phase counter
}

// Channels returns the bound channel count.
func (m *Module) Channels() uint8 { return m.nch }

// Channel returns channel i, or nil when out of range.
func (m *Module) Channel(i uint8) *Channel {
	if i >= m.nch {
		return nil
	}
	return &m.ch[i]
}

// due reports whether the module samples on this tick, honouring the
// behavior's cadence override.
func (m *Module) due() bool {
	if m.behavior.CadenceTicks <= 1 {
		return true
	}
	m.phase++
	if m.phase >= m.behavior.CadenceTicks {
		m.phase = 0
		return true
	}
	return false
}

// Slot is one physical attachment point. Owned exclusively by its node's
// engine; mutated only by the hotplug machine and the sampler, both of
// which run on the node's single service goroutine.
type Slot struct {
	state        SlotState
	debounceLeft uint8
	faultStreak  uint8
	mod          *Module
}

// State returns the slot's hotplug state.
func (s *Slot) State() SlotState { return s.state }

// Module returns the bound module instance, nil unless Active.
func (s *Slot) Module() *Module { return s.mod }
