// services/input/registry.go
package input

import (
	"sync"

	"github.com/negimeister/negicon-v3-fw/types"
)

// DecodeFunc turns a raw channel sample into a reported value relative to
// the channel's zero offset. The reported value is (raw − offset) in the
// module type's own arithmetic: clamped for absolute controls, wrapped for
// rotary ones. Resetting a channel only moves the offset, never the
// physical state.
type DecodeFunc func(raw, offset uint16) int16

// Behavior is the capability-table entry for one module type: how many
// channels it exposes, how raw readings decode, and an optional sampling
// cadence override. New module types are added by registering an entry,
// not by touching the hotplug machine.
type Behavior struct {
	Type types.ModuleType
	Name string

	// MaxChannels caps the descriptor's channel count; a descriptor
	// advertising more is an identify failure.
	MaxChannels uint8

	Decode DecodeFunc

	// CadenceTicks samples the module every N sampling ticks.
	// 0 or 1 means every tick.
	CadenceTicks uint8
}

var (
	muBehaviors sync.RWMutex
	behaviors   = map[types.ModuleType]Behavior{}
)

// Register installs the behavior for a module type. It panics on duplicate
// registration to catch mistakes at start-up.
func Register(b Behavior) {
	muBehaviors.Lock()
	defer muBehaviors.Unlock()
	if b.Decode == nil {
		panic("input: behavior without decode function")
	}
	if _, exists := behaviors[b.Type]; exists {
		panic("input: behavior already registered for type " + b.Name)
	}
	behaviors[b.Type] = b
}

// Lookup finds the behavior for a descriptor's type tag. Unknown tags are
// reported to the hotplug machine as identify failures, never as faults.
func Lookup(t types.ModuleType) (Behavior, bool) {
	muBehaviors.RLock()
	defer muBehaviors.RUnlock()
	b, ok := behaviors[t]
	return b, ok
}
