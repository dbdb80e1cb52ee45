// services/input/hotplug.go
package input

// Per-slot hotplug lifecycle. The state machine is a single pure transition
// function over (state, event); side effects are returned as an action for
// the engine to carry out, which keeps the lifecycle unit-testable without
// any hardware.

// SlotState is the lifecycle state of one physical slot.
type SlotState uint8

const (
	// StateAbsent: nothing plugged in (or module rejected).
	StateAbsent SlotState = iota
	// StateDetecting: presence seen, debounce window running.
	StateDetecting
	// StateIdentifying: presence confirmed, descriptor being read.
	StateIdentifying
	// StateActive: bound to a driver, sampling enabled.
	StateActive
	// StateRemoved: presence lost while active, teardown in progress.
	StateRemoved
)

func (s SlotState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateDetecting:
		return "detecting"
	case StateIdentifying:
		return "identifying"
	case StateActive:
		return "active"
	case StateRemoved:
		return "removed"
	default:
		return "invalid"
	}
}

// Event is a hotplug input for one slot.
type Event uint8

const (
	// EvPresence: probe saw a device.
	EvPresence Event = iota
	// EvNoPresence: probe saw nothing.
	EvNoPresence
	// EvDebounceElapsed: presence stable for the full debounce window.
	EvDebounceElapsed
	// EvIdentified: descriptor read and matched a registered driver.
	EvIdentified
	// EvIdentifyFailed: descriptor unreadable, timed out, or unknown type.
	EvIdentifyFailed
	// EvTeardownDone: module instance destroyed, address freed.
	EvTeardownDone
)

// Action is the side effect the engine must perform after a transition.
type Action uint8

const (
	ActNone Action = iota
	// ActStartDebounce: reset the slot's debounce countdown.
	ActStartDebounce
	// ActIdentify: read the module descriptor on the next opportunity.
	ActIdentify
	// ActBind: allocate a module instance, capture zero offsets.
	ActBind
	// ActTeardown: destroy the module instance and retire its addresses.
	ActTeardown
)

// Transition is the hotplug step function. Events that do not apply to the
// current state leave it unchanged with ActNone; transient noise therefore
// never escapes the machine.
func Transition(s SlotState, ev Event) (SlotState, Action) {
	switch s {
	case StateAbsent:
		if ev == EvPresence {
			return StateDetecting, ActStartDebounce
		}
	case StateDetecting:
		switch ev {
		case EvNoPresence:
			// Bounce inside the debounce window: treated as noise.
			return StateAbsent, ActNone
		case EvDebounceElapsed:
			return StateIdentifying, ActIdentify
		}
	case StateIdentifying:
		switch ev {
		case EvIdentified:
			return StateActive, ActBind
		case EvIdentifyFailed, EvNoPresence:
			// Unsupported or unreadable module: slot reads as absent and
			// the scanner re-attempts on a later pass.
			return StateAbsent, ActNone
		}
	case StateActive:
		if ev == EvNoPresence {
			return StateRemoved, ActTeardown
		}
	case StateRemoved:
		if ev == EvTeardownDone {
			return StateAbsent, ActNone
		}
	}
	return s, ActNone
}
