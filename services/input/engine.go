// services/input/engine.go
package input

import (
	"github.com/negimeister/negicon-v3-fw/errcode"
	"github.com/negimeister/negicon-v3-fw/types"
)

// Change notifies the node service that a slot's lifecycle state changed.
type Change struct {
	Slot  uint8
	State SlotState
	Desc  types.Descriptor // valid when State == StateActive
}

// Engine owns the slot table of one node: it runs the hotplug machine from
// the scan tick and the sampler from the sampling tick. It is not safe for
// concurrent use; the node service drives it from a single goroutine.
type Engine struct {
	bus types.SlotBus
	cfg types.NodeConfig

	slots [types.MaxSlots]Slot
	n     uint8

	changes   []Change
	topoDirty bool

	// Diagnostic counters, read by the node service.
	IdentifyFails uint32
	SampleFaults  uint32
}

// New creates an engine for cfg.Slots slots probed over bus.
func New(bus types.SlotBus, cfg types.NodeConfig) *Engine {
	cfg = cfg.WithDefaults()
	return &Engine{
		bus:     bus,
		cfg:     cfg,
		n:       uint8(cfg.Slots),
		changes: make([]Change, 0, types.MaxSlots),
	}
}

// Slots returns the configured slot count.
func (e *Engine) Slots() uint8 { return e.n }

// Slot returns slot i for inspection.
func (e *Engine) Slot(i uint8) *Slot { return &e.slots[i] }

// Changes returns and clears the accumulated lifecycle notifications.
func (e *Engine) Changes() []Change {
	if len(e.changes) == 0 {
		return nil
	}
	out := e.changes
	e.changes = make([]Change, 0, types.MaxSlots)
	return out
}

// TopologyChanged reports and clears the address-set-changed flag.
func (e *Engine) TopologyChanged() bool {
	d := e.topoDirty
	e.topoDirty = false
	return d
}

// -----------------------------------------------------------------------------
// Scan tick (slot scanner + hotplug)
// -----------------------------------------------------------------------------

// Scan runs one hotplug pass: every slot not currently Active is probed for
// presence; newly confirmed slots get an identity read. No channel sampling
// happens here.
func (e *Engine) Scan() {
	for i := uint8(0); i < e.n; i++ {
		s := &e.slots[i]
		switch s.state {
		case StateAbsent:
			if e.bus.Probe(i) {
				e.apply(i, EvPresence)
			}
		case StateDetecting:
			if !e.bus.Probe(i) {
				e.apply(i, EvNoPresence)
				continue
			}
			if s.debounceLeft > 0 {
				s.debounceLeft--
			}
			if s.debounceLeft == 0 {
				e.apply(i, EvDebounceElapsed)
				// Identify in the same pass; the slot never occupies
				// sampling-tick budget while unresolved.
				e.identify(i)
			}
		case StateIdentifying:
			// Only reachable if a previous identify attempt was cut
			// short; retry now.
			e.identify(i)
		}
	}
}

// identify reads the descriptor, resolves a behavior and binds the module.
func (e *Engine) identify(i uint8) {
	desc, err := e.bus.ReadIdentity(i)
	if err != nil {
		e.IdentifyFails++
		e.apply(i, EvIdentifyFailed)
		return
	}
	b, ok := Lookup(desc.Type)
	if !ok || desc.Channels == 0 || desc.Channels > b.MaxChannels || desc.Channels > types.MaxChannels {
		e.IdentifyFails++
		e.apply(i, EvIdentifyFailed)
		return
	}

	m := &Module{Desc: desc, behavior: b, nch: desc.Channels}
	// Capture zero offsets from the current raw readings: a freshly
	// plugged module reports zero, not an arbitrary physical rest value.
	for c := uint8(0); c < m.nch; c++ {
		raw, err := e.bus.ReadRaw(i, c)
		if err != nil {
			e.IdentifyFails++
			e.apply(i, EvIdentifyFailed)
			return
		}
		m.ch[c] = Channel{raw: raw, offset: raw}
	}
	e.slots[i].mod = m
	e.apply(i, EvIdentified)
}

// -----------------------------------------------------------------------------
// Sampling tick
// -----------------------------------------------------------------------------

// sampleFaultLimit is how many consecutive failed sampling passes an Active
// slot survives before presence is considered lost. Sensors that pipeline
// conversions can legitimately miss a single poll; only a sustained run of
// faults means the module is gone.
const sampleFaultLimit = 3

// Sample reads every Active slot's channels once. It mutates channel values
// in place and performs no allocation. A read failure leaves the previous
// values standing; sampleFaultLimit consecutive failed passes tear the slot
// down.
func (e *Engine) Sample() {
	for i := uint8(0); i < e.n; i++ {
		s := &e.slots[i]
		if s.state != StateActive {
			continue
		}
		m := s.mod
		if !m.due() {
			continue
		}
		faulted := false
		for c := uint8(0); c < m.nch; c++ {
			raw, err := e.bus.ReadRaw(i, c)
			if err != nil {
				e.SampleFaults++
				faulted = true
				break
			}
			ch := &m.ch[c]
			ch.raw = raw
			ch.value = m.behavior.Decode(raw, ch.offset)
		}
		if !faulted {
			s.faultStreak = 0
			continue
		}
		s.faultStreak++
		if s.faultStreak >= sampleFaultLimit {
			e.apply(i, EvNoPresence)
		}
	}
}

// Snapshot appends the local contribution to an aggregate frame: one entry
// per active channel, in slot-index then channel-index order. The caller
// passes a reused slice; steady-state sampling stays allocation-free as
// long as it has capacity.
func (e *Engine) Snapshot(dst []types.Entry) []types.Entry {
	for i := uint8(0); i < e.n; i++ {
		s := &e.slots[i]
		if s.state != StateActive {
			continue
		}
		m := s.mod
		for c := uint8(0); c < m.nch; c++ {
			dst = append(dst, types.Entry{
				Addr:  types.Address{Path: types.EmptyPath(), Slot: i, Channel: c},
				Value: m.ch[c].value,
			})
		}
	}
	return dst
}

// Zero resets one channel: the current raw sample becomes the new zero
// offset, so the channel immediately reads 0 regardless of physical state.
func (e *Engine) Zero(slot, channel uint8) error {
	if slot >= e.n {
		return errcode.UnknownSlot
	}
	s := &e.slots[slot]
	if s.state != StateActive {
		return errcode.SlotNotActive
	}
	m := s.mod
	if channel >= m.nch {
		return errcode.UnknownChannel
	}
	ch := &m.ch[channel]
	ch.offset = ch.raw
	ch.value = m.behavior.Decode(ch.raw, ch.offset)
	return nil
}

// -----------------------------------------------------------------------------
// Transition plumbing
// -----------------------------------------------------------------------------

func (e *Engine) apply(i uint8, ev Event) {
	s := &e.slots[i]
	next, act := Transition(s.state, ev)
	if next == s.state && act == ActNone {
		return
	}
	s.state = next

	switch act {
	case ActStartDebounce:
		s.debounceLeft = uint8(e.cfg.DebounceScans)
	case ActBind:
		s.faultStreak = 0
		e.topoDirty = true
	case ActTeardown:
		s.mod = nil
		s.faultStreak = 0
		e.topoDirty = true
	}

	change := Change{Slot: i, State: next}
	if next == StateActive && s.mod != nil {
		change.Desc = s.mod.Desc
	}
	e.changes = append(e.changes, change)

	// Teardown completes immediately: the module instance is gone and the
	// address retirement is signalled through topoDirty.
	if next == StateRemoved {
		e.apply(i, EvTeardownDone)
	}
}
