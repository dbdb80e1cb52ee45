// Package sim provides in-memory implementations of the hardware endpoints:
// a slot bus with pluggable fake modules, link port/uplink pairs joined by a
// virtual cable, and a host transport backed by channels. The node service
// runs unmodified on top of them, which is how the simulator and the
// integration tests exercise the full firmware without a board.
package sim

import (
	"sync"

	"github.com/negimeister/negicon-v3-fw/errcode"
	"github.com/negimeister/negicon-v3-fw/types"
)

type simModule struct {
	present bool
	desc    types.Descriptor
	raw     [types.MaxChannels]uint16
	faulty  bool // identity reads fail
}

// SlotBus is a slot backplane whose modules are plugged and moved from test
// or console goroutines while the node service samples concurrently.
type SlotBus struct {
	mu    sync.Mutex
	slots [types.MaxSlots]simModule
}

func NewSlotBus() *SlotBus { return &SlotBus{} }

// Plug inserts a module. Raw readings start at initial on every channel.
func (b *SlotBus) Plug(slot uint8, desc types.Descriptor, initial uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := &b.slots[slot]
	m.present = true
	m.desc = desc
	m.faulty = false
	for i := range m.raw {
		m.raw[i] = initial
	}
}

// Unplug removes the module from a slot.
func (b *SlotBus) Unplug(slot uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[slot] = simModule{}
}

// SetFaulty makes identity reads on a slot fail while presence stays up,
// modelling a module that answers the probe but not the descriptor read.
func (b *SlotBus) SetFaulty(slot uint8, faulty bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[slot].faulty = faulty
}

// SetRaw sets one channel's raw reading.
func (b *SlotBus) SetRaw(slot, channel uint8, raw uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[slot].raw[channel] = raw
}

// Move adjusts one channel's raw reading by delta, wrapping in uint16 space.
func (b *SlotBus) Move(slot, channel uint8, delta int16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[slot].raw[channel] += uint16(delta)
}

func (b *SlotBus) Probe(slot uint8) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slots[slot].present
}

func (b *SlotBus) ReadIdentity(slot uint8) (types.Descriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := &b.slots[slot]
	if !m.present || m.faulty {
		return types.Descriptor{}, errcode.Timeout
	}
	return m.desc, nil
}

func (b *SlotBus) ReadRaw(slot, channel uint8) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := &b.slots[slot]
	if !m.present {
		return 0, errcode.Timeout
	}
	return m.raw[channel], nil
}
