// Package chain maintains a node's downstream links and merges their
// aggregate frames with the local snapshot into a single outbound frame.
//
// Links are discovered, never configured: a link goes up when the first
// valid frame arrives on it and down when no frame has arrived for the
// configured number of sampling ticks. Link loss is a topology change, not
// a fault; the lost link's addresses are retired and, from this node's
// point of view, its remote slots are as good as removed.
package chain

import (
	"github.com/negimeister/negicon-v3-fw/types"
	"github.com/negimeister/negicon-v3-fw/wire"
)

type downLink struct {
	up         bool
	node       uint8 // node id reported in the link's frame headers
	epoch      uint8 // last seen downstream topology epoch
	lastSeq    uint8
	staleTicks int
	entries    []types.Entry // latest received contribution
}

// Manager owns the downstream link table of one node. Not safe for
// concurrent use; the node service drives it from its single goroutine.
type Manager struct {
	port    types.LinkPort
	cfg     types.NodeConfig
	links   []downLink
	scratch []types.Entry // parse target, swapped with a link's buffer on success
	keep    []types.Entry // truncation target for over-full outbound frames

	epoch     uint8
	topoDirty bool

	// Diagnostic counters, read by the node service.
	CRCErrors   uint32
	LinkLosses  uint32
	Truncations uint32
}

// NewManager creates a manager for every attach point of port.
func NewManager(port types.LinkPort, cfg types.NodeConfig) *Manager {
	cfg = cfg.WithDefaults()
	m := &Manager{
		port:    port,
		cfg:     cfg,
		links:   make([]downLink, port.Links()),
		scratch: make([]types.Entry, 0, wire.MaxFrameEntries),
		keep:    make([]types.Entry, 0, wire.MaxFrameEntries),
	}
	for i := range m.links {
		m.links[i].entries = make([]types.Entry, 0, wire.MaxFrameEntries)
	}
	return m
}

// Drain consumes all pending link events without blocking. Called at the
// top of each sampling tick, so a frame that arrives after the merge
// deadline for tick N is applied starting at tick N+1, never retroactively.
func (m *Manager) Drain() {
	for {
		select {
		case ev := <-m.port.Events():
			m.Ingest(ev)
		default:
			return
		}
	}
}

// Ingest applies one link event: a received frame or a transfer failure.
func (m *Manager) Ingest(ev types.LinkEvent) {
	if ev.Link < 0 || ev.Link >= len(m.links) {
		return
	}
	l := &m.links[ev.Link]

	if ev.Err != nil || ev.Frame == nil {
		// Failed transfer: leave staleness to age the link out.
		return
	}

	// Parse into the scratch buffer so a frame rejected partway through
	// cannot disturb the link's previous contribution.
	hdr, entries, err := wire.ParseFrame(ev.Frame, m.scratch[:0])
	if err != nil {
		m.CRCErrors++
		return
	}
	m.scratch = l.entries[:0]
	l.entries = entries
	l.staleTicks = 0
	l.lastSeq = hdr.Seq

	if !l.up {
		l.up = true
		l.node = hdr.Node
		l.epoch = hdr.Epoch
		m.markTopoChange()
		return
	}
	if l.node != hdr.Node {
		// A different node appeared on the same attach point.
		l.node = hdr.Node
		l.epoch = hdr.Epoch
		m.markTopoChange()
		return
	}
	if l.epoch != hdr.Epoch {
		// Downstream topology changed below this link.
		l.epoch = hdr.Epoch
		m.markTopoChange()
	}
}

// Tick ages link staleness and merges the local snapshot with every live
// link's latest contribution, in deterministic order: local entries first
// (already in slot order), then each link in attach-point order, depth
// first. The result is appended to dst and returned.
func (m *Manager) Tick(local []types.Entry, dst []types.Entry) []types.Entry {
	for i := range m.links {
		l := &m.links[i]
		if !l.up {
			continue
		}
		l.staleTicks++
		if l.staleTicks > m.cfg.LinkStaleTicks {
			// Link lost: retire its addresses. The remote hotplug
			// machines are unreachable; logically their slots are
			// now removed from this node's point of view.
			l.up = false
			l.entries = l.entries[:0]
			m.LinkLosses++
			m.markTopoChange()
		}
	}

	dst = append(dst, local...)
	for i := range m.links {
		l := &m.links[i]
		if !l.up {
			continue
		}
		for _, e := range l.entries {
			addr, ok := e.Addr.Prepend(l.node)
			if !ok {
				// Deeper than the supported chain depth; drop.
				continue
			}
			dst = append(dst, types.Entry{Addr: addr, Value: e.Value})
		}
	}
	return dst
}

// Encode builds the outbound frame bytes into buf (reused across ticks).
// The node service hands the result to the uplink or, at the root, to the
// report emitter; the buffer is never touched again until the next tick.
// A merged set larger than one frame is truncated, deepest paths first, so
// the node's own slots and its nearest descendants always get through.
func (m *Manager) Encode(buf []byte, seq uint8, entries []types.Entry) ([]byte, error) {
	if len(entries) > wire.MaxFrameEntries {
		entries = m.truncate(entries)
		m.Truncations++
	}
	return wire.AppendFrame(buf[:0], wire.FrameHeader{
		Seq:   seq,
		Node:  m.cfg.NodeID,
		Epoch: m.epoch,
	}, entries)
}

// truncate selects the shallowest MaxFrameEntries entries, preserving their
// relative order within each depth. Local entries (depth 0) survive first,
// then each deeper level until the frame is full.
func (m *Manager) truncate(entries []types.Entry) []types.Entry {
	kept := m.keep[:0]
	for depth := 0; depth <= types.MaxHops; depth++ {
		for _, e := range entries {
			if e.Addr.Depth() != depth {
				continue
			}
			kept = append(kept, e)
			if len(kept) == wire.MaxFrameEntries {
				m.keep = kept
				return kept
			}
		}
	}
	m.keep = kept
	return kept
}

// NoteLocalTopologyChange folds a local hotplug change into the epoch.
func (m *Manager) NoteLocalTopologyChange() { m.markTopoChange() }

// TopologyChanged reports and clears the merged topology-change flag.
func (m *Manager) TopologyChanged() bool {
	d := m.topoDirty
	m.topoDirty = false
	return d
}

// Epoch returns the node's current topology epoch.
func (m *Manager) Epoch() uint8 { return m.epoch }

// LinkUp reports whether downstream link i is alive.
func (m *Manager) LinkUp(i int) bool {
	if i < 0 || i >= len(m.links) {
		return false
	}
	return m.links[i].up
}

func (m *Manager) markTopoChange() {
	m.epoch++
	m.topoDirty = true
}
