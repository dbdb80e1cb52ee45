// services/chain/chain_test.go
package chain

import (
	"testing"

	"github.com/negimeister/negicon-v3-fw/types"
	"github.com/negimeister/negicon-v3-fw/wire"
)

type fakeLinkPort struct {
	n      int
	events chan types.LinkEvent
}

func newFakeLinkPort(n int) *fakeLinkPort {
	return &fakeLinkPort{n: n, events: make(chan types.LinkEvent, 8)}
}

func (f *fakeLinkPort) Links() int                        { return f.n }
func (f *fakeLinkPort) Send(link int, frame []byte) bool  { return true }
func (f *fakeLinkPort) Events() <-chan types.LinkEvent    { return f.events }

func (f *fakeLinkPort) push(link int, frame []byte) {
	f.events <- types.LinkEvent{Link: link, Frame: frame}
}

func mkFrame(t *testing.T, node, epoch, seq uint8, entries []types.Entry) []byte {
	t.Helper()
	b, err := wire.AppendFrame(nil, wire.FrameHeader{Seq: seq, Node: node, Epoch: epoch}, entries)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func localEntry(slot, channel uint8, v int16) types.Entry {
	return types.Entry{
		Addr:  types.Address{Path: types.EmptyPath(), Slot: slot, Channel: channel},
		Value: v,
	}
}

func newTestManager(t *testing.T, links int) (*Manager, *fakeLinkPort) {
	t.Helper()
	p := newFakeLinkPort(links)
	m := NewManager(p, types.NodeConfig{NodeID: 1, Slots: 4})
	return m, p
}

func TestLinkDiscoveryAndMerge(t *testing.T) {
	m, p := newTestManager(t, 2)

	p.push(1, mkFrame(t, 7, 0, 0, []types.Entry{localEntry(2, 0, 5)}))
	m.Drain()

	if !m.LinkUp(1) {
		t.Fatal("link 1 should be up after first valid frame")
	}
	if m.LinkUp(0) {
		t.Fatal("link 0 never spoke, must stay down")
	}
	if !m.TopologyChanged() {
		t.Fatal("link discovery is a topology change")
	}

	local := []types.Entry{localEntry(0, 0, -3)}
	merged := m.Tick(local, nil)
	if len(merged) != 2 {
		t.Fatalf("merged length %d, want 2", len(merged))
	}
	if merged[0] != local[0] {
		t.Fatalf("local entry must come first, got %+v", merged[0])
	}
	want := types.Address{Path: [types.MaxHops]uint8{7, types.NoNode, types.NoNode}, Slot: 2, Channel: 0}
	if merged[1].Addr != want || merged[1].Value != 5 {
		t.Fatalf("remote entry %+v, want addr %v value 5", merged[1], want)
	}
}

func TestMergeOrderByAttachPoint(t *testing.T) {
	m, p := newTestManager(t, 2)

	// Link 1 speaks first; merge order still follows attach-point index.
	p.push(1, mkFrame(t, 7, 0, 0, []types.Entry{localEntry(0, 0, 11)}))
	p.push(0, mkFrame(t, 9, 0, 0, []types.Entry{localEntry(0, 0, 22)}))
	m.Drain()

	merged := m.Tick(nil, nil)
	if len(merged) != 2 {
		t.Fatalf("merged length %d, want 2", len(merged))
	}
	if merged[0].Addr.Path[0] != 9 || merged[1].Addr.Path[0] != 7 {
		t.Fatalf("merge order %v then %v, want node 9 then node 7",
			merged[0].Addr, merged[1].Addr)
	}
}

func TestStaleLinkLoss(t *testing.T) {
	m, p := newTestManager(t, 1)

	p.push(0, mkFrame(t, 7, 0, 0, []types.Entry{localEntry(0, 0, 1)}))
	m.Drain()
	m.TopologyChanged()

	// Staleness accumulates one tick at a time; the link survives the
	// configured window and dies on the tick after it.
	for i := 0; i < 3; i++ {
		m.Tick(nil, nil)
		if !m.LinkUp(0) {
			t.Fatalf("link died after %d silent ticks, window is 3", i+1)
		}
	}
	merged := m.Tick(nil, nil)
	if m.LinkUp(0) {
		t.Fatal("link should be down past the staleness window")
	}
	if len(merged) != 0 {
		t.Fatalf("lost link's entries still merged: %v", merged)
	}
	if m.LinkLosses != 1 {
		t.Fatalf("LinkLosses = %d, want 1", m.LinkLosses)
	}
	if !m.TopologyChanged() {
		t.Fatal("link loss is a topology change")
	}
}

func TestFrameRefreshResetsStaleness(t *testing.T) {
	m, p := newTestManager(t, 1)

	p.push(0, mkFrame(t, 7, 0, 0, nil))
	m.Drain()
	m.Tick(nil, nil)
	m.Tick(nil, nil)

	p.push(0, mkFrame(t, 7, 0, 1, nil))
	m.Drain()
	for i := 0; i < 3; i++ {
		m.Tick(nil, nil)
	}
	if !m.LinkUp(0) {
		t.Fatal("refreshed link must restart its staleness window")
	}
}

func TestCorruptFrameKeepsPrevious(t *testing.T) {
	m, p := newTestManager(t, 1)

	p.push(0, mkFrame(t, 7, 0, 0, []types.Entry{localEntry(1, 0, 42)}))
	m.Drain()
	m.TopologyChanged()

	bad := mkFrame(t, 7, 0, 1, []types.Entry{localEntry(1, 0, 99)})
	bad[12] ^= 0xFF
	p.push(0, bad)
	m.Drain()

	if m.CRCErrors != 1 {
		t.Fatalf("CRCErrors = %d, want 1", m.CRCErrors)
	}
	merged := m.Tick(nil, nil)
	if len(merged) != 1 || merged[0].Value != 42 {
		t.Fatalf("corrupt frame must not replace the previous contribution, got %v", merged)
	}
	if m.TopologyChanged() {
		t.Fatal("a dropped frame is not a topology change")
	}
}

func TestDepthOverflowDropped(t *testing.T) {
	m, p := newTestManager(t, 1)

	deep := types.Entry{
		Addr:  types.Address{Path: [types.MaxHops]uint8{3, 4, 5}, Slot: 0, Channel: 0},
		Value: 1,
	}
	p.push(0, mkFrame(t, 7, 0, 0, []types.Entry{deep, localEntry(0, 0, 2)}))
	m.Drain()

	merged := m.Tick(nil, nil)
	if len(merged) != 1 {
		t.Fatalf("merged length %d, want 1 (deep entry dropped)", len(merged))
	}
	if merged[0].Addr.Path[0] != 7 || merged[0].Value != 2 {
		t.Fatalf("unexpected surviving entry %+v", merged[0])
	}
}

func TestDownstreamEpochChange(t *testing.T) {
	m, p := newTestManager(t, 1)

	p.push(0, mkFrame(t, 7, 0, 0, nil))
	m.Drain()
	m.TopologyChanged()
	before := m.Epoch()

	p.push(0, mkFrame(t, 7, 1, 1, nil))
	m.Drain()
	if !m.TopologyChanged() {
		t.Fatal("downstream epoch bump must propagate as a topology change")
	}
	if m.Epoch() == before {
		t.Fatal("local epoch must advance on downstream topology change")
	}
}

func TestNodeSwapOnAttachPoint(t *testing.T) {
	m, p := newTestManager(t, 1)

	p.push(0, mkFrame(t, 7, 0, 0, []types.Entry{localEntry(0, 0, 1)}))
	m.Drain()
	m.TopologyChanged()

	p.push(0, mkFrame(t, 8, 0, 0, []types.Entry{localEntry(0, 0, 1)}))
	m.Drain()
	if !m.TopologyChanged() {
		t.Fatal("a different node on the same attach point is a topology change")
	}
	merged := m.Tick(nil, nil)
	if merged[0].Addr.Path[0] != 8 {
		t.Fatalf("entries must carry the new node id, got %v", merged[0].Addr)
	}
}

func TestEncodeTruncatesDeepestFirst(t *testing.T) {
	m, _ := newTestManager(t, 1)

	// 40 local entries plus 40 one-hop entries: more than one frame holds.
	var entries []types.Entry
	for i := 0; i < 40; i++ {
		entries = append(entries, localEntry(uint8(i%16), uint8(i/16), int16(i)))
	}
	for i := 0; i < 40; i++ {
		entries = append(entries, types.Entry{
			Addr: types.Address{
				Path:    [types.MaxHops]uint8{7, types.NoNode, types.NoNode},
				Slot:    uint8(i % 16),
				Channel: uint8(i / 16),
			},
			Value: int16(100 + i),
		})
	}

	buf, err := m.Encode(nil, 0, entries)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	hdr, got, err := wire.ParseFrame(buf, nil)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if int(hdr.Count) != wire.MaxFrameEntries || len(got) != wire.MaxFrameEntries {
		t.Fatalf("frame holds %d entries, want %d", len(got), wire.MaxFrameEntries)
	}
	// Every local entry survives, in order; the deepest entries pay.
	for i := 0; i < 40; i++ {
		if got[i] != entries[i] {
			t.Fatalf("local entry %d not preserved: %+v", i, got[i])
		}
	}
	for i := 40; i < wire.MaxFrameEntries; i++ {
		if got[i].Addr.Depth() != 1 || got[i] != entries[i] {
			t.Fatalf("entry %d: got %+v, want %+v", i, got[i], entries[i])
		}
	}
	if m.Truncations != 1 {
		t.Fatalf("Truncations = %d, want 1", m.Truncations)
	}

	// A set that fits passes through untouched.
	if _, err := m.Encode(nil, 1, entries[:10]); err != nil {
		t.Fatalf("Encode small set: %v", err)
	}
	if m.Truncations != 1 {
		t.Fatalf("Truncations = %d after in-budget frame, want 1", m.Truncations)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	m, _ := newTestManager(t, 1)
	m.NoteLocalTopologyChange()

	entries := []types.Entry{localEntry(0, 0, -7), localEntry(3, 1, 300)}
	buf, err := m.Encode(nil, 5, entries)
	if err != nil {
		t.Fatal(err)
	}
	hdr, got, err := wire.ParseFrame(buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Node != 1 || hdr.Seq != 5 || hdr.Epoch != m.Epoch() {
		t.Fatalf("header %+v", hdr)
	}
	if len(got) != 2 || got[0].Value != -7 || got[1].Value != 300 {
		t.Fatalf("entries %v", got)
	}
}
