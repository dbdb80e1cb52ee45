// wire/wire_test.go
package wire

import (
	"testing"

	"github.com/negimeister/negicon-v3-fw/types"
)

func TestSealCheck(t *testing.T) {
	cell := make([]byte, CellSize)
	copy(cell, []byte{1, 2, 3, 4, 5, 6, 7})
	Seal(cell)
	if err := Check(cell); err != nil {
		t.Fatalf("sealed cell failed check: %v", err)
	}
	cell[2] ^= 0x10
	if err := Check(cell); err != ErrCRC {
		t.Fatalf("corrupted cell: got %v, want ErrCRC", err)
	}
	if err := Check(cell[:5]); err != ErrShort {
		t.Fatalf("short cell: got %v, want ErrShort", err)
	}
}

func TestNopRoundTrip(t *testing.T) {
	const challenge = 0x3939

	probe := AppendNop(nil, challenge)
	if err := Check(probe); err != nil {
		t.Fatalf("probe cell: %v", err)
	}
	if probe[6] != OpNop {
		t.Fatalf("probe opcode = %#x, want %#x", probe[6], OpNop)
	}

	reply := AppendNopReply(nil, challenge, OpNopReplyMLX)
	nop, err := ParseNopReply(reply, challenge)
	if err != nil {
		t.Fatalf("ParseNopReply: %v", err)
	}
	if nop.Opcode != OpNopReplyMLX {
		t.Fatalf("opcode = %#x, want %#x", nop.Opcode, OpNopReplyMLX)
	}
}

func TestNopReplyRejections(t *testing.T) {
	const challenge = 0x1234

	// Unknown opcode.
	bad := AppendNopReply(nil, challenge, 0x77)
	if _, err := ParseNopReply(bad, challenge); err != ErrOpcode {
		t.Fatalf("unknown opcode: got %v, want ErrOpcode", err)
	}

	// Wrong challenge echo.
	wrong := AppendNopReply(nil, 0x4321, OpNopReplyRP)
	if _, err := ParseNopReply(wrong, challenge); err != ErrChallenge {
		t.Fatalf("wrong echo: got %v, want ErrChallenge", err)
	}

	// Floating bus (garbage CRC).
	garbage := make([]byte, CellSize)
	if _, err := ParseNopReply(garbage, challenge); err != ErrCRC {
		t.Fatalf("garbage: got %v, want ErrCRC", err)
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	d := types.Descriptor{Type: types.ModuleEncoder, Channels: 2}
	cell := AppendDescriptor(nil, d)
	got, err := ParseDescriptor(cell)
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if got != d {
		t.Fatalf("descriptor = %+v, want %+v", got, d)
	}

	cell[6] = OpNopReplyMLX
	Seal(cell)
	if _, err := ParseDescriptor(cell); err != ErrOpcode {
		t.Fatalf("wrong opcode: got %v, want ErrOpcode", err)
	}
}

func TestEventRoundTrip(t *testing.T) {
	for _, e := range []Event{
		{ID: 39, Value: 1042, Controller: 0, Seq: 7},
		{ID: 0xFFFF, Value: -1, Controller: 3, Seq: 255},
		{ID: 0, Value: -32768, Controller: 1, Seq: 0},
	} {
		cell := AppendEvent(nil, e)
		got, err := ParseEvent(cell)
		if err != nil {
			t.Fatalf("ParseEvent(%+v): %v", e, err)
		}
		if got != e {
			t.Fatalf("event = %+v, want %+v", got, e)
		}
	}
}

func TestFrameRoundTrip(t *testing.T) {
	entries := []types.Entry{
		{Addr: types.Address{Path: types.EmptyPath(), Slot: 0, Channel: 0}, Value: 1},
		{Addr: types.Address{Path: [types.MaxHops]uint8{2, types.NoNode, types.NoNode}, Slot: 3, Channel: 1}, Value: -500},
		{Addr: types.Address{Path: [types.MaxHops]uint8{2, 5, types.NoNode}, Slot: 15, Channel: 15}, Value: 32767},
	}
	h := FrameHeader{Seq: 9, Node: 1, Epoch: 4}

	buf, err := AppendFrame(nil, h, entries)
	if err != nil {
		t.Fatalf("AppendFrame: %v", err)
	}
	if len(buf) != (1+len(entries))*CellSize {
		t.Fatalf("frame size = %d", len(buf))
	}

	gotH, gotE, err := ParseFrame(buf, nil)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if gotH.Seq != 9 || gotH.Node != 1 || gotH.Epoch != 4 || int(gotH.Count) != len(entries) {
		t.Fatalf("header = %+v", gotH)
	}
	for i := range entries {
		if gotE[i] != entries[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, gotE[i], entries[i])
		}
	}
}

func TestFrameRejectsCorruption(t *testing.T) {
	buf, _ := AppendFrame(nil, FrameHeader{Seq: 1}, []types.Entry{
		{Addr: types.Address{Path: types.EmptyPath()}, Value: 1},
	})

	// Corrupt the entry cell; the whole frame must be rejected.
	buf[CellSize+4] ^= 0xFF
	if _, _, err := ParseFrame(buf, nil); err != ErrCRC {
		t.Fatalf("corrupt entry: got %v, want ErrCRC", err)
	}

	// Truncated frame.
	if _, _, err := ParseFrame(buf[:CellSize], nil); err != ErrFrameLength {
		t.Fatalf("truncated: got %v, want ErrFrameLength", err)
	}
}

func TestFrameEntryLimit(t *testing.T) {
	entries := make([]types.Entry, MaxFrameEntries+1)
	for i := range entries {
		entries[i].Addr.Path = types.EmptyPath()
	}
	if _, err := AppendFrame(nil, FrameHeader{}, entries); err != ErrFrameTooLarge {
		t.Fatalf("got %v, want ErrFrameTooLarge", err)
	}
}
