// wire/poll_test.go
package wire

import "testing"

func TestPollSampleRoundTrip(t *testing.T) {
	req := AppendPoll(nil, 3)
	if len(req) != CellSize {
		t.Fatalf("poll length %d", len(req))
	}
	if err := Check(req); err != nil {
		t.Fatal(err)
	}
	if req[6] != OpPoll || req[0] != 3 {
		t.Fatalf("poll cell %v", req)
	}

	rep := AppendSample(nil, 3, 0xABCD)
	raw, err := ParseSample(rep, 3)
	if err != nil {
		t.Fatal(err)
	}
	if raw != 0xABCD {
		t.Fatalf("raw = %#x, want 0xabcd", raw)
	}
}

func TestParseSampleRejections(t *testing.T) {
	rep := AppendSample(nil, 1, 42)

	if _, err := ParseSample(rep, 2); err != ErrChallenge {
		t.Fatalf("wrong channel: %v", err)
	}

	bad := append([]byte(nil), rep...)
	bad[1] ^= 0x10
	if _, err := ParseSample(bad, 1); err != ErrCRC {
		t.Fatalf("corrupt cell: %v", err)
	}

	nop := AppendNop(nil, 7)
	if _, err := ParseSample(nop, 1); err != ErrOpcode {
		t.Fatalf("wrong opcode: %v", err)
	}
}
