package mlx90363

import (
	"testing"

	"github.com/negimeister/negicon-v3-fw/types"
	"github.com/negimeister/negicon-v3-fw/wire"
)

// fakeSPI implements drivers.SPI, replying with a queued cell per transfer.
type fakeSPI struct {
	replies [][8]byte
	sent    [][]byte
	csLevel bool
}

func (f *fakeSPI) Tx(w, r []byte) error {
	f.sent = append(f.sent, append([]byte(nil), w...))
	if len(f.replies) > 0 {
		copy(r, f.replies[0][:])
		f.replies = f.replies[1:]
	}
	return nil
}

func (f *fakeSPI) Transfer(b byte) (byte, error) { return 0, nil }

func alphaReply(angle uint16, diag, counter uint8) [8]byte {
	var m [8]byte
	m[0] = uint8(angle)
	m[1] = uint8(angle>>8)&0x3F | diag<<6
	m[6] = markerAlpha<<6 | counter
	wire.Seal(m[:])
	return m
}

func TestReadAlpha(t *testing.T) {
	spi := &fakeSPI{replies: [][8]byte{alphaReply(0x1234, 2, 5)}}
	d := New(spi, func(bool) {})

	a, err := d.ReadAlpha()
	if err != nil {
		t.Fatalf("ReadAlpha: %v", err)
	}
	if a.Angle != 0x1234&0x3FFF {
		t.Fatalf("angle = %#x", a.Angle)
	}
	if a.Diag != 2 || a.Counter != 5 {
		t.Fatalf("diag/counter = %d/%d", a.Diag, a.Counter)
	}

	// Request must be a sealed GET1.
	req := spi.sent[0]
	if err := wire.Check(req); err != nil {
		t.Fatalf("request not sealed: %v", err)
	}
	if req[6]&0x3F != opGET1 {
		t.Fatalf("request opcode = %#x", req[6])
	}
}

func memReadReply(w0, w1 uint16) [8]byte {
	var m [8]byte
	m[0] = uint8(w0)
	m[1] = uint8(w0 >> 8)
	m[2] = uint8(w1)
	m[3] = uint8(w1 >> 8)
	m[6] = markerIrregular<<6 | opMemoryReadAnswer
	wire.Seal(m[:])
	return m
}

func TestIdentitySynthesizesEncoderDescriptor(t *testing.T) {
	// First exchange carries the memory-read request; its answer arrives in
	// the second exchange.
	spi := &fakeSPI{replies: [][8]byte{{}, memReadReply(0xBEEF, 0xCAFE)}}
	d := New(spi, func(bool) {})

	desc, err := d.Identity()
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if desc.Type != types.ModuleEncoder || desc.Channels != 1 {
		t.Fatalf("descriptor = %+v, want single-channel encoder", desc)
	}
	// ReadID plus the priming Trigger make three transfers.
	if len(spi.sent) != 3 {
		t.Fatalf("transfers = %d, want 3", len(spi.sent))
	}
}

func TestIdentityFailsWithoutSensor(t *testing.T) {
	// An empty slot clocks back idle bytes that fail the CRC.
	spi := &fakeSPI{}
	d := New(spi, func(bool) {})
	if _, err := d.Identity(); err != wire.ErrCRC {
		t.Fatalf("Identity on empty bus: got %v, want ErrCRC", err)
	}
}

func TestSampleReturnsAngle(t *testing.T) {
	spi := &fakeSPI{replies: [][8]byte{alphaReply(0x0ABC, 2, 1)}}
	d := New(spi, func(bool) {})
	raw, err := d.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if raw != 0x0ABC {
		t.Fatalf("raw = %#x, want 0x0ABC", raw)
	}
}

func TestReadAlphaErrorFrames(t *testing.T) {
	mk := func(opcode uint8) [8]byte {
		var m [8]byte
		m[6] = markerIrregular<<6 | opcode
		wire.Seal(m[:])
		return m
	}

	for _, c := range []struct {
		reply [8]byte
		want  error
	}{
		{mk(opErrorFrame), ErrDevice},
		{mk(opNothingToTransmit), ErrNotReady},
		{mk(opReadyMessage), ErrNotReady},
		{[8]byte{}, wire.ErrCRC},
	} {
		spi := &fakeSPI{replies: [][8]byte{c.reply}}
		d := New(spi, func(bool) {})
		if _, err := d.ReadAlpha(); err != c.want {
			t.Fatalf("reply %v: got %v, want %v", c.reply, err, c.want)
		}
	}
}
