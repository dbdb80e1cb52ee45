package mathx

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 3); got != 3 {
		t.Fatalf("Clamp(5,0,3) = %d", got)
	}
	if got := Clamp(-2, 0, 3); got != 0 {
		t.Fatalf("Clamp(-2,0,3) = %d", got)
	}
	if got := Clamp(2, 3, 0); got != 2 {
		t.Fatalf("Clamp with swapped bounds = %d", got)
	}
}

func TestWrapDelta(t *testing.T) {
	const span = 16384
	for _, c := range []struct {
		a, b uint16
		want int16
	}{
		{0, 10, 10},
		{10, 0, -10},
		{16380, 4, 8},    // forward across the wrap point
		{4, 16380, -8},   // backward across the wrap point
		{0, 8192, 8192},  // exactly half span goes forward
		{100, 100, 0},
	} {
		if got := WrapDelta(c.a, c.b, span); got != c.want {
			t.Fatalf("WrapDelta(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestMapU16(t *testing.T) {
	if got := MapU16(512, 0, 1024, 0, 255); got != 127 {
		t.Fatalf("MapU16 mid = %d", got)
	}
	if got := MapU16(2000, 0, 1024, 0, 255); got != 255 {
		t.Fatalf("MapU16 clamp high = %d", got)
	}
}
