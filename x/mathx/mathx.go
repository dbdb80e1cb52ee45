package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Abs for signed integers.
func Abs[T ~int | ~int8 | ~int16 | ~int32 | ~int64](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// WrapDelta returns the shortest signed distance from a to b on a modular
// scale of the given span (e.g. span=16384 for a 14-bit angle). The result
// is in (-span/2, span/2].
func WrapDelta(a, b, span uint16) int16 {
	d := int32(b) - int32(a)
	half := int32(span) / 2
	if d > half {
		d -= int32(span)
	} else if d <= -half {
		d += int32(span)
	}
	return int16(d)
}

// MapU16 maps x in [inMin,inMax] to [outMin,outMax] with 32-bit
// intermediates, clamping outside the input range.
func MapU16(x, inMin, inMax, outMin, outMax uint16) uint16 {
	if inMax == inMin {
		return outMin
	}
	if x < inMin {
		return outMin
	}
	if x > inMax {
		return outMax
	}
	num := uint32(x-inMin) * uint32(outMax-outMin)
	den := uint32(inMax - inMin)
	return uint16(uint32(outMin) + num/den)
}
