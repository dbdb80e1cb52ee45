// Package fader registers the behavior for linear fader modules: a 10-bit
// absolute position per channel, reported relative to the zero offset and
// clamped to the physical travel.
package fader

import (
	"github.com/negimeister/negicon-v3-fw/services/input"
	"github.com/negimeister/negicon-v3-fw/types"
	"github.com/negimeister/negicon-v3-fw/x/mathx"
)

// Travel is the full-scale raw range of a fader.
const Travel = 1023

func init() {
	input.Register(input.Behavior{
		Type:        types.ModuleFader,
		Name:        "fader",
		MaxChannels: 4,
		Decode:      decode,
		// Faders move at human speed; sampling every other tick leaves
		// more of the tick budget to encoders.
		CadenceTicks: 2,
	})
}

func decode(raw, offset uint16) int16 {
	return mathx.Clamp(int16(raw)-int16(offset), -Travel, Travel)
}
