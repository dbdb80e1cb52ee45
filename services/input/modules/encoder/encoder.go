// Package encoder registers the behavior for MLX90363-based rotary encoder
// modules. The raw sample is the sensor's 14-bit alpha angle; the reported
// value is the wrapped distance from the zero offset, with a small deadzone
// so magnet jitter at rest does not read as motion.
package encoder

import (
	"github.com/negimeister/negicon-v3-fw/drivers/mlx90363"
	"github.com/negimeister/negicon-v3-fw/services/input"
	"github.com/negimeister/negicon-v3-fw/types"
	"github.com/negimeister/negicon-v3-fw/x/mathx"
)

// Deadzone in angle counts (14-bit scale, ~0.9 degrees).
const Deadzone = 40

func init() {
	input.Register(input.Behavior{
		Type:        types.ModuleEncoder,
		Name:        "encoder",
		MaxChannels: 2, // axis + optional push switch
		Decode:      decode,
	})
}

func decode(raw, offset uint16) int16 {
	d := mathx.WrapDelta(offset, raw, mlx90363.AngleSpan)
	if mathx.Abs(d) < Deadzone {
		return 0
	}
	return d
}
