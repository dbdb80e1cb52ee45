// Package button registers the behavior for simple switch modules: one raw
// bit per channel, reported relative to the zero offset captured at bind or
// reset time.
package button

import (
	"github.com/negimeister/negicon-v3-fw/services/input"
	"github.com/negimeister/negicon-v3-fw/types"
	"github.com/negimeister/negicon-v3-fw/x/mathx"
)

func init() {
	input.Register(input.Behavior{
		Type:        types.ModuleButton,
		Name:        "button",
		MaxChannels: types.MaxChannels,
		Decode:      decode,
	})
}

func decode(raw, offset uint16) int16 {
	return mathx.Clamp(int16(raw)-int16(offset), -1, 1)
}
