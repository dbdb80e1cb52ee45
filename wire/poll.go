// wire/poll.go
package wire

// Channel poll cells. The controller clocks a poll naming the channel; the
// module's sample reply comes back in the next transfer, echoing the channel
// so a late or reordered reply cannot be credited to the wrong channel.
const (
	OpPoll   = 0xE0
	OpSample = 0xE1
)

// AppendPoll encodes a raw-sample request for one channel.
func AppendPoll(dst []byte, channel uint8) []byte {
	cell := [CellSize]byte{0: channel, 6: OpPoll}
	Seal(cell[:])
	return append(dst, cell[:]...)
}

// AppendSample encodes a module's reply to a poll.
func AppendSample(dst []byte, channel uint8, raw uint16) []byte {
	cell := [CellSize]byte{
		0: channel,
		1: uint8(raw >> 8),
		2: uint8(raw),
		6: OpSample,
	}
	Seal(cell[:])
	return append(dst, cell[:]...)
}

// ParseSample decodes a sample reply for the expected channel.
func ParseSample(cell []byte, channel uint8) (uint16, error) {
	if err := Check(cell); err != nil {
		return 0, err
	}
	if cell[6] != OpSample {
		return 0, ErrOpcode
	}
	if cell[0] != channel {
		return 0, ErrChallenge
	}
	return uint16(cell[1])<<8 | uint16(cell[2]), nil
}
