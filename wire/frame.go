// wire/frame.go
package wire

import (
	"github.com/negimeister/negicon-v3-fw/types"
)

// MaxFrameEntries bounds one aggregate frame. Frames are exchanged in fixed
// buffers; a node that would exceed this truncates deepest entries first
// rather than allocating.
const MaxFrameEntries = 64

// MaxFrameSize is the byte size of a full frame.
const MaxFrameSize = (1 + MaxFrameEntries) * CellSize

// FrameHeader precedes the entry cells of an aggregate frame.
type FrameHeader struct {
	Seq   uint8 // per-link wrapping sequence number
	Count uint8 // number of entry cells following
	Node  uint8 // sender node id
	Epoch uint8 // sender topology epoch (wraps)
}

// AppendFrame encodes a header plus entries. An entry count above
// MaxFrameEntries returns ErrFrameTooLarge; callers with an over-full
// merged set truncate it first.
func AppendFrame(dst []byte, h FrameHeader, entries []types.Entry) ([]byte, error) {
	if len(entries) > MaxFrameEntries {
		return dst, ErrFrameTooLarge
	}
	h.Count = uint8(len(entries))
	hdr := [CellSize]byte{0: OpFrame, 1: h.Seq, 2: h.Count, 3: h.Node, 4: h.Epoch}
	Seal(hdr[:])
	dst = append(dst, hdr[:]...)

	for _, e := range entries {
		cell := [CellSize]byte{
			0: e.Addr.Path[0],
			1: e.Addr.Path[1],
			2: e.Addr.Path[2],
			3: e.Addr.Slot<<4 | e.Addr.Channel&0x0F,
			4: uint8(uint16(e.Value) >> 8),
			5: uint8(uint16(e.Value)),
		}
		Seal(cell[:])
		dst = append(dst, cell[:]...)
	}
	return dst, nil
}

// ParseFrame decodes a frame, appending entries to into (which may be a
// reused zero-length slice with spare capacity). Any CRC failure rejects
// the whole frame: a partially applied frame would desynchronize addresses
// from values.
func ParseFrame(data []byte, into []types.Entry) (FrameHeader, []types.Entry, error) {
	if len(data) < CellSize {
		return FrameHeader{}, into, ErrFrameLength
	}
	hdr := data[:CellSize]
	if err := Check(hdr); err != nil {
		return FrameHeader{}, into, err
	}
	if hdr[0] != OpFrame {
		return FrameHeader{}, into, ErrOpcode
	}
	h := FrameHeader{Seq: hdr[1], Count: hdr[2], Node: hdr[3], Epoch: hdr[4]}
	if h.Count > MaxFrameEntries {
		return FrameHeader{}, into, ErrFrameTooLarge
	}
	need := (1 + int(h.Count)) * CellSize
	if len(data) < need {
		return FrameHeader{}, into, ErrFrameLength
	}
	for i := 0; i < int(h.Count); i++ {
		cell := data[(1+i)*CellSize : (2+i)*CellSize]
		if err := Check(cell); err != nil {
			return FrameHeader{}, into, err
		}
		e := types.Entry{
			Addr: types.Address{
				Path:    [types.MaxHops]uint8{cell[0], cell[1], cell[2]},
				Slot:    cell[3] >> 4,
				Channel: cell[3] & 0x0F,
			},
			Value: int16(uint16(cell[4])<<8 | uint16(cell[5])),
		}
		into = append(into, e)
	}
	return h, into, nil
}
