// Package wire implements the Negicon chain/slot protocol: fixed 8-byte
// cells protected by a Melexis CBA CRC-8, used for slot probing (NOP
// challenge/response), module identification, input events, and aggregate
// frame transfer between chain nodes.
package wire

import (
	"errors"

	"github.com/negimeister/negicon-v3-fw/types"
)

// CellSize is the size of every protocol cell.
const CellSize = 8

// Command and reply opcodes. The reply opcode identifies the device class
// answering a NOP challenge.
const (
	OpNop         = 0b11010000 // 0xD0: probe challenge
	OpNopReplyMLX = 0b11010001 // 0xD1: MLX90363 encoder sensor
	OpNopReplyRP  = 0b11000010 // 0xC2: RP2040 chain node
	OpNopReplySTM = 0b11110011 // 0xF3: STM32 module controller

	OpDescribe      = 0b10110000 // 0xB0: request module descriptor
	OpDescribeReply = 0b10110001 // 0xB1: descriptor reply

	OpFrame = 0xA5 // aggregate frame header cell
)

var (
	ErrShort         = errors.New("wire: short cell")
	ErrCRC           = errors.New("wire: crc mismatch")
	ErrOpcode        = errors.New("wire: invalid opcode")
	ErrChallenge     = errors.New("wire: challenge mismatch")
	ErrFrameTooLarge = errors.New("wire: frame too large")
	ErrFrameLength   = errors.New("wire: truncated frame")
)

// -----------------------------------------------------------------------------
// CRC
// -----------------------------------------------------------------------------

// cbaTab is the Melexis CBA-256 CRC table used by the MLX90363 and adopted
// for every cell on the chain.
var cbaTab = [256]uint8{
	0x00, 0x2f, 0x5e, 0x71, 0xbc, 0x93, 0xe2, 0xcd, 0x57, 0x78, 0x09, 0x26, 0xeb, 0xc4, 0xb5, 0x9a,
	0xae, 0x81, 0xf0, 0xdf, 0x12, 0x3d, 0x4c, 0x63, 0xf9, 0xd6, 0xa7, 0x88, 0x45, 0x6a, 0x1b, 0x34,
	0x73, 0x5c, 0x2d, 0x02, 0xcf, 0xe0, 0x91, 0xbe, 0x24, 0x0b, 0x7a, 0x55, 0x98, 0xb7, 0xc6, 0xe9,
	0xdd, 0xf2, 0x83, 0xac, 0x61, 0x4e, 0x3f, 0x10, 0x8a, 0xa5, 0xd4, 0xfb, 0x36, 0x19, 0x68, 0x47,
	0xe6, 0xc9, 0xb8, 0x97, 0x5a, 0x75, 0x04, 0x2b, 0xb1, 0x9e, 0xef, 0xc0, 0x0d, 0x22, 0x53, 0x7c,
	0x48, 0x67, 0x16, 0x39, 0xf4, 0xdb, 0xaa, 0x85, 0x1f, 0x30, 0x41, 0x6e, 0xa3, 0x8c, 0xfd, 0xd2,
	0x95, 0xba, 0xcb, 0xe4, 0x29, 0x06, 0x77, 0x58, 0xc2, 0xed, 0x9c, 0xb3, 0x7e, 0x51, 0x20, 0x0f,
	0x3b, 0x14, 0x65, 0x4a, 0x87, 0xa8, 0xd9, 0xf6, 0x6c, 0x43, 0x32, 0x1d, 0xd0, 0xff, 0x8e, 0xa1,
	0xe3, 0xcc, 0xbd, 0x92, 0x5f, 0x70, 0x01, 0x2e, 0xb4, 0x9b, 0xea, 0xc5, 0x08, 0x27, 0x56, 0x79,
	0x4d, 0x62, 0x13, 0x3c, 0xf1, 0xde, 0xaf, 0x80, 0x1a, 0x35, 0x44, 0x6b, 0xa6, 0x89, 0xf8, 0xd7,
	0x90, 0xbf, 0xce, 0xe1, 0x2c, 0x03, 0x72, 0x5d, 0xc7, 0xe8, 0x99, 0xb6, 0x7b, 0x54, 0x25, 0x0a,
	0x3e, 0x11, 0x60, 0x4f, 0x82, 0xad, 0xdc, 0xf3, 0x69, 0x46, 0x37, 0x18, 0xd5, 0xfa, 0x8b, 0xa4,
	0x05, 0x2a, 0x5b, 0x74, 0xb9, 0x96, 0xe7, 0xc8, 0x52, 0x7d, 0x0c, 0x23, 0xee, 0xc1, 0xb0, 0x9f,
	0xab, 0x84, 0xf5, 0xda, 0x17, 0x38, 0x49, 0x66, 0xfc, 0xd3, 0xa2, 0x8d, 0x40, 0x6f, 0x1e, 0x31,
	0x76, 0x59, 0x28, 0x07, 0xca, 0xe5, 0x94, 0xbb, 0x21, 0x0e, 0x7f, 0x50, 0x9d, 0xb2, 0xc3, 0xec,
	0xd8, 0xf7, 0x86, 0xa9, 0x64, 0x4b, 0x3a, 0x15, 0x8f, 0xa0, 0xd1, 0xfe, 0x33, 0x1c, 0x6d, 0x42,
}

// CRC computes the CBA CRC-8 over the first 7 bytes of a cell.
func CRC(cell []byte) uint8 {
	c := uint8(0xFF)
	for i := 0; i < 7; i++ {
		c = cbaTab[c^cell[i]]
	}
	return ^c
}

// Seal writes the CRC into the last byte of a cell.
func Seal(cell []byte) {
	cell[CellSize-1] = CRC(cell)
}

// Check verifies a cell's length and CRC.
func Check(cell []byte) error {
	if len(cell) < CellSize {
		return ErrShort
	}
	if cell[CellSize-1] != CRC(cell) {
		return ErrCRC
	}
	return nil
}

// -----------------------------------------------------------------------------
// NOP challenge (probe)
// -----------------------------------------------------------------------------

// Nop is the probe challenge/response message. A device answers with the
// echoed challenge, its bitwise inverse, and its class reply opcode.
type Nop struct {
	Challenge uint16
	Opcode    uint8
}

// AppendNop encodes a probe challenge cell.
func AppendNop(dst []byte, challenge uint16) []byte {
	cell := [CellSize]byte{
		2: uint8(challenge),
		3: uint8(challenge >> 8),
		6: OpNop,
	}
	Seal(cell[:])
	return append(dst, cell[:]...)
}

// ParseNopReply decodes and validates a probe response against the sent
// challenge. ErrCRC means nothing answered (floating bus); ErrOpcode means
// something answered that we do not speak to.
func ParseNopReply(cell []byte, challenge uint16) (Nop, error) {
	if err := Check(cell); err != nil {
		return Nop{}, err
	}
	echo := uint16(cell[2]) | uint16(cell[3])<<8
	inv := uint16(cell[4]) | uint16(cell[5])<<8
	switch cell[6] {
	case OpNopReplyMLX, OpNopReplyRP, OpNopReplySTM:
	default:
		return Nop{}, ErrOpcode
	}
	if echo != challenge || inv != ^challenge {
		return Nop{}, ErrChallenge
	}
	return Nop{Challenge: echo, Opcode: cell[6]}, nil
}

// AppendNopReply encodes the response a module sends to a challenge.
// Used by simulated modules and by chain nodes answering their upstream.
func AppendNopReply(dst []byte, challenge uint16, opcode uint8) []byte {
	cell := [CellSize]byte{
		2: uint8(challenge),
		3: uint8(challenge >> 8),
		4: uint8(^challenge),
		5: uint8(^challenge >> 8),
		6: opcode,
	}
	Seal(cell[:])
	return append(dst, cell[:]...)
}

// -----------------------------------------------------------------------------
// Module descriptor
// -----------------------------------------------------------------------------

// AppendDescribe encodes a descriptor request cell.
func AppendDescribe(dst []byte) []byte {
	cell := [CellSize]byte{6: OpDescribe}
	Seal(cell[:])
	return append(dst, cell[:]...)
}

// AppendDescriptor encodes a descriptor reply cell.
func AppendDescriptor(dst []byte, d types.Descriptor) []byte {
	cell := [CellSize]byte{
		0: uint8(d.Type),
		1: d.Channels,
		6: OpDescribeReply,
	}
	Seal(cell[:])
	return append(dst, cell[:]...)
}

// ParseDescriptor decodes a descriptor reply cell.
func ParseDescriptor(cell []byte) (types.Descriptor, error) {
	if err := Check(cell); err != nil {
		return types.Descriptor{}, err
	}
	if cell[6] != OpDescribeReply {
		return types.Descriptor{}, ErrOpcode
	}
	return types.Descriptor{Type: types.ModuleType(cell[0]), Channels: cell[1]}, nil
}

// -----------------------------------------------------------------------------
// Input event
// -----------------------------------------------------------------------------

// Event is one input change, as carried on the legacy single-event path and
// in host reports: a 16-bit channel id, a signed value, the reporting
// controller and a wrapping sequence number.
type Event struct {
	ID         uint16
	Value      int16
	Controller uint8
	Seq        uint8
}

// AppendEvent encodes an event cell.
func AppendEvent(dst []byte, e Event) []byte {
	cell := [CellSize]byte{
		0: uint8(e.ID >> 8),
		1: uint8(e.ID),
		2: uint8(uint16(e.Value) >> 8),
		3: uint8(uint16(e.Value)),
		4: e.Controller,
		5: e.Seq,
	}
	Seal(cell[:])
	return append(dst, cell[:]...)
}

// ParseEvent decodes an event cell.
func ParseEvent(cell []byte) (Event, error) {
	if err := Check(cell); err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uint16(cell[0])<<8 | uint16(cell[1]),
		Value:      int16(uint16(cell[2])<<8 | uint16(cell[3])),
		Controller: cell[4],
		Seq:        cell[5],
	}, nil
}
