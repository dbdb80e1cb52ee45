// Package mlx90363 provides a driver for the MLX90363 magnetic angle sensor
// used by Negicon encoder modules. It speaks the sensor's 8-byte SPI message
// format (Melexis CBA CRC, marker/opcode in byte 6) over a tinygo drivers.SPI
// bus with a caller-supplied chip-select line.
//
// The sensor pipelines replies: the response to a GET1 request arrives during
// the NEXT transfer. Callers prime the pipeline with Trigger at bind time, so
// each ReadAlpha exchange both requests the next sample and returns the
// previous one.
package mlx90363

import (
	"errors"

	"tinygo.org/x/drivers"

	"github.com/negimeister/negicon-v3-fw/types"
	"github.com/negimeister/negicon-v3-fw/wire"
)

// Melexis memory addresses of the sensor ID words.
const (
	IDAddrLo  = 0x1012
	IDAddrMid = 0x1014
	IDAddrHi  = 0x1016
)

// Frame markers (top two bits of byte 6).
const (
	markerAlpha     = 0
	markerIrregular = 3
)

// Opcodes (low six bits of byte 6).
const (
	opGET1              = 0x13
	opMemoryRead        = 0x01
	opMemoryReadAnswer  = 0x02
	opNOPChallenge      = 0x10
	opNOPReply          = 0x11
	opErrorFrame        = 0x3D
	opNothingToTransmit = 0x3E
	opReadyMessage      = 0x2C
)

// AngleSpan is the full scale of the 14-bit alpha reading.
const AngleSpan = 1 << 14

// Errors returned by the driver.
var (
	ErrFormat   = errors.New("mlx90363: malformed reply")
	ErrNotReady = errors.New("mlx90363: nothing to transmit")
	ErrDevice   = errors.New("mlx90363: device error frame")
	ErrCRC      = wire.ErrCRC
)

// Alpha is one decoded angle sample.
type Alpha struct {
	Angle   uint16 // 14-bit angle
	Diag    uint8  // 0 pending, 1 fail, 2 pass, 3 new cycle
	VG      uint8  // virtual gain byte
	Counter uint8  // rolling 6-bit sample counter
}

// Device wraps one SPI-attached MLX90363. The chip-select line is driven
// through the supplied function (true = selected) so the same driver works
// on machine pins and on the simulated backplane.
type Device struct {
	bus drivers.SPI
	cs  func(bool)
	buf [wire.CellSize]byte
}

// New creates a driver instance. The SPI bus must already be configured for
// mode 1 at the sensor's rate.
func New(bus drivers.SPI, cs func(bool)) Device {
	return Device{bus: bus, cs: cs}
}

// exchange performs one full-duplex 8-byte transfer into d.buf.
func (d *Device) exchange(out [wire.CellSize]byte) error {
	wire.Seal(out[:])
	d.cs(true)
	err := d.bus.Tx(out[:], d.buf[:])
	d.cs(false)
	return err
}

func get1Request(resetCounter bool) [wire.CellSize]byte {
	var rst uint8
	if resetCounter {
		rst = 1
	}
	return [wire.CellSize]byte{
		1: rst,
		2: 0xFF, // conversion timeout, lsb
		3: 0xFF,
		6: markerAlpha<<6 | opGET1,
	}
}

// Trigger starts a conversion without waiting for its result. Used at bind
// time so the first ReadAlpha returns fresh data.
func (d *Device) Trigger() error {
	return d.exchange(get1Request(false))
}

// ReadAlpha requests and decodes one alpha sample.
func (d *Device) ReadAlpha() (Alpha, error) {
	if err := d.exchange(get1Request(false)); err != nil {
		return Alpha{}, err
	}
	return parseAlpha(d.buf)
}

func parseAlpha(m [wire.CellSize]byte) (Alpha, error) {
	if err := wire.Check(m[:]); err != nil {
		return Alpha{}, err
	}
	marker := m[6] >> 6
	opcode := m[6] & 0x3F
	if marker == markerIrregular {
		switch opcode {
		case opErrorFrame:
			return Alpha{}, ErrDevice
		case opNothingToTransmit, opReadyMessage:
			return Alpha{}, ErrNotReady
		default:
			return Alpha{}, ErrFormat
		}
	}
	if marker != markerAlpha {
		return Alpha{}, ErrFormat
	}
	return Alpha{
		Angle:   uint16(m[0]) | uint16(m[1]&0x3F)<<8,
		Diag:    m[1] >> 6,
		VG:      m[4],
		Counter: m[6] & 0x3F,
	}, nil
}

// Identity adapts the sensor to the slot identity read: a bare MLX soldered
// to a backplane slot has no module controller to describe itself, so the
// descriptor is synthesized once the ID words read back. A Trigger follows
// so the first Sample returns fresh data.
func (d *Device) Identity() (types.Descriptor, error) {
	if _, _, err := d.ReadID(IDAddrLo, IDAddrMid); err != nil {
		return types.Descriptor{}, err
	}
	if err := d.Trigger(); err != nil {
		return types.Descriptor{}, err
	}
	return types.Descriptor{Type: types.ModuleEncoder, Channels: 1}, nil
}

// Sample reads the current 14-bit angle as a raw channel sample.
func (d *Device) Sample() (uint16, error) {
	a, err := d.ReadAlpha()
	if err != nil {
		return 0, err
	}
	return a.Angle, nil
}

// ReadID reads one 16-bit word of the sensor's unique ID from Melexis
// memory. Two addresses are read per request; addr1 may equal addr0.
func (d *Device) ReadID(addr0, addr1 uint16) (w0, w1 uint16, err error) {
	req := [wire.CellSize]byte{
		0: uint8(addr0),
		1: uint8(addr0 >> 8),
		2: uint8(addr1),
		3: uint8(addr1 >> 8),
		6: markerIrregular<<6 | opMemoryRead,
	}
	if err := d.exchange(req); err != nil {
		return 0, 0, err
	}
	// Answer arrives in the next exchange.
	if err := d.exchange(get1Request(false)); err != nil {
		return 0, 0, err
	}
	m := d.buf
	if err := wire.Check(m[:]); err != nil {
		return 0, 0, err
	}
	if m[6] != markerIrregular<<6|opMemoryReadAnswer {
		return 0, 0, ErrFormat
	}
	w0 = uint16(m[0]) | uint16(m[1])<<8
	w1 = uint16(m[2]) | uint16(m[3])<<8
	return w0, w1, nil
}
