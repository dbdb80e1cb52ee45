//go:build rp2040

// platform/rp2040/usbhid.go
package rp2040

import (
	"machine"
	"machine/usb"
	"machine/usb/descriptor"
	"machine/usb/hid"

	"github.com/negimeister/negicon-v3-fw/services/report"
)

// HIDDescriptor wraps the vendor report descriptor for the native USB stack.
var HIDDescriptor = descriptor.Descriptor{
	Device: descriptor.DeviceCDC.Bytes(),
	Configuration: descriptor.Append([][]byte{
		descriptor.ConfigurationCDCHID.Bytes(),
		descriptor.InterfaceAssociationCDC.Bytes(),
		descriptor.InterfaceCDCControl.Bytes(),
		descriptor.ClassSpecificCDCHeader.Bytes(),
		descriptor.ClassSpecificCDCACM.Bytes(),
		descriptor.ClassSpecificCDCUnion.Bytes(),
		descriptor.ClassSpecificCDCCallManagement.Bytes(),
		descriptor.EndpointEP1IN.Bytes(),
		descriptor.InterfaceCDCData.Bytes(),
		descriptor.EndpointEP2OUT.Bytes(),
		descriptor.EndpointEP3IN.Bytes(),
		descriptor.InterfaceHID.Bytes(),
		func() []byte {
			classHID := descriptor.ClassHID.Bytes()
			classHID[7] = byte(len(report.HIDDescriptor))
			classHID[8] = byte(len(report.HIDDescriptor) >> 8)
			return classHID
		}(),
		descriptor.EndpointEP4IN.Bytes(),
		descriptor.EndpointEP5OUT.Bytes(),
	}),
	HID: map[uint16][]byte{
		usb.HID_INTERFACE: report.HIDDescriptor,
	},
}

// HostTransport moves 8-byte reports over the native USB HID endpoint.
// SubmitReport refuses while a transmit is in flight, matching the
// drop-on-busy contract; queued retransmission would only add latency to
// values that the next tick supersedes anyway.
type HostTransport struct {
	buf     *hid.RingBuffer
	waitTxc bool
	out     chan []byte
	pkt     [8]byte
}

var hostInstance *HostTransport

// NewHostTransport registers the HID handler. Call once, before the USB
// device completes enumeration.
func NewHostTransport() *HostTransport {
	if hostInstance == nil {
		hostInstance = &HostTransport{
			buf: hid.NewRingBuffer(),
			out: make(chan []byte, 4),
		}
		hid.SetHandler(hostInstance)
	}
	return hostInstance
}

// TxHandler runs from the USB interrupt when the IN endpoint frees up.
func (h *HostTransport) TxHandler() bool {
	h.waitTxc = false
	if b, ok := h.buf.Get(); ok {
		h.waitTxc = true
		hid.SendUSBPacket(b)
		return true
	}
	return false
}

// RxHandler runs from the USB interrupt with a host output report.
func (h *HostTransport) RxHandler(b []byte) bool {
	cp := make([]byte, len(b))
	copy(cp, b)
	select {
	case h.out <- cp:
	default:
		// Node service behind; output reports are idempotent requests and
		// the host re-sends on no effect.
	}
	return true
}

func (h *HostTransport) SubmitReport(rep []byte) bool {
	if !machine.USBDev.InitEndpointComplete {
		return false
	}
	if h.waitTxc {
		return false
	}
	copy(h.pkt[:], rep)
	h.waitTxc = true
	hid.SendUSBPacket(h.pkt[:])
	return true
}

func (h *HostTransport) OutputReports() <-chan []byte { return h.out }
