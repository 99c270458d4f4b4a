// Package serialport is the boundary between the link-layer engine and
// the serial byte channel. The spec treats the serial driver as an
// external collaborator named only by contract (open/close,
// blocking byte read with an internal poll timeout, blocking byte
// write); this package implements that contract on top of
// go.bug.st/serial, the teacher repo's own serial dependency.
package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// pollInterval bounds how long a single ReadByte call blocks before
// returning "no byte available". The link-layer engine relies on this
// to notice an expired alarm without blocking forever on a silent line.
const pollInterval = 100 * time.Millisecond

// Port is the contract the link-layer engine drives the serial channel
// through. ReadByte follows the three-way result the spec describes:
// 1 with a byte, 0 for "no byte within the driver's poll window", or -1
// (with err set) on I/O error.
type Port interface {
	WriteBytes(buf []byte) (int, error)
	ReadByte() (int, byte, error)
	Close() error
}

type port struct {
	sp serial.Port
}

// Open opens device at the given baud rate, 8N1, with a short internal
// read-poll timeout so ReadByte never blocks past pollInterval.
func Open(device string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	sp, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	if err := sp.SetReadTimeout(pollInterval); err != nil {
		sp.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", device, err)
	}

	return &port{sp: sp}, nil
}

// WriteBytes pushes buf in full, retrying partial writes until every
// byte has been accepted or the underlying call errors.
func (p *port) WriteBytes(buf []byte) (int, error) {
	written := 0
	for written < len(buf) {
		n, err := p.sp.Write(buf[written:])
		if err != nil {
			return written, fmt.Errorf("serial write failed: %w", err)
		}
		if n == 0 {
			return written, fmt.Errorf("serial write made no progress")
		}
		written += n
	}
	return written, nil
}

// ReadByte reads a single byte, returning 0 when the internal poll
// timeout elapses with nothing received.
func (p *port) ReadByte() (int, byte, error) {
	var buf [1]byte
	n, err := p.sp.Read(buf[:])
	if err != nil {
		return -1, 0, fmt.Errorf("serial read failed: %w", err)
	}
	if n == 0 {
		return 0, 0, nil
	}
	return 1, buf[0], nil
}

func (p *port) Close() error {
	if err := p.sp.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}
