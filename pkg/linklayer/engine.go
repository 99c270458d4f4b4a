// Package linklayer implements the protocol engine: connection setup
// (SET/UA), data transfer (I-frames under stop-and-wait ARQ with RR/REJ
// acknowledgment), and disconnect (DISC/DISC/UA). It owns the
// alternating-bit sequence number, the retransmission count, the
// per-wait alarm, and the statistics collector, and drives a
// serialport.Port one byte at a time.
package linklayer

import (
	"errors"
	"fmt"
	"time"

	"github.com/rdproto/rdlink/pkg/alarm"
	"github.com/rdproto/rdlink/pkg/frame"
	"github.com/rdproto/rdlink/pkg/serialport"
	"github.com/rdproto/rdlink/pkg/stats"
	"github.com/rdproto/rdlink/pkg/telemetry"
)

// Role is fixed for the lifetime of a session and determines address
// polarity and which side initiates open and close.
type Role int

const (
	Transmitter Role = iota
	Receiver
)

func (r Role) String() string {
	if r == Transmitter {
		return "tx"
	}
	return "rx"
}

// Errors surfaced across the link-layer API boundary.
var (
	ErrRetransmitExhausted = errors.New("linklayer: retransmission count exhausted")
	ErrNotOpen             = errors.New("linklayer: session is not open")
	ErrPayloadTooLarge      = errors.New("linklayer: payload exceeds maximum size")
)

// Params are the connection parameters from the spec's data model.
type Params struct {
	Role       Role
	N          int           // maximum retransmission count
	T          time.Duration // per-attempt timeout
	MaxPayload int           // 0 selects frame.MaxPayload
}

// Engine is the owned value that replaces the source's file-scope
// mutable state: it carries the sequence number, the alarm, and the
// statistics collector internally instead of as process globals.
type Engine struct {
	params   Params
	port     serialport.Port
	stats    *stats.Stats
	alarm    *alarm.Alarm
	observer telemetry.Observer

	frameNumber    int
	framesReceived int
	open           bool
}

// New wraps an already-opened serial port with a link-layer engine.
// observer may be nil, in which case telemetry.Noop is used.
func New(params Params, port serialport.Port, observer telemetry.Observer) *Engine {
	if params.MaxPayload == 0 {
		params.MaxPayload = frame.MaxPayload
	}
	if observer == nil {
		observer = telemetry.Noop{}
	}
	return &Engine{
		params:   params,
		port:     port,
		stats:    stats.New(),
		alarm:    alarm.New(),
		observer: observer,
	}
}

// Stats returns the engine's statistics collector.
func (e *Engine) Stats() *stats.Stats { return e.stats }

// readByte reads one byte from the serial port, surfacing I/O errors
// immediately as the spec's error-handling table requires.
func (e *Engine) readByte() (ok bool, b byte, err error) {
	n, b, err := e.port.ReadByte()
	if err != nil {
		return false, 0, fmt.Errorf("linklayer: serial read error: %w", err)
	}
	if n == 1 {
		return true, b, nil
	}
	return false, 0, nil
}

// awaitFrame feeds bytes from the serial port into m until it reaches
// StateStp or the engine's alarm expires. The alarm must already be
// armed (or left disarmed, for phases with no timeout) by the caller.
func (e *Engine) awaitFrame(m *frame.Machine) (timedOut bool, err error) {
	for {
		got, b, err := e.readByte()
		if err != nil {
			return false, err
		}
		if !got {
			if e.alarm.Expired() {
				return true, nil
			}
			continue
		}
		if m.Step(b) == frame.StateStp {
			return false, nil
		}
	}
}

func (e *Engine) send(buf []byte) error {
	_, err := e.port.WriteBytes(buf)
	if err != nil {
		return fmt.Errorf("linklayer: serial write error: %w", err)
	}
	return nil
}

func (e *Engine) event(name string, fields map[string]any) {
	e.observer.OnEvent(name, fields)
}

// foldInvalidBCC1 copies a Machine's per-attempt header-checksum-failure
// count into the engine's long-lived statistics.
func (e *Engine) foldInvalidBCC1(m *frame.Machine) {
	for i := 0; i < m.InvalidBCC1(); i++ {
		e.stats.IncInvalidBCC1()
	}
}
