package linklayer

import (
	"bytes"
	"testing"
	"time"

	"github.com/rdproto/rdlink/pkg/frame"
)

func testParams(role Role) Params {
	return Params{Role: role, N: 3, T: 20 * time.Millisecond}
}

func TestWriteCleanAck(t *testing.T) {
	p := &scriptedPort{responses: [][]byte{
		frame.EncodeSupervisory(frame.AddrReply, frame.CtrlRR1),
	}}
	e := New(testParams(Transmitter), p, nil)
	e.open = true

	n, err := e.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 5 {
		t.Fatalf("Write returned %d, want 5", n)
	}
	if e.frameNumber != 1 {
		t.Fatalf("frameNumber = %d, want 1", e.frameNumber)
	}
	snap := e.Stats().Snapshot()
	if snap.ISent != 1 || snap.RRReceived != 1 {
		t.Fatalf("unexpected stats: %+v", snap)
	}
}

func TestWriteRejectDoesNotConsumeAttempt(t *testing.T) {
	// Expecting RR1 after sending frame 0; peer first sends REJ0 (the
	// accepted alternative), then RR1.
	p := &scriptedPort{responses: [][]byte{
		frame.EncodeSupervisory(frame.AddrReply, frame.CtrlREJ0),
		frame.EncodeSupervisory(frame.AddrReply, frame.CtrlRR1),
	}}
	e := New(testParams(Transmitter), p, nil)
	e.open = true

	n, err := e.Write([]byte("hi"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Write returned %d, want 2", n)
	}
	if e.frameNumber != 1 {
		t.Fatalf("frameNumber should flip exactly once, got %d", e.frameNumber)
	}

	snap := e.Stats().Snapshot()
	if snap.ISent != 2 {
		t.Fatalf("expected 2 I-frames sent (original + retry), got %d", snap.ISent)
	}
	if snap.REJReceived != 1 {
		t.Fatalf("expected 1 REJ received, got %d", snap.REJReceived)
	}
	if snap.Retransmissions != 0 || snap.Timeouts != 0 {
		t.Fatalf("REJ must not be counted as a timeout/retransmission: %+v", snap)
	}
}

func TestWriteRetransmitExhausted(t *testing.T) {
	e := New(Params{Role: Transmitter, N: 3, T: 10 * time.Millisecond}, silentPort{}, nil)
	e.open = true

	_, err := e.Write([]byte("x"))
	if err != ErrRetransmitExhausted {
		t.Fatalf("err = %v, want ErrRetransmitExhausted", err)
	}

	snap := e.Stats().Snapshot()
	if snap.Timeouts != 3 {
		t.Fatalf("timeouts = %d, want 3 (N)", snap.Timeouts)
	}
	if snap.Retransmissions != 2 {
		t.Fatalf("retransmissions = %d, want 2 (N-1)", snap.Retransmissions)
	}
	if snap.ISent != 3 {
		t.Fatalf("I-frames sent = %d, want 3", snap.ISent)
	}
}

func TestOpenRetransmitExhausted(t *testing.T) {
	// Scenario E.
	e := New(Params{Role: Transmitter, N: 3, T: 10 * time.Millisecond}, silentPort{}, nil)

	err := e.Open()
	if err != ErrRetransmitExhausted {
		t.Fatalf("err = %v, want ErrRetransmitExhausted", err)
	}
	snap := e.Stats().Snapshot()
	if snap.SetSent != 3 {
		t.Fatalf("SET sent = %d, want 3", snap.SetSent)
	}
	if snap.Timeouts != 3 || snap.Retransmissions != 2 {
		t.Fatalf("unexpected stats: %+v", snap)
	}
}

func TestReadAcceptsCleanFrame(t *testing.T) {
	wire := frame.EncodeInformation(0, []byte("payload"))
	p := &capturePort{input: wire}
	e := New(testParams(Receiver), p, nil)
	e.open = true

	buf := make([]byte, 64)
	n, err := e.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "payload" {
		t.Fatalf("Read returned %q, want %q", buf[:n], "payload")
	}
	if e.frameNumber != 1 {
		t.Fatalf("frameNumber = %d, want 1", e.frameNumber)
	}
	if len(p.written) != 1 || !bytes.Equal(p.written[0], frame.EncodeSupervisory(frame.AddrReply, frame.CtrlRR1)) {
		t.Fatalf("expected a single RR1 reply, got %v", p.written)
	}
}

func TestReadHandlesDuplicate(t *testing.T) {
	// Scenario D: after one frame already accepted (frameNumber=1,
	// expecting I1), the peer retransmits I0. The receiver must
	// re-send RR1 and discard the payload, then accept the genuine I1
	// that follows.
	var input []byte
	input = append(input, frame.EncodeInformation(0, []byte("stale"))...)
	input = append(input, frame.EncodeInformation(1, []byte("fresh"))...)

	p := &capturePort{input: input}
	e := New(testParams(Receiver), p, nil)
	e.open = true
	e.frameNumber = 1
	e.framesReceived = 1

	buf := make([]byte, 64)
	n, err := e.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "fresh" {
		t.Fatalf("Read returned %q, want %q", buf[:n], "fresh")
	}
	if e.frameNumber != 0 {
		t.Fatalf("frameNumber = %d, want 0", e.frameNumber)
	}

	snap := e.Stats().Snapshot()
	if snap.Duplicated != 1 {
		t.Fatalf("duplicated = %d, want 1", snap.Duplicated)
	}
	// First reply acknowledges the duplicate with the still-current
	// RR1; second reply is RR0 for the newly accepted frame.
	if len(p.written) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(p.written))
	}
	if !bytes.Equal(p.written[0], frame.EncodeSupervisory(frame.AddrReply, frame.CtrlRR1)) {
		t.Fatalf("first reply = % X, want RR1", p.written[0])
	}
	if !bytes.Equal(p.written[1], frame.EncodeSupervisory(frame.AddrReply, frame.CtrlRR0)) {
		t.Fatalf("second reply = % X, want RR0", p.written[1])
	}
}

func TestReadHandlesRetransmittedSet(t *testing.T) {
	var input []byte
	input = append(input, frame.EncodeSupervisory(frame.AddrCommand, frame.CtrlSET)...)
	input = append(input, frame.EncodeInformation(0, []byte("ok"))...)

	p := &capturePort{input: input}
	e := New(testParams(Receiver), p, nil)
	e.open = true

	buf := make([]byte, 64)
	n, err := e.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "ok" {
		t.Fatalf("Read returned %q, want %q", buf[:n], "ok")
	}
	if len(p.written) != 2 {
		t.Fatalf("expected UA then RR, got %d replies", len(p.written))
	}
	if !bytes.Equal(p.written[0], frame.EncodeSupervisory(frame.AddrReply, frame.CtrlUA)) {
		t.Fatalf("first reply = % X, want UA", p.written[0])
	}
}

func TestReadSendsRejOnPayloadCorruption(t *testing.T) {
	wire := frame.EncodeInformation(0, []byte{0x10, 0x20, 0x30, 0x40})
	wire[6] ^= 0x01 // corrupt a payload byte, as in the frame package test

	valid := frame.EncodeInformation(0, []byte("clean"))
	p := &capturePort{input: append(append([]byte(nil), wire...), valid...)}
	e := New(testParams(Receiver), p, nil)
	e.open = true

	buf := make([]byte, 64)
	n, err := e.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "clean" {
		t.Fatalf("Read returned %q, want %q", buf[:n], "clean")
	}
	if len(p.written) != 2 {
		t.Fatalf("expected REJ0 then RR1, got %d replies", len(p.written))
	}
	if !bytes.Equal(p.written[0], frame.EncodeSupervisory(frame.AddrReply, frame.CtrlREJ0)) {
		t.Fatalf("first reply = % X, want REJ0", p.written[0])
	}
}
