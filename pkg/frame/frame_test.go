package frame

import (
	"bytes"
	"testing"
)

func feed(m *Machine, bs []byte) State {
	var s State
	for _, b := range bs {
		s = m.Step(b)
		if s == StateStp {
			return s
		}
	}
	return s
}

func TestEncodeSupervisoryCleanOpen(t *testing.T) {
	// Scenario A: TX sends SET, RX replies UA.
	set := EncodeSupervisory(AddrCommand, CtrlSET)
	if !bytes.Equal(set, []byte{0x7E, 0x03, 0x03, 0x00, 0x7E}) {
		t.Fatalf("SET frame = % X, want 7E 03 03 00 7E", set)
	}

	ua := EncodeSupervisory(AddrReply, CtrlUA)
	if !bytes.Equal(ua, []byte{0x7E, 0x01, 0x07, 0x06, 0x7E}) {
		t.Fatalf("UA frame = % X, want 7E 01 07 06 7E", ua)
	}
}

func TestEncodeSupervisoryCleanClose(t *testing.T) {
	// Scenario F.
	disc := EncodeSupervisory(AddrCommand, CtrlDISC)
	if !bytes.Equal(disc, []byte{0x7E, 0x03, 0x0B, 0x08, 0x7E}) {
		t.Fatalf("TX DISC = % X, want 7E 03 0B 08 7E", disc)
	}
	discReply := EncodeSupervisory(AddrReply, CtrlDISC)
	if !bytes.Equal(discReply, []byte{0x7E, 0x01, 0x0B, 0x0A, 0x7E}) {
		t.Fatalf("RX DISC = % X, want 7E 01 0B 0A 7E", discReply)
	}
	ua := EncodeSupervisory(AddrReply, CtrlUA)
	if !bytes.Equal(ua, []byte{0x7E, 0x01, 0x07, 0x06, 0x7E}) {
		t.Fatalf("TX UA = % X, want 7E 01 07 06 7E", ua)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, payload := range [][]byte{
		{},
		{0x00},
		{0x01, 0x02, 0x03},
		bytes.Repeat([]byte{0xAB}, 300),
	} {
		for seq := 0; seq < 2; seq++ {
			wire := EncodeInformation(seq, payload)

			m := New(TypeRead, AddrCommand, CtrlI(seq))
			state := feed(m, wire)
			if state != StateStp {
				t.Fatalf("seq=%d len=%d: machine did not reach STP", seq, len(payload))
			}
			if m.REJ() {
				t.Fatalf("seq=%d len=%d: unexpected REJ", seq, len(payload))
			}
			if !bytes.Equal(m.Payload(), payload) {
				t.Fatalf("seq=%d: payload = % X, want % X", seq, m.Payload(), payload)
			}
		}
	}
}

func TestStuffedPayloadRoundTrip(t *testing.T) {
	// Scenario B.
	payload := []byte{0x7E, 0x7D, 0x41}
	wire := EncodeInformation(0, payload)

	want := []byte{
		0x7E,       // FLAG
		0x03,       // A
		0x00,       // C = I0
		0x03,       // BCC1 = A^C
		0x7D, 0x5E, // stuffed 0x7E
		0x7D, 0x5D, // stuffed 0x7D
		0x41,       // 0x41 passes through
		0x42,       // BCC2 = 0x7E^0x7D^0x41
		0x7E,       // FLAG
	}
	if !bytes.Equal(wire, want) {
		t.Fatalf("wire = % X, want % X", wire, want)
	}

	m := New(TypeRead, AddrCommand, CtrlI0)
	if feed(m, wire) != StateStp || m.REJ() {
		t.Fatalf("machine did not cleanly accept stuffed frame")
	}
	if !bytes.Equal(m.Payload(), payload) {
		t.Fatalf("decoded payload = % X, want % X", m.Payload(), payload)
	}
}

func TestHeaderBitFlipNeverCleanlyAccepted(t *testing.T) {
	// A single bit flip anywhere in A, C, or BCC1 (indices 1-3) must
	// either keep the machine from ever reaching BCC1_OK, or show up
	// as an invalid-BCC1 count.
	for idx := 1; idx <= 3; idx++ {
		wire := EncodeInformation(0, []byte{0x10, 0x20, 0x30})
		wire[idx] ^= 0x01

		m := New(TypeRead, AddrCommand, CtrlI0)
		reachedBcc1Ok := false
		for _, b := range wire {
			if m.Step(b) == StateBcc1Ok {
				reachedBcc1Ok = true
			}
		}
		if reachedBcc1Ok && m.InvalidBCC1() == 0 {
			t.Fatalf("byte %d corrupted: reached BCC1_OK without any invalid-BCC1 count", idx)
		}
	}
}

func TestPayloadBitFlipCausesReject(t *testing.T) {
	payload := []byte{0x10, 0x20, 0x30, 0x40}
	wire := EncodeInformation(1, payload)
	// Flip a bit inside the stuffed payload region (well clear of the
	// sentinel/header bytes).
	wire[6] ^= 0x01

	m := New(TypeRead, AddrCommand, CtrlI1)
	if feed(m, wire) != StateStp {
		t.Fatalf("machine should still reach STP to let the engine send REJ")
	}
	if !m.REJ() {
		t.Fatalf("expected REJ after payload corruption")
	}
}

func TestWriteMachineAcceptsAlternateREJ(t *testing.T) {
	// Expecting RR1 (we just sent frame 0); the peer rejects with REJ0.
	rej0 := EncodeSupervisory(AddrReply, CtrlREJ0)
	m := New(TypeWrite, AddrReply, CtrlRR1)
	if feed(m, rej0) != StateStp {
		t.Fatalf("write machine should terminate on REJ0 while expecting RR1")
	}
	if !m.REJ() {
		t.Fatalf("expected REJ flag set")
	}
}

func TestReadMachineDetectsDuplicateAndAck(t *testing.T) {
	// Expecting I0; a retransmitted I1 should set Duplicate.
	dupWire := EncodeInformation(1, []byte{0x01})
	m := New(TypeRead, AddrCommand, CtrlI0)
	if feed(m, dupWire) != StateStp || !m.Duplicate() {
		t.Fatalf("expected duplicate flag when I1 arrives while expecting I0")
	}

	// Expecting I0; a retransmitted SET should set ACK.
	setWire := EncodeSupervisory(AddrCommand, CtrlSET)
	m2 := New(TypeRead, AddrCommand, CtrlI0)
	if feed(m2, setWire) != StateStp || !m2.ACK() {
		t.Fatalf("expected ACK flag when SET arrives while expecting an I-frame")
	}
}

func TestMultipleFramesSeparatedByExtraFlags(t *testing.T) {
	var stream []byte
	stream = append(stream, FLAG, FLAG, FLAG)
	stream = append(stream, EncodeInformation(0, []byte("hello"))...)
	stream = append(stream, FLAG, FLAG)
	stream = append(stream, EncodeInformation(1, []byte("world"))...)

	seq := 0
	pos := 0
	var got [][]byte
	for len(got) < 2 {
		m := New(TypeRead, AddrCommand, CtrlI(seq))
		for pos < len(stream) {
			b := stream[pos]
			pos++
			if m.Step(b) == StateStp {
				break
			}
		}
		if m.REJ() || m.State() != StateStp {
			t.Fatalf("frame %d: machine did not cleanly accept", len(got))
		}
		got = append(got, append([]byte(nil), m.Payload()...))
		seq ^= 1
	}
	if string(got[0]) != "hello" || string(got[1]) != "world" {
		t.Fatalf("got %q, want [hello world]", got)
	}
}
