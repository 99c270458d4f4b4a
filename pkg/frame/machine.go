package frame

// Type identifies which kind of frame a Machine is currently trying to
// recognize. It changes the set of control bytes accepted in A_RCV and
// whether BCC1_OK delegates to the payload sub-routine.
type Type int

const (
	TypeConnection Type = iota
	TypeRead
	TypeWrite
	TypeDisconnection
)

// State is one of the six states of the receive automaton.
type State int

const (
	StateStart State = iota
	StateFlagRcv
	StateARcv
	StateCRcv
	StateBcc1Ok
	StateStp
)

// MaxPayload is the largest application payload this build supports.
// The receive buffer is sized at 2*MaxPayload+2 per the spec's
// data-model note, generous enough to hold a fully stuffed payload plus
// its BCC2 byte even though destuffed bytes are what actually get
// appended to it.
const MaxPayload = 1024

// Machine is a single-use, byte-driven recognizer for one frame. A new
// Machine (or a Reset one) must be constructed for every frame the
// engine waits for; lifetime is one call to Step-until-StateStp.
type Machine struct {
	typ          Type
	expectedAddr byte
	expectedCtrl byte

	state State
	buf   []byte
	bcc1  byte
	bcc2  byte
	esc   bool

	rej       bool
	ack       bool
	duplicate bool

	invalidBCC1 int
}

// New constructs a Machine expecting frames from expectedAddr with
// control byte expectedCtrl (the nominal value; typed alternatives are
// applied automatically per Type).
func New(typ Type, expectedAddr, expectedCtrl byte) *Machine {
	m := &Machine{
		typ:          typ,
		expectedAddr: expectedAddr,
		expectedCtrl: expectedCtrl,
	}
	m.Reset()
	return m
}

// Reset re-initializes the machine to STATE_START, ready to recognize a
// new frame of the same type/address/control. The spec requires this at
// the start of every operation that awaits a frame.
func (m *Machine) Reset() {
	m.state = StateStart
	m.buf = m.buf[:0]
	if cap(m.buf) == 0 {
		m.buf = make([]byte, 0, 2*MaxPayload+2)
	}
	m.bcc1 = 0
	m.bcc2 = 0
	m.esc = false
	m.rej = false
	m.ack = false
	m.duplicate = false
}

// State returns the machine's current state.
func (m *Machine) State() State { return m.state }

// REJ reports whether BCC2 failed, or an invalid escape sequence was
// seen, during this frame's reception.
func (m *Machine) REJ() bool { return m.rej }

// ACK reports whether a SET was accepted in place of the expected
// control byte (Read type only): the peer retransmitted SET because our
// UA was lost.
func (m *Machine) ACK() bool { return m.ack }

// Duplicate reports whether an I-frame with the unexpected sequence
// number was accepted (Read type only): the peer's retransmission of a
// prior frame.
func (m *Machine) Duplicate() bool { return m.duplicate }

// InvalidBCC1 returns how many times this machine resynchronized to
// START after a header-checksum mismatch in C_RCV while recognizing the
// current frame. Unlike REJ/ACK/Duplicate it is not reset between
// frames within the same attempt, since those resyncs never reach
// StateStp themselves.
func (m *Machine) InvalidBCC1() int { return m.invalidBCC1 }

// Payload returns the destuffed payload buffered for an accepted
// I-frame. Valid only after Step returns StateStp for a Read-type
// machine with ACK unset.
func (m *Machine) Payload() []byte { return m.buf }

// Step advances the automaton by one byte and returns the resulting
// state. Callers should keep feeding bytes until State() == StateStp
// (frame recognized, successfully or not — check REJ/ACK/Duplicate to
// tell the outcome apart) and then Reset before awaiting the next
// frame.
func (m *Machine) Step(b byte) State {
	switch m.state {
	case StateStart:
		if b == FLAG {
			m.state = StateFlagRcv
		}

	case StateFlagRcv:
		switch {
		case b == m.expectedAddr:
			m.rej = false
			m.ack = false
			m.duplicate = false
			m.bcc2 = 0
			m.bcc1 = b
			m.state = StateARcv
		case b == FLAG:
			// stay
		default:
			m.state = StateStart
		}

	case StateARcv:
		m.stepARcv(b)

	case StateCRcv:
		switch {
		case b == m.bcc1:
			m.buf = m.buf[:0]
			m.esc = false
			m.state = StateBcc1Ok
		case b == FLAG:
			m.state = StateFlagRcv
		default:
			m.invalidBCC1++
			m.state = StateStart
		}

	case StateBcc1Ok:
		if m.typ == TypeRead && !m.ack {
			m.stepPayload(b)
		} else if b == FLAG {
			m.state = StateStp
		} else {
			m.state = StateStart
		}

	case StateStp:
		// terminal; extra bytes are ignored until Reset.
	}
	return m.state
}

// stepARcv implements the A_RCV transitions, including the per-Type
// accepted control-byte alternatives.
func (m *Machine) stepARcv(b byte) {
	accept := func(setFlag *bool) {
		if setFlag != nil {
			*setFlag = true
		}
		m.bcc1 ^= b
		m.state = StateCRcv
	}

	switch {
	case b == m.expectedCtrl:
		accept(nil)
		return
	case b == FLAG:
		m.state = StateFlagRcv
		return
	}

	switch m.typ {
	case TypeWrite:
		switch {
		case m.expectedCtrl == CtrlRR0 && b == CtrlREJ1:
			accept(&m.rej)
			return
		case m.expectedCtrl == CtrlRR1 && b == CtrlREJ0:
			accept(&m.rej)
			return
		}
	case TypeRead:
		if b == CtrlSET {
			accept(&m.ack)
			return
		}
		switch {
		case m.expectedCtrl == CtrlI0 && b == CtrlI1:
			accept(&m.duplicate)
			return
		case m.expectedCtrl == CtrlI1 && b == CtrlI0:
			accept(&m.duplicate)
			return
		}
	}

	m.state = StateStart
}

// stepPayload implements the payload sub-routine run from BCC1_OK when
// reading an I-frame's payload: destuffing, BCC2 accumulation, and the
// final BCC2 comparison against the byte that precedes the closing
// FLAG.
func (m *Machine) stepPayload(b byte) {
	switch {
	case m.esc:
		m.esc = false
		switch b {
		case stuffedFlag:
			m.appendPayloadByte(FLAG)
		case stuffedEsc:
			m.appendPayloadByte(ESC)
		default:
			// Invalid escape sequence: corrupt frame.
			m.rej = true
			return
		}

	case b == ESC:
		m.esc = true

	case b == FLAG:
		if len(m.buf) == 0 {
			// No payload byte received yet; treat as malformed.
			m.rej = true
			m.state = StateStp
			return
		}
		// The last buffered byte is the received BCC2 candidate; it
		// was appended (and folded into the running accumulator) like
		// any other byte since we can't tell it apart from payload
		// until this closing FLAG arrives. Remove it from the buffer
		// and undo its contribution to recover the BCC2 computed over
		// the pure payload.
		receivedBCC2 := m.buf[len(m.buf)-1]
		m.buf = m.buf[:len(m.buf)-1]
		computed := m.bcc2 ^ receivedBCC2

		if receivedBCC2 == computed {
			m.state = StateStp
		} else {
			m.rej = true
			m.state = StateStp
		}

	default:
		m.appendPayloadByte(b)
	}

	if len(m.buf) >= 2*MaxPayload {
		m.state = StateStart
	}
}

func (m *Machine) appendPayloadByte(b byte) {
	m.buf = append(m.buf, b)
	m.bcc2 ^= b
}
