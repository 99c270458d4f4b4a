package linklayer

import "github.com/rdproto/rdlink/pkg/frame"

// Open performs the connection setup handshake. A Transmitter sends SET
// and retries under the alarm/N-attempts rule until a UA arrives; a
// Receiver loops, with no timeout, until it recognizes a SET, then
// sends UA once.
func (e *Engine) Open() error {
	var err error
	if e.params.Role == Transmitter {
		err = e.openTransmitter()
	} else {
		err = e.openReceiver()
	}
	if err == nil {
		e.open = true
		e.frameNumber = 0
		e.framesReceived = 0
	}
	return err
}

func (e *Engine) openTransmitter() error {
	attemptsUsed := 0
	for {
		if err := e.send(frame.EncodeSupervisory(frame.AddrCommand, frame.CtrlSET)); err != nil {
			return err
		}
		e.stats.IncSetSent()
		e.event("set_sent", nil)

		e.alarm.Arm(e.params.T)
		m := frame.New(frame.TypeConnection, frame.AddrReply, frame.CtrlUA)

		timedOut, err := e.awaitFrame(m)
		e.foldInvalidBCC1(m)
		if err != nil {
			return err
		}
		if timedOut {
			e.stats.IncTimeouts()
			e.event("timeout", map[string]any{"phase": "open"})
			attemptsUsed++
			if attemptsUsed >= e.params.N {
				return ErrRetransmitExhausted
			}
			e.stats.IncRetransmissions()
			continue
		}

		e.alarm.Cancel()
		e.stats.IncUAReceived()
		e.event("ua_received", nil)
		return nil
	}
}

func (e *Engine) openReceiver() error {
	m := frame.New(frame.TypeConnection, frame.AddrCommand, frame.CtrlSET)
	for {
		got, b, err := e.readByte()
		if err != nil {
			return err
		}
		if !got {
			continue
		}
		if m.Step(b) == frame.StateStp {
			break
		}
	}
	e.foldInvalidBCC1(m)
	e.stats.IncSetReceived()
	e.event("set_received", nil)

	if err := e.send(frame.EncodeSupervisory(frame.AddrReply, frame.CtrlUA)); err != nil {
		return err
	}
	e.stats.IncUASent()
	e.event("ua_sent", nil)
	return nil
}
