package linklayer

import (
	"log"

	"github.com/rdproto/rdlink/pkg/frame"
)

// Close performs the disconnect handshake and releases the serial
// port. A Transmitter always initiates (DISC/DISC/UA); a Receiver
// always waits for the initiator's DISC before answering. show renders
// the statistics summary to the caller-visible log if true.
func (e *Engine) Close(show bool) error {
	var err error
	if e.params.Role == Transmitter {
		err = e.closeTransmitter()
	} else {
		err = e.closeReceiver()
	}

	e.open = false
	closeErr := e.port.Close()

	if show {
		log.Printf("linklayer stats: %s", e.stats.String())
		e.event("stats", nil)
	}

	if err != nil {
		return err
	}
	return closeErr
}

func (e *Engine) closeTransmitter() error {
	attemptsUsed := 0
	for {
		if err := e.send(frame.EncodeSupervisory(frame.AddrCommand, frame.CtrlDISC)); err != nil {
			return err
		}
		e.stats.IncDISCSent()
		e.event("disc_sent", nil)

		e.alarm.Arm(e.params.T)
		m := frame.New(frame.TypeDisconnection, frame.AddrReply, frame.CtrlDISC)

		timedOut, err := e.awaitFrame(m)
		e.foldInvalidBCC1(m)
		if err != nil {
			return err
		}
		if timedOut {
			e.stats.IncTimeouts()
			e.event("timeout", map[string]any{"phase": "close"})
			attemptsUsed++
			if attemptsUsed >= e.params.N {
				return ErrRetransmitExhausted
			}
			e.stats.IncRetransmissions()
			continue
		}

		e.alarm.Cancel()
		e.stats.IncDISCReceived()
		e.event("disc_received", nil)
		break
	}

	if err := e.send(frame.EncodeSupervisory(frame.AddrReply, frame.CtrlUA)); err != nil {
		return err
	}
	e.stats.IncUASent()
	e.event("ua_sent", nil)
	return nil
}

func (e *Engine) closeReceiver() error {
	m := frame.New(frame.TypeDisconnection, frame.AddrCommand, frame.CtrlDISC)
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
	e.stats.IncDISCReceived()
	e.event("disc_received", nil)

	attemptsUsed := 0
	for {
		if err := e.send(frame.EncodeSupervisory(frame.AddrReply, frame.CtrlDISC)); err != nil {
			return err
		}
		e.stats.IncDISCSent()
		e.event("disc_sent", nil)

		e.alarm.Arm(e.params.T)
		ua := frame.New(frame.TypeDisconnection, frame.AddrReply, frame.CtrlUA)

		timedOut, err := e.awaitFrame(ua)
		e.foldInvalidBCC1(ua)
		if err != nil {
			return err
		}
		if timedOut {
			e.stats.IncTimeouts()
			e.event("timeout", map[string]any{"phase": "close"})
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
