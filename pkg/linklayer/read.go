package linklayer

import "github.com/rdproto/rdlink/pkg/frame"

// Read receives one I-frame into out, returning the unstuffed payload
// length. It reacts to the receive state machine's output flags to stay
// in lockstep with a transmitter that is retransmitting SET (lost UA)
// or a prior frame (lost RR/REJ), without surfacing either condition to
// the caller.
func (e *Engine) Read(out []byte) (int, error) {
	if !e.open {
		return 0, ErrNotOpen
	}

	for {
		m := frame.New(frame.TypeRead, frame.AddrCommand, frame.CtrlI(e.frameNumber))

		for {
			got, b, err := e.readByte()
			if err != nil {
				return 0, err
			}
			if !got {
				continue
			}
			if m.Step(b) == frame.StateStp {
				break
			}
		}
		e.foldInvalidBCC1(m)

		switch {
		case m.ACK() && e.framesReceived == 0:
			// The transmitter retransmitted SET because our UA was
			// lost; resend UA and keep reading.
			e.stats.IncSetReceived()
			e.event("set_retransmit_received", nil)
			if err := e.send(frame.EncodeSupervisory(frame.AddrReply, frame.CtrlUA)); err != nil {
				return 0, err
			}
			e.stats.IncUASent()

		case m.Duplicate():
			// The transmitter retransmitted a prior frame; re-send
			// the current RR (piggybacking "next expected" = the
			// frame number we haven't advanced past yet).
			e.stats.IncDuplicated()
			e.event("duplicate_received", nil)
			if err := e.send(frame.EncodeSupervisory(frame.AddrReply, frame.CtrlRR(e.frameNumber))); err != nil {
				return 0, err
			}
			e.stats.IncRRSent()

		case m.REJ():
			e.stats.IncInvalidBCC2()
			e.event("rej_sent", map[string]any{"seq": e.frameNumber})
			if err := e.send(frame.EncodeSupervisory(frame.AddrReply, frame.CtrlREJ(e.frameNumber))); err != nil {
				return 0, err
			}
			e.stats.IncREJSent()

		default:
			payload := m.Payload()
			n := copy(out, payload)
			e.stats.IncIReceived()
			e.framesReceived++
			e.event("i_received", map[string]any{"seq": e.frameNumber, "len": len(payload)})

			e.frameNumber ^= 1
			if err := e.send(frame.EncodeSupervisory(frame.AddrReply, frame.CtrlRR(e.frameNumber))); err != nil {
				return 0, err
			}
			e.stats.IncRRSent()
			return n, nil
		}
	}
}
