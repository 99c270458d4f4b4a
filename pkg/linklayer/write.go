package linklayer

import "github.com/rdproto/rdlink/pkg/frame"

// Write sends one I-frame reliably, blocking until it is acknowledged
// or the retransmission count is exhausted. A REJ from the peer does
// not consume one of the N attempts: only real timeouts count, so N
// real timeouts are required before Write gives up (spec.md §9's
// resolution of the attempt-counting open question).
func (e *Engine) Write(buf []byte) (int, error) {
	if !e.open {
		return 0, ErrNotOpen
	}
	if len(buf) > e.params.MaxPayload {
		return 0, ErrPayloadTooLarge
	}

	expectedRR := frame.CtrlRR(1 - e.frameNumber)
	attemptsUsed := 0

	for {
		if err := e.send(frame.EncodeInformation(e.frameNumber, buf)); err != nil {
			return 0, err
		}
		e.stats.IncISent()
		e.event("i_sent", map[string]any{"seq": e.frameNumber})

		e.alarm.Arm(e.params.T)
		m := frame.New(frame.TypeWrite, frame.AddrReply, expectedRR)

		timedOut, err := e.awaitFrame(m)
		e.foldInvalidBCC1(m)
		if err != nil {
			return 0, err
		}
		if timedOut {
			e.stats.IncTimeouts()
			e.event("timeout", map[string]any{"phase": "write", "seq": e.frameNumber})
			attemptsUsed++
			if attemptsUsed >= e.params.N {
				return 0, ErrRetransmitExhausted
			}
			e.stats.IncRetransmissions()
			continue
		}

		if m.REJ() {
			e.stats.IncREJReceived()
			e.event("rej_received", map[string]any{"seq": e.frameNumber})
			continue
		}

		e.alarm.Cancel()
		e.stats.IncRRReceived()
		e.event("rr_received", map[string]any{"seq": e.frameNumber})
		e.frameNumber ^= 1
		return len(buf), nil
	}
}
