// Package frame implements the wire-level codec and the byte-driven
// receive state machine for the link-layer protocol: byte stuffing,
// the two checksums (BCC1 over the header, BCC2 over the payload), and
// framing with the sentinel bytes FLAG and ESC.
package frame

const (
	FLAG byte = 0x7E
	ESC  byte = 0x7D

	stuffedFlag byte = 0x5E
	stuffedEsc  byte = 0x5D
)

// Control byte values, per the frame-kind table.
const (
	CtrlSET  byte = 0x03
	CtrlUA   byte = 0x07
	CtrlDISC byte = 0x0B
	CtrlI0   byte = 0x00
	CtrlI1   byte = 0x80
	CtrlRR0  byte = 0xAA
	CtrlRR1  byte = 0xAB
	CtrlREJ0 byte = 0x54
	CtrlREJ1 byte = 0x55
)

// Address values. The wire examples in the spec's worked scenarios take
// precedence over the (self-contradicting) prose description: AddrCommand
// is carried by SET, by I-frames, and by the DISC that opens a close
// exchange; AddrReply is carried by every UA, by RR, by REJ, and by the
// DISC a receiver sends back once it has observed the initiator's DISC.
const (
	AddrCommand byte = 0x03
	AddrReply   byte = 0x01
)

// CtrlI returns the control byte for an information frame carrying the
// given alternating-bit sequence number (0 or 1).
func CtrlI(seq int) byte {
	if seq == 0 {
		return CtrlI0
	}
	return CtrlI1
}

// CtrlRR returns the control byte of the RR that announces seq as "next
// expected", i.e. the RR that acknowledges frame 1-seq.
func CtrlRR(seq int) byte {
	if seq == 0 {
		return CtrlRR0
	}
	return CtrlRR1
}

// CtrlREJ returns the control byte of the REJ that asks for a resend of
// sequence number seq.
func CtrlREJ(seq int) byte {
	if seq == 0 {
		return CtrlREJ0
	}
	return CtrlREJ1
}

// stuff appends the byte-stuffed encoding of b to dst.
func stuff(dst []byte, b byte) []byte {
	switch b {
	case FLAG:
		return append(dst, ESC, stuffedFlag)
	case ESC:
		return append(dst, ESC, stuffedEsc)
	default:
		return append(dst, b)
	}
}

// EncodeInformation builds a complete I-frame for the given sequence
// number and payload: FLAG, address, control, BCC1, stuffed payload,
// stuffed BCC2, FLAG.
func EncodeInformation(seq int, payload []byte) []byte {
	ctrl := CtrlI(seq)
	bcc1 := AddrCommand ^ ctrl

	out := make([]byte, 0, 6+2*len(payload)+2)
	out = append(out, FLAG, AddrCommand, ctrl, bcc1)

	var bcc2 byte
	for _, b := range payload {
		bcc2 ^= b
		out = stuff(out, b)
	}
	out = stuff(out, bcc2)
	out = append(out, FLAG)
	return out
}

// EncodeSupervisory builds a five-byte supervisory frame: FLAG, A, C,
// A^C, FLAG. No stuffing is needed because none of the defined
// address/control combinations collide with FLAG or ESC.
func EncodeSupervisory(address, control byte) []byte {
	bcc1 := address ^ control
	return []byte{FLAG, address, control, bcc1, FLAG}
}
