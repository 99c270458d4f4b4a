package appproto

import (
	"fmt"
	"io"
	"log"

	"github.com/rdproto/rdlink/pkg/linklayer"
)

// writer is the subset of linklayer.Engine a Sender needs.
type writer interface {
	Write(buf []byte) (int, error)
}

// reader is the subset of linklayer.Engine a Receiver needs.
type reader interface {
	Read(out []byte) (int, error)
}

// Sender chunks a file into start/data/end packets and drives a
// link-layer engine. The chunk size is set by the caller; it is not
// derived from the engine's maximum payload.
type Sender struct {
	Engine     writer
	ChunkSize  int
}

// NewSender returns a Sender that writes through engine, chunking data
// packets to chunkSize bytes of file content each (the data packet
// framing overhead is added on top).
func NewSender(engine writer, chunkSize int) *Sender {
	return &Sender{Engine: engine, ChunkSize: chunkSize}
}

// Run reads all of r, determines its length is unknown ahead of time so
// callers that know the size should prefer RunSized; this variant reads
// fully into memory first (acceptable for the file sizes this protocol
// targets) so the start packet can declare an accurate size.
func (s *Sender) Run(r io.Reader, filename string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("appproto: failed to read input: %w", err)
	}
	return s.RunSized(data, filename)
}

// RunSized sends a fully buffered file whose size is already known.
func (s *Sender) RunSized(data []byte, filename string) error {
	if _, err := s.Engine.Write(EncodeControl(TypeStart, uint32(len(data)), filename)); err != nil {
		return fmt.Errorf("appproto: failed to send start packet: %w", err)
	}

	seq := 0
	for off := 0; off < len(data); off += s.ChunkSize {
		end := off + s.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		packet := EncodeData(seq, data[off:end])
		if _, err := s.Engine.Write(packet); err != nil {
			return fmt.Errorf("appproto: failed to send data packet %d: %w", seq, err)
		}
		seq++
	}

	if _, err := s.Engine.Write(EncodeControl(TypeEnd, uint32(len(data)), filename)); err != nil {
		return fmt.Errorf("appproto: failed to send end packet: %w", err)
	}
	return nil
}

// Receiver reconstructs a file from a stream of start/data/end packets.
type Receiver struct {
	Engine     reader
	MaxPayload int
}

// NewReceiver returns a Receiver that reads through engine, sized to
// accept up to maxPayload bytes per link-layer frame.
func NewReceiver(engine reader, maxPayload int) *Receiver {
	return &Receiver{Engine: engine, MaxPayload: maxPayload}
}

// Run reads packets until an end packet is seen, writing reassembled
// file content to w, and returns the filename declared by the start
// packet. The end packet's TLVs are fully parsed and compared against
// the start packet's, per spec.md §9's resolved open question: a
// mismatch is logged as a warning, not treated as a fatal error.
func (r *Receiver) Run(w io.Writer) (string, error) {
	buf := make([]byte, r.MaxPayload)

	n, err := r.Engine.Read(buf)
	if err != nil {
		return "", fmt.Errorf("appproto: failed to read start packet: %w", err)
	}
	start, err := DecodeControl(buf[:n])
	if err != nil {
		return "", fmt.Errorf("appproto: invalid start packet: %w", err)
	}
	if start.Type != TypeStart {
		return "", fmt.Errorf("appproto: expected start packet, got type %d", start.Type)
	}

	var received uint32
	for {
		n, err := r.Engine.Read(buf)
		if err != nil {
			return "", fmt.Errorf("appproto: failed to read packet: %w", err)
		}
		if n == 0 {
			return "", fmt.Errorf("appproto: empty packet")
		}

		switch buf[0] {
		case TypeData:
			dp, err := DecodeData(buf[:n])
			if err != nil {
				return "", fmt.Errorf("appproto: invalid data packet: %w", err)
			}
			if _, err := w.Write(dp.Payload); err != nil {
				return "", fmt.Errorf("appproto: failed to write output: %w", err)
			}
			received += uint32(len(dp.Payload))

		case TypeEnd:
			end, err := DecodeControl(buf[:n])
			if err != nil {
				return "", fmt.Errorf("appproto: invalid end packet: %w", err)
			}
			if end.FileSize != start.FileSize {
				log.Printf("appproto: warning: end packet file size %d does not match start packet %d", end.FileSize, start.FileSize)
			}
			if end.FileName != start.FileName {
				log.Printf("appproto: warning: end packet filename %q does not match start packet %q", end.FileName, start.FileName)
			}
			if received != start.FileSize {
				log.Printf("appproto: warning: received %d bytes, start packet declared %d", received, start.FileSize)
			}
			return start.FileName, nil

		default:
			return "", fmt.Errorf("appproto: unexpected packet type %d", buf[0])
		}
	}
}

// Ensure *linklayer.Engine satisfies the narrow interfaces above
// without appproto importing more of linklayer than it needs.
var (
	_ writer = (*linklayer.Engine)(nil)
	_ reader = (*linklayer.Engine)(nil)
)
