// Package appproto implements the application layer that sits above
// the link-layer engine: files are chunked into packets carrying a
// one-byte type, start/end control packets carry TLV fields, and data
// packets carry a mod-100 sequence number and a two-byte length.
package appproto

import (
	"encoding/binary"
	"fmt"
)

// Packet type byte values.
const (
	TypeStart byte = 1
	TypeData  byte = 2
	TypeEnd   byte = 3
)

// TLV field tags used by start/end control packets.
const (
	TLVFileSize byte = 0
	TLVFileName byte = 1
)

// fileSizeLen is the fixed width chosen for the file-size TLV value,
// resolving spec.md §9's open question in favor of a portable,
// little-endian 4-byte integer instead of the original's native byte
// order.
const fileSizeLen = 4

// EncodeControl builds a start (TypeStart) or end (TypeEnd) packet
// carrying the file size and filename TLVs.
func EncodeControl(packetType byte, fileSize uint32, filename string) []byte {
	sizeVal := make([]byte, fileSizeLen)
	binary.LittleEndian.PutUint32(sizeVal, fileSize)

	out := make([]byte, 0, 1+2+fileSizeLen+2+len(filename))
	out = append(out, packetType)
	out = appendTLV(out, TLVFileSize, sizeVal)
	out = appendTLV(out, TLVFileName, []byte(filename))
	return out
}

func appendTLV(dst []byte, tag byte, value []byte) []byte {
	dst = append(dst, tag, byte(len(value)))
	dst = append(dst, value...)
	return dst
}

// Control is a decoded start/end packet.
type Control struct {
	Type     byte
	FileSize uint32
	FileName string
}

// DecodeControl parses a start or end packet's TLV fields.
func DecodeControl(buf []byte) (Control, error) {
	if len(buf) < 1 {
		return Control{}, fmt.Errorf("appproto: empty control packet")
	}
	c := Control{Type: buf[0]}
	if c.Type != TypeStart && c.Type != TypeEnd {
		return Control{}, fmt.Errorf("appproto: not a control packet: type=%d", c.Type)
	}

	pos := 1
	for pos < len(buf) {
		if pos+2 > len(buf) {
			return Control{}, fmt.Errorf("appproto: truncated TLV header at byte %d", pos)
		}
		tag := buf[pos]
		length := int(buf[pos+1])
		pos += 2
		if pos+length > len(buf) {
			return Control{}, fmt.Errorf("appproto: truncated TLV value at byte %d", pos)
		}
		value := buf[pos : pos+length]
		pos += length

		switch tag {
		case TLVFileSize:
			if length != fileSizeLen {
				return Control{}, fmt.Errorf("appproto: file size TLV has length %d, want %d", length, fileSizeLen)
			}
			c.FileSize = binary.LittleEndian.Uint32(value)
		case TLVFileName:
			c.FileName = string(value)
		}
	}
	return c, nil
}

// EncodeData builds a data packet: type=2, sequence number (mod 100),
// two-byte big-endian length, payload.
func EncodeData(seq int, payload []byte) []byte {
	s := byte(seq % 100)
	l1 := byte(len(payload) & 0xFF)
	l2 := byte((len(payload) >> 8) & 0xFF)

	out := make([]byte, 0, 4+len(payload))
	out = append(out, TypeData, s, l2, l1)
	out = append(out, payload...)
	return out
}

// DataPacket is a decoded data packet.
type DataPacket struct {
	Seq     int
	Payload []byte
}

// DecodeData parses a data packet produced by EncodeData.
func DecodeData(buf []byte) (DataPacket, error) {
	if len(buf) < 4 {
		return DataPacket{}, fmt.Errorf("appproto: data packet too short: %d bytes", len(buf))
	}
	if buf[0] != TypeData {
		return DataPacket{}, fmt.Errorf("appproto: not a data packet: type=%d", buf[0])
	}
	seq := int(buf[1])
	length := int(buf[2])<<8 | int(buf[3])
	if 4+length > len(buf) {
		return DataPacket{}, fmt.Errorf("appproto: data packet declares length %d but has %d bytes of payload", length, len(buf)-4)
	}
	return DataPacket{Seq: seq, Payload: buf[4 : 4+length]}, nil
}
