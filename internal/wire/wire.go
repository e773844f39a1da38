// Package wire frames shared-tier entries.
//
//	magic(4) | ver(1) | gen(u64 be) | clen(u16 be) | class(clen) | vlen(u32 be) | payload(vlen)
//
// The class is carried so an entry written for one resource class can never be
// served to another, even if two sessions disagree on key layout.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("finsync: corrupt shared entry")
	ErrClass   = errors.New("finsync: invalid class length")
	magic4     = [...]byte{'F', 'S', 'Y', 'N'}
)

const hdr = 4 + 1 + 8 + 2

// Entry is a decoded frame. Payload aliases the input buffer.
type Entry struct {
	Gen     uint64
	Class   string
	Payload []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

func Encode(e Entry) ([]byte, error) {
	if l := len(e.Class); l == 0 || l > 0xFFFF {
		return nil, ErrClass
	}
	var buf bytes.Buffer
	buf.Grow(hdr + len(e.Class) + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], e.Gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Class)))
	buf.Write(u2[:])
	buf.WriteString(e.Class)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)
	return buf.Bytes(), nil
}

// Decode parses a frame. Trailing bytes are rejected.
func Decode(b []byte) (Entry, error) {
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return Entry{}, ErrCorrupt
	}
	off := 5

	gen := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	clen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if clen == 0 || clen > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	class := string(b[off : off+clen])
	off += clen

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}
	return Entry{Gen: gen, Class: class, Payload: b[off:]}, nil
}
