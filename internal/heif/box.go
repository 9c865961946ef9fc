package heif

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var errTruncated = errors.New("heif: truncated data")

// box is a parsed ISO BMFF box. Raw holds header and body, Payload only the body.
type box struct {
	typ     string
	raw     []byte
	payload []byte
}

func readBoxes(data []byte) ([]box, error) {
	var boxes []box
	for off := 0; off < len(data); {
		if len(data)-off < 8 {
			return nil, fmt.Errorf("heif: box header at %d: %w", off, errTruncated)
		}
		size := uint64(binary.BigEndian.Uint32(data[off : off+4]))
		typ := string(data[off+4 : off+8])
		header := 8
		switch size {
		case 0:
			size = uint64(len(data) - off)
		case 1:
			if len(data)-off < 16 {
				return nil, fmt.Errorf("heif: large box %q at %d: %w", typ, off, errTruncated)
			}
			size = binary.BigEndian.Uint64(data[off+8 : off+16])
			header = 16
		}
		if size < uint64(header) || size > uint64(len(data)-off) {
			return nil, fmt.Errorf("heif: box %q at %d has invalid size %d", typ, off, size)
		}
		end := off + int(size)
		boxes = append(boxes, box{
			typ:     typ,
			raw:     data[off:end],
			payload: data[off+header : end],
		})
		off = end
	}
	return boxes, nil
}

func findBox(boxes []box, typ string) (box, bool) {
	for _, b := range boxes {
		if b.typ == typ {
			return b, true
		}
	}
	return box{}, false
}

// reader is a sticky-error big-endian cursor over a box payload.
type reader struct {
	b   []byte
	off int
	err error
}

func newReader(b []byte) *reader {
	return &reader{b: b}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.b)-r.off < n {
		r.err = errTruncated
		return nil
	}
	p := r.b[r.off : r.off+n]
	r.off += n
	return p
}

func (r *reader) u8() uint8 {
	p := r.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

func (r *reader) u16() uint16 {
	p := r.take(2)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint16(p)
}

func (r *reader) u32() uint32 {
	p := r.take(4)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint32(p)
}

func (r *reader) u64() uint64 {
	p := r.take(8)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint64(p)
}

// uN reads an unsigned integer of 0, 4 or 8 bytes, as used by iloc.
func (r *reader) uN(size int) uint64 {
	switch size {
	case 0:
		return 0
	case 4:
		return uint64(r.u32())
	case 8:
		return r.u64()
	default:
		if r.err == nil {
			r.err = fmt.Errorf("heif: unsupported field size %d", size)
		}
		return 0
	}
}

// id reads an item id that is 16-bit in version 0 boxes and 32-bit otherwise.
func (r *reader) id(wide bool) uint32 {
	if wide {
		return r.u32()
	}
	return uint32(r.u16())
}

func (r *reader) fourCC() string {
	return string(r.take(4))
}

// cstring reads a null-terminated string. A missing terminator at the end of
// the payload is tolerated.
func (r *reader) cstring() string {
	if r.err != nil {
		return ""
	}
	rest := r.b[r.off:]
	for i, c := range rest {
		if c == 0 {
			r.off += i + 1
			return string(rest[:i])
		}
	}
	r.off = len(r.b)
	return string(rest)
}

// fullBox reads the version and flags header of a FullBox.
func (r *reader) fullBox() (version uint8, flags uint32) {
	v := r.u32()
	return uint8(v >> 24), v & 0x00FFFFFF
}

func (r *reader) remaining() []byte {
	if r.err != nil {
		return nil
	}
	return r.b[r.off:]
}
