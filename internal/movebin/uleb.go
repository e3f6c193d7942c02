package movebin

import (
	"encoding/binary"
	"fmt"
)

// reader is a bounds-checked cursor over module bytes.
type reader struct {
	buf []byte // buf is the slice being read
	pos int    // pos is the offset of the next unread byte
}

// newReader creates a reader positioned at the start of buf.
func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

// remaining returns the number of unread bytes.
func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

// done reports whether every byte has been consumed.
func (r *reader) done() bool {
	return r.pos >= len(r.buf)
}

// next reads a single byte.
func (r *reader) next() (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("unexpected end of data at offset %d", r.pos)
	}

	b := r.buf[r.pos]
	r.pos++

	return b, nil
}

// take reads the next n bytes without copying.
func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("need %d bytes at offset %d, have %d", n, r.pos, r.remaining())
	}

	b := r.buf[r.pos : r.pos+n]
	r.pos += n

	return b, nil
}

// u32 reads a little-endian u32.
func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b), nil
}

// uleb reads a canonical ULEB128 value no larger than limit.
// Non-canonical encodings (trailing zero groups) are rejected so that
// re-encoding always reproduces the input.
func (r *reader) uleb(limit uint64) (uint64, error) {
	start := r.pos
	var value uint64

	for shift := uint(0); shift < 64; shift += 7 {
		b, err := r.next()
		if err != nil {
			return 0, err
		}

		group := uint64(b & 0x7F)
		if shift == 63 && group > 1 {
			return 0, fmt.Errorf("uleb128 overflow at offset %d", start)
		}

		value |= group << shift

		if b&0x80 == 0 {
			if b == 0 && shift > 0 {
				return 0, fmt.Errorf("non-canonical uleb128 at offset %d", start)
			}

			if value > limit {
				return 0, fmt.Errorf("uleb128 value %d exceeds %d at offset %d", value, limit, start)
			}

			return value, nil
		}
	}

	return 0, fmt.Errorf("uleb128 too long at offset %d", start)
}

// appendUleb appends the canonical ULEB128 encoding of v.
func appendUleb(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}

	return append(buf, byte(v))
}
