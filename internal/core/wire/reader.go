// Package wire provides a bounds-checked big-endian cursor over a byte slice.
package wire

import "encoding/binary"

// Reader walks a byte slice. Every read checks the remaining length first
// and reports ok=false instead of reading past the end; a failed read does
// not move the cursor.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader positioned at the start of b.
func NewReader(b []byte) Reader {
	return Reader{buf: b}
}

// Offset returns the cursor position from the start of the slice.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Has reports whether at least n more bytes are available.
func (r *Reader) Has(n int) bool {
	return n >= 0 && r.Remaining() >= n
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) bool {
	if !r.Has(n) {
		return false
	}
	r.off += n
	return true
}

// Uint8 reads one byte.
func (r *Reader) Uint8() (uint8, bool) {
	if !r.Has(1) {
		return 0, false
	}
	v := r.buf[r.off]
	r.off++
	return v, true
}

// Uint16 reads a big-endian uint16.
func (r *Reader) Uint16() (uint16, bool) {
	if !r.Has(2) {
		return 0, false
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, true
}

// Uint32 reads a big-endian uint32.
func (r *Reader) Uint32() (uint32, bool) {
	if !r.Has(4) {
		return 0, false
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, true
}

// Bytes returns the next n bytes without copying.
func (r *Reader) Bytes(n int) ([]byte, bool) {
	if !r.Has(n) {
		return nil, false
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, true
}

// PeekUint16At reads a big-endian uint16 at an absolute offset without
// moving the cursor.
func (r *Reader) PeekUint16At(off int) (uint16, bool) {
	if off < 0 || off+2 > len(r.buf) {
		return 0, false
	}
	return binary.BigEndian.Uint16(r.buf[off:]), true
}
