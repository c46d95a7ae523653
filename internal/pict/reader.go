package pict

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"golang.org/x/exp/constraints"
)

// reader is a big-endian cursor over a PICT byte stream. The first read
// past the end sets err; later reads return zero values.
type reader struct {
	b   []byte
	pos int
	err error
}

func newReader(b []byte) *reader {
	return &reader{b: b}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.b) {
		r.err = fmt.Errorf("read %d bytes at %d: %w", n, r.pos, io.ErrUnexpectedEOF)
		return nil
	}
	p := r.b[r.pos : r.pos+n]
	r.pos += n
	return p
}

func (r *reader) skip(n int) {
	r.take(n)
}

func (r *reader) u8() uint8 {
	if p := r.take(1); p != nil {
		return p[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if p := r.take(2); p != nil {
		return binary.BigEndian.Uint16(p)
	}
	return 0
}

func (r *reader) i16() int16 { return int16(r.u16()) }

func (r *reader) u32() uint32 {
	if p := r.take(4); p != nil {
		return binary.BigEndian.Uint32(p)
	}
	return 0
}

// rect reads a QuickDraw rectangle: top, left, bottom, right.
func (r *reader) rect() image.Rectangle {
	top, left := r.i16(), r.i16()
	bottom, right := r.i16(), r.i16()
	return image.Rect(int(left), int(top), int(right), int(bottom))
}

// writer builds a big-endian PICT byte stream.
type writer struct {
	b []byte
}

func (w *writer) u8(v uint8)   { w.b = append(w.b, v) }
func (w *writer) u16(v uint16) { w.b = binary.BigEndian.AppendUint16(w.b, v) }
func (w *writer) i16(v int16)  { w.u16(uint16(v)) }
func (w *writer) u32(v uint32) { w.b = binary.BigEndian.AppendUint32(w.b, v) }
func (w *writer) zero(n int)   { w.b = append(w.b, make([]byte, n)...) }
func (w *writer) raw(p []byte) { w.b = append(w.b, p...) }

func (w *writer) rect(r image.Rectangle) {
	w.i16(int16(r.Min.Y))
	w.i16(int16(r.Min.X))
	w.i16(int16(r.Max.Y))
	w.i16(int16(r.Max.X))
}

// padEven pads the stream to an even length.
func (w *writer) padEven() {
	if len(w.b)&1 != 0 {
		w.u8(0)
	}
}

// evenUp rounds n up to the next even number.
func evenUp[T constraints.Integer](n T) T {
	return n + n&1
}
