package pict

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	maxLiteral = 128
	maxRepeat  = 127

	// rows declaring more than this many bytes carry a 2 byte length
	longRowBytes = 250
)

var errPackBits = errors.New("malformed PackBits data")

// word is a PackBits element: bytes for indexed and planar rows, 16 bit
// words for RGB555 rows.
type word interface {
	~uint8 | ~uint16
}

func wordSize[T word]() int {
	var v T
	return binary.Size(v)
}

func appendWord[T word](b []byte, v T) []byte {
	if wordSize[T]() == 1 {
		return append(b, byte(v))
	}
	return binary.BigEndian.AppendUint16(b, uint16(v))
}

func getWord[T word](b []byte) T {
	if wordSize[T]() == 1 {
		return T(b[0])
	}
	return T(binary.BigEndian.Uint16(b))
}

// packWords compresses row. Runs of three or more equal elements become
// repeat runs; everything else is grouped into literal runs.
func packWords[T word](row []T) []byte {
	out := make([]byte, 0, len(row)*wordSize[T]()+len(row)/maxLiteral+1)

	for i := 0; i < len(row); {
		run := 1
		for i+run < len(row) && run < maxRepeat && row[i+run] == row[i] {
			run++
		}
		if run >= 3 {
			out = append(out, byte(int8(1-run)))
			out = appendWord(out, row[i])
			i += run
			continue
		}

		start := i
		for i < len(row) && i-start < maxLiteral {
			if i+2 < len(row) && row[i] == row[i+1] && row[i] == row[i+2] {
				break
			}
			i++
		}
		out = append(out, byte(i-start-1))
		for _, v := range row[start:i] {
			out = appendWord(out, v)
		}
	}

	return out
}

// unpackWords expands PackBits data.
func unpackWords[T word](data []byte) ([]T, error) {
	size := wordSize[T]()
	var row []T

	for pos := 0; pos < len(data); {
		c := int8(data[pos])
		pos++

		switch {
		case c >= 0:
			n := int(c) + 1
			if pos+n*size > len(data) {
				return nil, fmt.Errorf("%w: literal run of %d at %d runs past %d bytes", errPackBits, n, pos, len(data))
			}
			for range n {
				row = append(row, getWord[T](data[pos:]))
				pos += size
			}
		case c == -128:
		default:
			n := 1 - int(c)
			if pos+size > len(data) {
				return nil, fmt.Errorf("%w: repeat run at %d runs past %d bytes", errPackBits, pos, len(data))
			}
			v := getWord[T](data[pos:])
			pos += size
			for range n {
				row = append(row, v)
			}
		}
	}

	return row, nil
}

// PackBits compresses src.
func PackBits(src []byte) []byte {
	return packWords(src)
}

// UnpackBits expands PackBits data produced by PackBits or by QuickDraw.
func UnpackBits(src []byte) ([]byte, error) {
	return unpackWords[byte](src)
}

// readPackedRow reads one length-prefixed compressed scanline.
func readPackedRow[T word](r *reader, rowBytes int) ([]T, error) {
	var n int
	if rowBytes > longRowBytes {
		n = int(r.u16())
	} else {
		n = int(r.u8())
	}
	data := r.take(n)
	if r.err != nil {
		return nil, r.err
	}
	return unpackWords[T](data)
}

// writePackedRow compresses row and writes it with its length prefix.
func writePackedRow[T word](w *writer, row []T, rowBytes int) {
	packed := packWords(row)
	if rowBytes > longRowBytes {
		w.u16(uint16(len(packed)))
	} else {
		w.u8(uint8(len(packed)))
	}
	w.raw(packed)
}
