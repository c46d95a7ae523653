// Package macroman converts between the Mac OS Roman strings stored in
// scenario files and UTF-8.
package macroman

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"
)

// Decode converts a Mac OS Roman byte string to UTF-8.
// Every byte value has a mapping, so this never fails.
func Decode(b []byte) string {
	s, err := charmap.Macintosh.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// DecodeCString decodes b up to the first NUL byte.
func DecodeCString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return Decode(b)
}

// Encode converts UTF-8 to Mac OS Roman. Runes with no Mac OS Roman
// equivalent become '?'.
func Encode(s string) []byte {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		c, ok := charmap.Macintosh.EncodeRune(r)
		if !ok {
			c = '?'
		}
		b = append(b, c)
	}
	return b
}

// EncodeFixed encodes s into a NUL-padded field of size n. The last byte
// is always NUL, matching how the game truncates names.
func EncodeFixed(s string, n int) []byte {
	out := make([]byte, n)
	if n == 0 {
		return out
	}
	copy(out[:n-1], Encode(s))
	return out
}
