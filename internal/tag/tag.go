// Package tag implements the four-character codes used as Wad chunk keys
// and resource fork type keys.
package tag

import "fmt"

// Tag is four ASCII bytes packed big-endian into a uint32.
// Equality and ordering are plain integer comparison.
type Tag uint32

// New packs the first four bytes of s into a Tag.
// Shorter strings are padded with spaces.
func New(s string) Tag {
	var b [4]byte
	for i := range b {
		if i < len(s) {
			b[i] = s[i]
		} else {
			b[i] = ' '
		}
	}
	return FromBytes(b)
}

// FromBytes packs b into a Tag.
func FromBytes(b [4]byte) Tag {
	return Tag(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}

// Parse is like New but rejects strings that are not exactly four bytes long.
func Parse(s string) (Tag, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("invalid tag %q: must be exactly 4 bytes", s)
	}
	return New(s), nil
}

// Bytes returns the four bytes of t in stream order.
func (t Tag) Bytes() [4]byte {
	return [4]byte{byte(t >> 24), byte(t >> 16), byte(t >> 8), byte(t)}
}

func (t Tag) String() string {
	b := t.Bytes()
	return string(b[:])
}

// Printable reports whether every byte of t is printable ASCII,
// which is what split relies on when it uses a tag as a directory name.
func (t Tag) Printable() bool {
	for _, c := range t.Bytes() {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
