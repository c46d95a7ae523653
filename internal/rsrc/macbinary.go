package rsrc

import (
	"encoding/binary"
	"io"

	"github.com/ossyrian/wadsplit/internal/macroman"
	"github.com/ossyrian/wadsplit/internal/tag"
)

// MacBinaryHeaderSize is the length of a MacBinary header. The data fork
// starts right after it.
const MacBinaryHeaderSize = 128

// MacBinary locates the two forks inside a MacBinary II/III file.
type MacBinary struct {
	DataOffset     int64
	DataLength     int64
	ResourceOffset int64
	ResourceLength int64
}

// DetectMacBinary reads the first 128 bytes of r and reports whether they
// form a MacBinary header. Short reads are not MacBinary.
func DetectMacBinary(r io.ReaderAt) (*MacBinary, bool) {
	h := make([]byte, MacBinaryHeaderSize)
	if n, _ := r.ReadAt(h, 0); n < len(h) {
		return nil, false
	}
	return parseMacBinary(h)
}

func parseMacBinary(h []byte) (*MacBinary, bool) {
	if h[0] != 0 || h[1] > 63 || h[74] != 0 || h[123] > 0x81 {
		return nil, false
	}
	if CRC16(h[:124]) != binary.BigEndian.Uint16(h[124:126]) {
		return nil, false
	}

	dataLength := int64(binary.BigEndian.Uint32(h[83:87]))
	return &MacBinary{
		DataOffset:     MacBinaryHeaderSize,
		DataLength:     dataLength,
		ResourceOffset: MacBinaryHeaderSize + (dataLength+0x7f)&^0x7f,
		ResourceLength: int64(binary.BigEndian.Uint32(h[87:91])),
	}, true
}

// CRC16 is the CCITT CRC used by MacBinary headers: polynomial 0x1021,
// zero initial value, no reflection and no final xor.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// EncodeMacBinary wraps the two forks in a MacBinary III container.
func EncodeMacBinary(name string, typ, creator tag.Tag, dataFork, resourceFork []byte) []byte {
	h := make([]byte, MacBinaryHeaderSize)
	encoded := macroman.Encode(name)
	if len(encoded) > 63 {
		encoded = encoded[:63]
	}
	h[1] = byte(len(encoded))
	copy(h[2:], encoded)
	binary.BigEndian.PutUint32(h[65:], uint32(typ))
	binary.BigEndian.PutUint32(h[69:], uint32(creator))
	binary.BigEndian.PutUint32(h[83:], uint32(len(dataFork)))
	binary.BigEndian.PutUint32(h[87:], uint32(len(resourceFork)))
	copy(h[102:], "mBIN")
	h[122] = 0x81
	h[123] = 0x81
	binary.BigEndian.PutUint16(h[124:], CRC16(h[:124]))

	out := append(h, dataFork...)
	out = append(out, make([]byte, padding(len(dataFork)))...)
	out = append(out, resourceFork...)
	return append(out, make([]byte, padding(len(resourceFork)))...)
}

func padding(n int) int {
	return (n+0x7f)&^0x7f - n
}
