package pict

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/ossyrian/wadsplit/internal/tag"
)

var codecJPEG = tag.New("jpeg")

// imageDescriptionSize is the QuickTime ImageDescription this package
// writes: id size through clut id.
const imageDescriptionSize = 86

// loadJPEG reads a CompressedQuickTime opcode and keeps its JPEG payload.
func (p *Picture) loadJPEG(r *reader) error {
	size := evenUp(r.u32())
	start := r.pos

	r.skip(26) // version, matrix up to the translation
	offsetX := r.i16()
	r.skip(2)
	offsetY := r.i16()
	r.skip(2)
	r.skip(4) // rest of matrix
	if offsetX != 0 || offsetY != 0 {
		return errors.New("banded jpeg")
	}

	matteSize := r.u32()
	r.skip(22) // matte rect, mode, srcRect, accuracy
	maskSize := r.u32()

	if matteSize != 0 {
		idSize := r.u32()
		r.skip(int(idSize) - 4)
	}
	r.skip(int(matteSize))
	r.skip(int(maskSize))

	r.skip(4) // id size
	codec := tag.Tag(r.u32())
	if r.err != nil {
		return r.err
	}
	if codec != codecJPEG {
		return fmt.Errorf("unsupported codec '%s'", codec)
	}

	r.skip(36) // reserved, dataRefIndex, version, revision, vendor, quality, width, height, resolution
	dataSize := r.u32()
	r.skip(38) // frame count, name, depth, clut id

	data := r.take(int(dataSize))
	if r.err != nil {
		return r.err
	}
	p.jpeg = bytes.Clone(data)

	r.skip(start + int(size) - r.pos)
	return r.err
}

// jpegDimensions scans a JPEG stream for its start of frame marker.
func jpegDimensions(data []byte) (width, height int, err error) {
	r := newReader(data)
	if r.u16() != 0xffd8 {
		return 0, 0, errors.New("missing JPEG start of image")
	}

	for r.err == nil {
		for r.err == nil && r.u8() != 0xff {
		}
		marker := r.u8()
		for r.err == nil && marker == 0xff {
			marker = r.u8()
		}
		if r.err != nil {
			break
		}

		switch marker {
		case 0xd9, 0xda:
			return 0, 0, fmt.Errorf("no frame header before marker 0x%02x", marker)
		case 0xc0, 0xc1, 0xc2, 0xc3, 0xc5, 0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xcb, 0xcd, 0xce, 0xcf:
			r.skip(3) // length, precision
			height, width = int(r.u16()), int(r.u16())
			if r.err != nil {
				break
			}
			return width, height, nil
		default:
			length := int(r.u16())
			if length < 2 {
				return 0, 0, fmt.Errorf("invalid segment length %d", length)
			}
			r.skip(length - 2)
		}
	}
	return 0, 0, fmt.Errorf("no frame header: %w", r.err)
}

// encodeJPEG wraps p.jpeg in a CompressedQuickTime opcode.
func (p *Picture) encodeJPEG() ([]byte, error) {
	width, height, err := jpegDimensions(p.jpeg)
	if err != nil {
		return nil, fmt.Errorf("failed to read JPEG dimensions: %w", err)
	}

	frame := image.Rect(0, 0, width, height)
	w := &writer{}
	writePrologue(w, frame)

	w.u16(0x8200)
	w.u32(uint32(154 + len(p.jpeg)))

	w.zero(2) // version
	matrix := [18]int16{0: 1, 8: 1, 16: 0x4000}
	for _, v := range matrix {
		w.i16(v)
	}
	w.zero(4) // matte size
	w.zero(8) // matte rect
	w.u16(0x0040)
	w.rect(frame)
	w.u32(768) // accuracy
	w.zero(4)  // mask size

	w.u32(imageDescriptionSize)
	w.u32(uint32(codecJPEG))
	w.zero(8) // reserved, dataRefIndex
	w.zero(4) // version, revision
	w.zero(4) // vendor
	w.zero(4) // temporal quality
	w.u32(768)
	w.i16(int16(width))
	w.i16(int16(height))
	w.u32(72 << 16)
	w.u32(72 << 16)
	w.u32(uint32(len(p.jpeg)))
	w.u16(1)   // frame count
	w.zero(32) // name
	w.i16(32)  // depth
	w.i16(-1)  // clut id

	w.raw(p.jpeg)
	w.padEven()
	w.u16(0x00ff)
	return w.b, nil
}
