package pict

import (
	"bytes"
	"image"
	"image/color"
)

const (
	pixelTypeIndexed = 0
	pixelTypeDirect  = 16

	resolution = 72 << 16
)

// Save encodes the Picture. Rasters are written as a single CopyBits
// opcode at their own depth, JPEG streams as a CompressedQuickTime opcode,
// and opaque pictures as the bytes they were loaded from.
func (p *Picture) Save() ([]byte, error) {
	switch p.Content() {
	case ContentRaster:
		return p.encodeRaster(), nil
	case ContentJPEG:
		return p.encodeJPEG()
	case ContentOpaque:
		return bytes.Clone(p.raw), nil
	default:
		return nil, ErrNoImage
	}
}

// writePrologue writes the size, frame, version, header and clip opcodes
// every picture starts with.
func writePrologue(w *writer, frame image.Rectangle) {
	w.i16(0) // size
	w.rect(frame)
	w.u16(0x0011)
	w.u16(0x02ff)

	w.u16(0x0c00)
	w.i16(-2) // extended version 2
	w.u16(0)
	w.u32(resolution)
	w.u32(resolution)
	w.rect(frame)
	w.u32(0)

	w.u16(0x0001)
	w.u16(10)
	w.rect(frame)
}

func writePixMap(w *writer, frame image.Rectangle, rowBytes, packType, pixelType, pixelSize, cmpCount, cmpSize int) {
	w.u16(uint16(rowBytes) | 0x8000)
	w.rect(frame)
	w.u16(0) // pmVersion
	w.u16(uint16(packType))
	w.u32(0) // packSize
	w.u32(resolution)
	w.u32(resolution)
	w.u16(uint16(pixelType))
	w.u16(uint16(pixelSize))
	w.u16(uint16(cmpCount))
	w.u16(uint16(cmpSize))
	w.u32(0) // planeBytes
	w.u32(0) // pmTable
	w.u32(0) // pmReserved
}

func (p *Picture) encodeRaster() []byte {
	b := p.img.Bounds()
	frame := image.Rect(0, 0, b.Dx(), b.Dy())
	width, height := frame.Dx(), frame.Dy()

	w := &writer{}
	writePrologue(w, frame)

	switch img := p.img.(type) {
	case *image.Paletted:
		rowBytes := width
		w.u16(0x0098)
		writePixMap(w, frame, rowBytes, 0, pixelTypeIndexed, 8, 1, 8)

		w.u32(0) // ctSeed
		w.u16(0) // flags
		w.u16(255)
		for i := range 256 {
			c := color.RGBA{A: 0xff}
			if i < len(img.Palette) {
				c = color.RGBAModel.Convert(img.Palette[i]).(color.RGBA)
			}
			w.u16(uint16(i))
			w.u16(uint16(c.R) << 8)
			w.u16(uint16(c.G) << 8)
			w.u16(uint16(c.B) << 8)
		}

		w.rect(frame)
		w.rect(frame)
		w.u16(0) // srcCopy

		for y := range height {
			row := img.Pix[(y+b.Min.Y-img.Rect.Min.Y)*img.Stride+(b.Min.X-img.Rect.Min.X):][:width]
			if rowBytes < 8 {
				w.raw(row)
			} else {
				writePackedRow(w, row, rowBytes)
			}
		}

	case *image.RGBA:
		if p.depth == 16 {
			rowBytes := width * 2
			w.u16(0x009a)
			w.u32(0x000000ff) // pmBaseAddr
			writePixMap(w, frame, rowBytes, 0, pixelTypeDirect, 16, 3, 5)
			w.rect(frame)
			w.rect(frame)
			w.u16(0)

			row := make([]uint16, width)
			for y := range height {
				for x := range width {
					c := img.RGBAAt(b.Min.X+x, b.Min.Y+y)
					row[x] = uint16(c.R>>3)<<10 | uint16(c.G>>3)<<5 | uint16(c.B>>3)
				}
				if rowBytes < 8 {
					for _, v := range row {
						w.u16(v)
					}
				} else {
					writePackedRow(w, row, rowBytes)
				}
			}
			break
		}

		rowBytes := width * 4
		w.u16(0x009a)
		w.u32(0x000000ff)
		writePixMap(w, frame, rowBytes, 4, pixelTypeDirect, 32, 3, 8)
		w.rect(frame)
		w.rect(frame)
		w.u16(0)

		planes := make([]byte, width*3)
		for y := range height {
			for x := range width {
				c := img.RGBAAt(b.Min.X+x, b.Min.Y+y)
				planes[x] = c.R
				planes[x+width] = c.G
				planes[x+width*2] = c.B
			}
			if rowBytes < 8 {
				for x := range width {
					w.u32(uint32(planes[x])<<16 | uint32(planes[x+width])<<8 | uint32(planes[x+width*2]))
				}
			} else {
				writePackedRow(w, planes, rowBytes)
			}
		}
	}

	w.padEven()
	w.u16(0x00ff)
	return w.b
}
