package pict

import (
	"fmt"
	"image"
	"image/color"
)

// maxPixels bounds the raster a corrupt header can make the decoder
// allocate.
const maxPixels = 1 << 24

// pixMap is the part of a QuickDraw PixMap the decoder needs.
type pixMap struct {
	rowBytes  int
	bounds    image.Rectangle
	isPixMap  bool
	packType  uint16
	pixelSize uint16
	cmpCount  uint16
}

func readPixMap(r *reader) pixMap {
	var pm pixMap
	rowBytes := r.u16()
	pm.isPixMap = rowBytes&0x8000 != 0
	pm.rowBytes = int(rowBytes & 0x3fff)
	pm.bounds = r.rect()

	if !pm.isPixMap {
		pm.pixelSize = 1
		pm.cmpCount = 1
		return pm
	}

	r.skip(2) // pmVersion
	pm.packType = r.u16()
	r.skip(14) // packSize, hRes, vRes, pixelType
	pm.pixelSize = r.u16()
	pm.cmpCount = r.u16()
	r.skip(14) // cmpSize, planeBytes, pmTable, pmReserved
	return pm
}

// readColorTable reads a QuickDraw color table into a 256 entry palette.
// Entries are addressed by position when the device flag is set, else by
// their own index.
func readColorTable(r *reader) color.Palette {
	pal := make(color.Palette, 256)
	for i := range pal {
		pal[i] = color.RGBA{A: 0xff}
	}

	r.skip(4) // ctSeed
	flags := r.u16()
	count := int(r.u16()) + 1
	for i := range count {
		index := int(r.u16())
		red, green, blue := r.u16(), r.u16(), r.u16()
		if r.err != nil {
			break
		}
		if flags&0x8000 != 0 {
			index = i
		} else {
			index &= 0xff
		}
		if index < len(pal) {
			pal[index] = color.RGBA{R: uint8(red >> 8), G: uint8(green >> 8), B: uint8(blue >> 8), A: 0xff}
		}
	}
	return pal
}

// loadCopyBits decodes one PackBitsRect or DirectBitsRect opcode into
// p.img. Only 8, 16 and 32 bit images are accepted; narrower indexed
// images are consumed and reported as unsupported.
func (p *Picture) loadCopyBits(r *reader, packed, clipped bool) error {
	if !packed {
		r.skip(4) // pmBaseAddr
	}

	pm := readPixMap(r)
	width, height := pm.bounds.Dx(), pm.bounds.Dy()
	bounds := image.Rect(0, 0, width, height)
	switch {
	case bounds.Empty():
		return fmt.Errorf("empty bounds %v", pm.bounds)
	case width*height > maxPixels || height > len(r.b)-r.pos:
		return fmt.Errorf("bounds %v larger than the picture data", pm.bounds)
	}

	var pal color.Palette
	if pm.isPixMap && packed {
		pal = readColorTable(r)
	} else {
		pal = paletteFrom(nil)
	}

	r.skip(18) // srcRect, dstRect, mode
	if clipped {
		size := r.u16()
		r.skip(int(size) - 2)
	}
	if r.err != nil {
		return r.err
	}

	var err error
	switch {
	case pm.pixelSize <= 8:
		err = p.loadIndexed(r, pm, bounds, pal)
	case pm.pixelSize == 16:
		err = p.loadRGB555(r, pm, bounds)
	case pm.pixelSize == 32:
		err = p.loadRGB(r, pm, bounds)
	default:
		err = fmt.Errorf("unsupported pixel size %d", pm.pixelSize)
	}
	if err != nil {
		return err
	}

	if r.pos&1 != 0 {
		r.skip(1)
	}
	if r.err != nil {
		return r.err
	}

	switch pm.pixelSize {
	case 8, 16, 32:
		return nil
	default:
		p.clearRaster()
		return fmt.Errorf("unsupported pixel size %d", pm.pixelSize)
	}
}

func (p *Picture) loadIndexed(r *reader, pm pixMap, bounds image.Rectangle, pal color.Palette) error {
	img := image.NewPaletted(bounds, pal)
	width := bounds.Dx()

	for y := range bounds.Dy() {
		var row []byte
		if pm.rowBytes < 8 {
			row = r.take(pm.rowBytes)
		} else {
			var err error
			if row, err = readPackedRow[byte](r, pm.rowBytes); err != nil {
				return fmt.Errorf("row %d: %w", y, err)
			}
		}
		if r.err != nil {
			return r.err
		}

		if pm.pixelSize < 8 {
			row = expandPixels(row, int(pm.pixelSize))
		}
		if len(row) < width {
			return fmt.Errorf("row %d has %d pixels, want %d", y, len(row), width)
		}
		copy(img.Pix[y*img.Stride:], row[:width])
	}

	p.img, p.depth = img, 8
	return nil
}

// expandPixels unpacks 1, 2 or 4 bit pixels into one index per byte,
// most significant bits first.
func expandPixels(row []byte, depth int) []byte {
	if depth != 1 && depth != 2 && depth != 4 {
		return row
	}
	perByte := 8 / depth
	mask := byte(1<<depth - 1)

	out := make([]byte, 0, len(row)*perByte)
	for _, b := range row {
		for i := perByte - 1; i >= 0; i-- {
			out = append(out, b>>(i*depth)&mask)
		}
	}
	return out
}

func (p *Picture) loadRGB555(r *reader, pm pixMap, bounds image.Rectangle) error {
	img := image.NewRGBA(bounds)
	width := bounds.Dx()

	for y := range bounds.Dy() {
		var row []uint16
		switch {
		case pm.rowBytes < 8 || pm.packType == 1:
			row = make([]uint16, width)
			for x := range row {
				row[x] = r.u16()
			}
		case pm.packType == 0 || pm.packType == 3:
			var err error
			if row, err = readPackedRow[uint16](r, pm.rowBytes); err != nil {
				return fmt.Errorf("row %d: %w", y, err)
			}
		default:
			return fmt.Errorf("unsupported 16 bit pack type %d", pm.packType)
		}
		if r.err != nil {
			return r.err
		}
		if len(row) < width {
			return fmt.Errorf("row %d has %d pixels, want %d", y, len(row), width)
		}

		for x := range width {
			img.SetRGBA(x, y, rgb555(row[x]))
		}
	}

	p.img, p.depth = img, 16
	return nil
}

func (p *Picture) loadRGB(r *reader, pm pixMap, bounds image.Rectangle) error {
	img := image.NewRGBA(bounds)
	width := bounds.Dx()

	for y := range bounds.Dy() {
		var planes []byte
		switch {
		case pm.rowBytes < 8 || pm.packType == 1:
			planes = make([]byte, width*3)
			for x := range width {
				v := r.u32()
				planes[x] = byte(v >> 16)
				planes[x+width] = byte(v >> 8)
				planes[x+width*2] = byte(v)
			}
		case pm.packType == 0 || pm.packType == 4:
			var err error
			if planes, err = readPackedRow[byte](r, pm.rowBytes); err != nil {
				return fmt.Errorf("row %d: %w", y, err)
			}
			if pm.cmpCount == 4 && len(planes) >= width*4 {
				planes = planes[width:]
			}
		default:
			return fmt.Errorf("unsupported 32 bit pack type %d", pm.packType)
		}
		if r.err != nil {
			return r.err
		}
		if len(planes) < width*3 {
			return fmt.Errorf("row %d has %d bytes, want %d", y, len(planes), width*3)
		}

		for x := range width {
			img.SetRGBA(x, y, color.RGBA{R: planes[x], G: planes[x+width], B: planes[x+width*2], A: 0xff})
		}
	}

	p.img, p.depth = img, 32
	return nil
}
