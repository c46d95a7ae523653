// Package clut converts 'clut' color table resources to and from Adobe
// .act palettes.
package clut

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
)

const (
	maxColors = 256

	// m2Size is the fixed layout of Marathon 2 'clut' resources: a count,
	// four unused bytes and 256 RGB48 entries.
	m2Size = 6 + maxColors*6

	actSize = maxColors*3 + 4
)

// Palette is a decoded color table.
type Palette struct {
	colors []color.RGBA64
}

// Load decodes a 'clut' resource, either the fixed Marathon 2 layout or a
// QuickDraw color table.
func Load(data []byte) (*Palette, error) {
	if len(data) == m2Size {
		return loadM2(data)
	}
	return loadColorTable(data)
}

func loadM2(data []byte) (*Palette, error) {
	count := int(int16(binary.BigEndian.Uint16(data)))
	if count < 0 || count > maxColors {
		return nil, fmt.Errorf("invalid color count %d", count)
	}

	p := &Palette{colors: make([]color.RGBA64, count)}
	for i := range p.colors {
		p.colors[i] = rgb48(data[6+i*6:])
	}
	return p, nil
}

func loadColorTable(data []byte) (*Palette, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("color table too short: %d bytes", len(data))
	}

	flags := binary.BigEndian.Uint16(data[4:])
	count := int(int16(binary.BigEndian.Uint16(data[6:]))) + 1
	if count < 0 || count > maxColors {
		return nil, fmt.Errorf("invalid color count %d", count)
	}
	if len(data) < 8+count*8 {
		return nil, fmt.Errorf("color table of %d entries needs %d bytes, have %d", count, 8+count*8, len(data))
	}

	p := &Palette{colors: make([]color.RGBA64, count)}
	for i := range count {
		entry := data[8+i*8:]
		index := int(binary.BigEndian.Uint16(entry))
		if flags&0x8000 != 0 {
			index = i
		} else {
			index &= 0xff
		}
		if index >= len(p.colors) {
			p.colors = append(p.colors, make([]color.RGBA64, index+1-len(p.colors))...)
		}
		p.colors[index] = rgb48(entry[2:])
	}
	return p, nil
}

func rgb48(b []byte) color.RGBA64 {
	return color.RGBA64{
		R: binary.BigEndian.Uint16(b[0:]),
		G: binary.BigEndian.Uint16(b[2:]),
		B: binary.BigEndian.Uint16(b[4:]),
		A: 0xffff,
	}
}

// Colors returns the palette entries.
func (p *Palette) Colors() []color.RGBA64 {
	return p.colors
}

// Save encodes the palette in the Marathon 2 layout.
func (p *Palette) Save() []byte {
	out := make([]byte, m2Size)
	binary.BigEndian.PutUint16(out, uint16(len(p.colors)))
	for i, c := range p.colors {
		entry := out[6+i*6:]
		binary.BigEndian.PutUint16(entry[0:], c.R)
		binary.BigEndian.PutUint16(entry[2:], c.G)
		binary.BigEndian.PutUint16(entry[4:], c.B)
	}
	return out
}

// ExportACT writes the palette as an .act file: 256 RGB triples, the
// color count and a transparent index of 0.
func (p *Palette) ExportACT(w io.Writer) error {
	out := make([]byte, actSize)
	for i, c := range p.colors {
		out[i*3] = uint8(c.R >> 8)
		out[i*3+1] = uint8(c.G >> 8)
		out[i*3+2] = uint8(c.B >> 8)
	}
	binary.BigEndian.PutUint16(out[maxColors*3:], uint16(len(p.colors)))

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("failed to write palette: %w", err)
	}
	return nil
}

// Import reads a palette from an .act file or from the color table of
// an indexed .bmp, chosen by name's extension.
func Import(name string, r io.Reader) (*Palette, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".act":
		return importACT(r)
	case ".bmp":
		return importBMP(r)
	default:
		return nil, fmt.Errorf("unsupported palette format %q", ext)
	}
}

func importACT(r io.Reader) (*Palette, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read palette: %w", err)
	}
	if len(data) < maxColors*3 {
		return nil, fmt.Errorf("palette too short: %d bytes", len(data))
	}

	p := &Palette{colors: make([]color.RGBA64, maxColors)}
	for i := range p.colors {
		p.colors[i] = color.RGBA64{
			R: uint16(data[i*3]) << 8,
			G: uint16(data[i*3+1]) << 8,
			B: uint16(data[i*3+2]) << 8,
			A: 0xffff,
		}
	}
	if len(data) >= actSize {
		if count := int(int16(binary.BigEndian.Uint16(data[maxColors*3:]))); count >= 0 && count < maxColors {
			p.colors = p.colors[:count]
		}
	}
	return p, nil
}

func importBMP(r io.Reader) (*Palette, error) {
	img, err := bmp.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bitmap: %w", err)
	}
	paletted, ok := img.(*image.Paletted)
	if !ok || len(paletted.Palette) > maxColors {
		return nil, errors.New("bitmap has no color table")
	}

	p := &Palette{colors: make([]color.RGBA64, maxColors)}
	for i := range p.colors {
		p.colors[i] = color.RGBA64{A: 0xffff}
	}
	for i, c := range paletted.Palette {
		rgba := color.RGBAModel.Convert(c).(color.RGBA)
		p.colors[i] = color.RGBA64{R: uint16(rgba.R) << 8, G: uint16(rgba.G) << 8, B: uint16(rgba.B) << 8, A: 0xffff}
	}
	return p, nil
}
