// Package pict reads and writes QuickDraw PICT images as stored in
// Marathon scenario files.
//
// Only the opcodes the game's own exporter produces are interpreted.
// Anything else degrades to an opaque picture that saves back to the
// exact bytes it was loaded from.
package pict

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
)

// Content is what a Picture currently holds.
type Content int

const (
	// ContentEmpty is the 1x1 placeholder of a new Picture.
	ContentEmpty Content = iota
	// ContentRaster is a decoded indexed or direct color image.
	ContentRaster
	// ContentJPEG is an embedded JPEG stream carried without decoding.
	ContentJPEG
	// ContentOpaque is the original bytes of a picture that could not be
	// decoded.
	ContentOpaque
)

func (c Content) String() string {
	switch c {
	case ContentRaster:
		return "raster"
	case ContentJPEG:
		return "jpeg"
	case ContentOpaque:
		return "opaque"
	default:
		return "empty"
	}
}

// ErrNoImage is returned by Save when a Picture holds nothing to encode.
var ErrNoImage = errors.New("picture holds no image")

// cinemascopeWidth is the width of a family of corrupt anamorphic exports.
// A CopyBits image this wide that disagrees with the picture frame is
// discarded.
const cinemascopeWidth = 614

// Picture is a decoded PICT resource.
type Picture struct {
	logger *slog.Logger

	// img is nil for the placeholder, else *image.Paletted (depth 8) or
	// *image.RGBA (depth 16 or 32).
	img   image.Image
	depth int

	jpeg   []byte
	raw    []byte
	reason string
}

// New returns an empty Picture.
func New(logger *slog.Logger) *Picture {
	if logger == nil {
		logger = slog.Default()
	}
	return &Picture{logger: logger}
}

func (p *Picture) reset() {
	p.img = nil
	p.depth = 0
	p.jpeg = nil
	p.raw = nil
	p.reason = ""
}

func (p *Picture) clearRaster() {
	p.img = nil
	p.depth = 0
}

// Content reports what the Picture holds.
func (p *Picture) Content() Content {
	switch {
	case p.img != nil:
		return ContentRaster
	case len(p.jpeg) > 0:
		return ContentJPEG
	case len(p.raw) > 0:
		return ContentOpaque
	default:
		return ContentEmpty
	}
}

func isPlaceholder(r image.Rectangle) bool {
	return r.Dx() <= 1 && r.Dy() <= 1
}

// Reason explains why the last Load kept the input opaque. Empty otherwise.
func (p *Picture) Reason() string { return p.reason }

// Image returns the decoded raster, or nil.
func (p *Picture) Image() image.Image { return p.img }

// Depth returns the bits per pixel Save will write a raster at.
func (p *Picture) Depth() int { return p.depth }

// JPEG returns the embedded JPEG stream, or nil.
func (p *Picture) JPEG() []byte { return p.jpeg }

// Load decodes a PICT resource. It never fails: input that cannot be
// decoded is kept verbatim and Content reports ContentOpaque.
func (p *Picture) Load(data []byte) {
	p.reset()

	r := newReader(data)
	r.skip(2) // size
	frame := r.rect()

	reason := p.run(r, frame)
	if reason == "" && r.err != nil {
		reason = fmt.Sprintf("truncated: %v", r.err)
	}

	if reason == "" && p.img != nil && isPlaceholder(p.img.Bounds()) {
		// indistinguishable from a picture that drew nothing
		p.clearRaster()
		reason = "1x1 image"
	}

	if p.img == nil && len(p.jpeg) == 0 {
		if reason == "" {
			reason = "no image opcode"
		}
		p.raw = bytes.Clone(data)
		p.reason = reason
		p.logger.Debug("keeping picture opaque", "reason", reason, "size", len(data))
	}
}

// run executes opcodes until the end of the picture. It returns why the
// picture was abandoned, or "".
func (p *Picture) run(r *reader, frame image.Rectangle) string {
	for r.err == nil {
		op := r.u16()
		if r.err != nil {
			break
		}

		switch op {
		case 0x0000, // NOP
			0x0011, // VersionOp
			0x001c, // HiliteMode
			0x001e, // DefHilite
			0x0038, 0x0039, 0x003a, 0x003b, 0x003c, // *SameRect
			0x02ff: // Version
		case 0x00ff: // OpEndPic
			return ""
		case 0x0001: // Clip
			size := evenUp(r.u16())
			r.skip(int(size) - 2)
		case 0x0003, 0x0004, 0x0005, 0x0008, 0x000d, 0x0015, 0x0016, 0x0023, 0x00a0:
			r.skip(2)
		case 0x0006, 0x0007, 0x000b, 0x000c, 0x000e, 0x000f, 0x0021:
			r.skip(4)
		case 0x001a, 0x001b, 0x001d, 0x001f, 0x0022:
			r.skip(6)
		case 0x0002, 0x0009, 0x000a, 0x0010, 0x0020, 0x0030, 0x0031, 0x0032, 0x0033, 0x0034:
			r.skip(8)
		case 0x0c00: // HeaderOp
			h := readHeaderOp(r)
			p.logger.Debug("picture header", "h_res", h.hRes>>16, "v_res", h.vRes>>16, "src_rect", h.srcRect)
		case 0x00a1: // LongComment
			r.skip(2)
			size := evenUp(r.i16())
			r.skip(int(size))
		case 0x0098, 0x0099, 0x009a, 0x009b: // CopyBits
			packed := op == 0x0098 || op == 0x0099
			clipped := op == 0x0099 || op == 0x009b
			if err := p.loadCopyBits(r, packed, clipped); err != nil {
				p.clearRaster()
				return fmt.Sprintf("copybits 0x%04x: %v", op, err)
			}
			if len(p.jpeg) > 0 {
				p.clearRaster()
			} else if w := p.img.Bounds().Dx(); w != frame.Dx() && w == cinemascopeWidth {
				p.clearRaster()
				return "cinemascope"
			}
		case 0x8200: // CompressedQuickTime
			if len(p.jpeg) > 0 {
				p.jpeg = nil
				return "banded jpeg"
			}
			if err := p.loadJPEG(r); err != nil {
				p.clearRaster()
				p.jpeg = nil
				return fmt.Sprintf("compressed image: %v", err)
			}
		default:
			switch {
			case op >= 0x0300 && op < 0x8000:
				r.skip(int(op>>8) * 2)
			case op >= 0x8000 && op < 0x8100:
			default:
				return fmt.Sprintf("unimplemented opcode 0x%04x at %d", op, r.pos-2)
			}
		}
	}
	return ""
}

type headerOp struct {
	version    int16
	hRes, vRes uint32
	srcRect    image.Rectangle
}

func readHeaderOp(r *reader) headerOp {
	var h headerOp
	h.version = r.i16()
	r.skip(2)
	h.hRes = r.u32()
	h.vRes = r.u32()
	h.srcRect = r.rect()
	r.skip(4)
	return h
}

// PaletteProvider supplies a color table, typically a 'clut' resource.
type PaletteProvider interface {
	Colors() []color.RGBA64
}

// LoadRaw decodes a raw 'pict' resource: a frame, a depth of 8 or 16 and
// the pixels. 8 bit images take their colors from palette.
func (p *Picture) LoadRaw(data []byte, palette PaletteProvider) error {
	p.reset()

	r := newReader(data)
	frame := r.rect()
	depth := r.i16()
	if r.err != nil {
		return fmt.Errorf("failed to read raw picture header: %w", r.err)
	}
	width, height := frame.Dx(), frame.Dy()
	bounds := image.Rect(0, 0, width, height)

	switch depth {
	case 8:
		if palette == nil || len(palette.Colors()) == 0 {
			return errors.New("8 bit raw picture needs a color table")
		}
		img := image.NewPaletted(bounds, paletteFrom(palette.Colors()))
		copy(img.Pix, r.take(width*height))
		if r.err != nil {
			return fmt.Errorf("failed to read pixels: %w", r.err)
		}
		p.img, p.depth = img, 8
	case 16:
		img := image.NewRGBA(bounds)
		for y := range height {
			for x := range width {
				img.SetRGBA(x, y, rgb555(r.u16()))
			}
		}
		if r.err != nil {
			return fmt.Errorf("failed to read pixels: %w", r.err)
		}
		p.img, p.depth = img, 16
	default:
		return fmt.Errorf("unsupported raw picture depth %d", depth)
	}
	return nil
}

// paletteFrom converts 16 bit color table entries into a 256 entry
// palette. Missing entries are opaque black.
func paletteFrom(colors []color.RGBA64) color.Palette {
	pal := make(color.Palette, 256)
	for i := range pal {
		pal[i] = color.RGBA{A: 0xff}
	}
	for i, c := range colors[:min(len(colors), 256)] {
		pal[i] = color.RGBA{R: uint8(c.R >> 8), G: uint8(c.G >> 8), B: uint8(c.B >> 8), A: 0xff}
	}
	return pal
}

// rgb555 expands a 5-5-5 pixel to 8 bits per channel.
func rgb555(v uint16) color.RGBA {
	scale := func(c uint16) uint8 { return uint8((uint32(c&0x1f)*255 + 16) / 31) }
	return color.RGBA{R: scale(v >> 10), G: scale(v >> 5), B: scale(v), A: 0xff}
}

// SetImage replaces the contents with img. Paletted images keep their
// indices; direct color images with at most 256 colors are converted to
// indexed color; anything else is stored at 32 bits.
func (p *Picture) SetImage(img image.Image) {
	p.reset()
	p.img, p.depth = normalize(img)
}

func normalize(img image.Image) (image.Image, int) {
	b := img.Bounds()
	bounds := image.Rect(0, 0, b.Dx(), b.Dy())

	if src, ok := img.(*image.Paletted); ok && len(src.Palette) <= 256 {
		dst := image.NewPaletted(bounds, make(color.Palette, 256))
		for i := range dst.Palette {
			dst.Palette[i] = color.RGBA{A: 0xff}
		}
		for i, c := range src.Palette {
			dst.Palette[i] = color.RGBAModel.Convert(c)
		}
		for y := range bounds.Dy() {
			for x := range bounds.Dx() {
				dst.SetColorIndex(x, y, src.ColorIndexAt(b.Min.X+x, b.Min.Y+y))
			}
		}
		return dst, 8
	}

	rgba := image.NewRGBA(bounds)
	index := make(map[color.RGBA]uint8)
	var pal color.Palette
	for y := range bounds.Dy() {
		for x := range bounds.Dx() {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			c.A = 0xff
			rgba.SetRGBA(x, y, c)
			if _, ok := index[c]; !ok && len(pal) <= 256 {
				index[c] = uint8(len(pal))
				pal = append(pal, c)
			}
		}
	}
	if len(pal) > 256 {
		return rgba, 32
	}

	dst := image.NewPaletted(bounds, pal)
	for y := range bounds.Dy() {
		for x := range bounds.Dx() {
			dst.SetColorIndex(x, y, index[rgba.RGBAAt(x, y)])
		}
	}
	return dst, 8
}
