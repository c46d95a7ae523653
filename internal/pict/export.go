package pict

import (
	"fmt"
	"image"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	_ "golang.org/x/image/bmp"
)

// pctHeaderSize is the zero filled header of a PICT file on disk.
const pctHeaderSize = 512

// Export writes the Picture in its natural file format and returns the
// extension that format uses: ".bmp" for rasters, ".jpg" for JPEG
// streams and ".pct" for everything else.
func (p *Picture) Export(w io.Writer) (string, error) {
	switch p.Content() {
	case ContentRaster:
		if err := imgio.BMPEncoder()(w, p.img); err != nil {
			return "", fmt.Errorf("failed to encode bitmap: %w", err)
		}
		return ".bmp", nil
	case ContentJPEG:
		if _, err := w.Write(p.jpeg); err != nil {
			return "", fmt.Errorf("failed to write JPEG: %w", err)
		}
		return ".jpg", nil
	}

	data, err := p.Save()
	if err != nil {
		return "", err
	}
	if _, err := w.Write(make([]byte, pctHeaderSize)); err != nil {
		return "", fmt.Errorf("failed to write PICT header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("failed to write PICT: %w", err)
	}
	return ".pct", nil
}

// Import replaces the Picture with the contents of a file previously
// written by Export, or a PNG. The format is chosen by name's extension.
func (p *Picture) Import(name string, r io.Reader) error {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".bmp", ".png":
		img, _, err := image.Decode(r)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", name, err)
		}
		p.SetImage(img)
	case ".jpg", ".jpeg":
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if _, _, err := jpegDimensions(data); err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		p.reset()
		p.jpeg = data
	case ".pct", ".pict":
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if len(data) < pctHeaderSize+16 {
			return fmt.Errorf("%s is too short to be a PICT file", name)
		}
		p.Load(data[pctHeaderSize:])
	default:
		return fmt.Errorf("unsupported picture format %q", ext)
	}
	return nil
}
