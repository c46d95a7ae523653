// Package codec maps resource types to the converters split and merge
// use to move resources between archives and editable files.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/ossyrian/wadsplit/internal/clut"
	"github.com/ossyrian/wadsplit/internal/macroman"
	"github.com/ossyrian/wadsplit/internal/pict"
	"github.com/ossyrian/wadsplit/internal/rsrc"
	"github.com/ossyrian/wadsplit/internal/tag"
)

var (
	TagPICT    = tag.New("PICT")
	TagRawPICT = tag.New("pict")
	TagCLUT    = tag.New("clut")
	TagTEXT    = tag.New("TEXT")
	TagText    = tag.New("text")
	TagSnd     = tag.New("snd ")
)

// RawDir is the directory, below the resources root, that holds one
// subdirectory per unregistered resource type.
const RawDir = "Other"

// Request is an immutable snapshot of a resource and the neighbours its
// converter may consult. It is safe to hand to another goroutine.
type Request struct {
	ID   rsrc.ID
	Data []byte

	// Palette is the 'clut' resource with the same number, if any.
	Palette []byte
}

// ExportFunc writes req as a file and returns the extension it used.
type ExportFunc func(req Request, w io.Writer) (string, error)

// ImportFunc converts a file written by the matching ExportFunc (or an
// equivalent one) back to resource bytes. name is only used for its
// extension.
type ImportFunc func(name string, r io.Reader) ([]byte, error)

// Handler converts one resource type.
type Handler struct {
	// Dir is the directory, below the resources root, that exported
	// files go to.
	Dir string

	// StoreAs is the type imported files are stored under. Zero means
	// the handler's own type.
	StoreAs tag.Tag

	Export ExportFunc
	Import ImportFunc
}

// Registry holds the handlers by resource type.
type Registry struct {
	logger   *slog.Logger
	handlers map[tag.Tag]Handler
}

// New returns an empty Registry. Every type falls back to the raw handler.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger,
		handlers: make(map[tag.Tag]Handler),
	}
}

// Default returns a Registry with converters for pictures, color tables,
// text and sounds.
func Default(logger *slog.Logger) *Registry {
	r := New(logger)
	r.Register(TagPICT, Handler{Dir: "PICT", Export: r.exportPICT, Import: importPICT})
	r.Register(TagRawPICT, Handler{Dir: "PICT", StoreAs: TagPICT, Export: r.exportRawPICT, Import: importPICT})
	r.Register(TagCLUT, Handler{Dir: "CLUT", Export: exportCLUT, Import: importCLUT})
	r.Register(TagText, Handler{Dir: "TEXT", Export: exportText, Import: importText})
	r.Register(TagTEXT, Handler{Dir: "TEXT", StoreAs: TagText, Export: exportText, Import: importText})
	r.Register(TagSnd, Handler{Dir: "snd", Export: passthrough(".snd"), Import: importRaw})
	return r
}

// Register installs h for t, replacing any previous handler.
func (r *Registry) Register(t tag.Tag, h Handler) {
	if h.StoreAs == 0 {
		h.StoreAs = t
	}
	r.handlers[t] = h
}

// Lookup returns the handler for t, or the raw handler when none is
// registered.
func (r *Registry) Lookup(t tag.Tag) Handler {
	if h, ok := r.handlers[t]; ok {
		return h
	}
	return Raw(t)
}

// Registered reports whether t has a handler of its own.
func (r *Registry) Registered(t tag.Tag) bool {
	_, ok := r.handlers[t]
	return ok
}

// Dirs lists the directories registered handlers export to.
func (r *Registry) Dirs() []string {
	return lo.Uniq(lo.Map(lo.Values(r.handlers), func(h Handler, _ int) string { return h.Dir }))
}

// Importer returns the handler that imports files found in dir and the
// type they are stored under. Handlers that store under their own type
// win over aliases sharing the directory.
func (r *Registry) Importer(dir string) (tag.Tag, Handler, bool) {
	var (
		found Handler
		ok    bool
	)
	for t, h := range r.handlers {
		if h.Dir != dir {
			continue
		}
		if h.StoreAs == t {
			return t, h, true
		}
		found, ok = h, true
	}
	if ok {
		return found.StoreAs, found, true
	}
	return 0, Handler{}, false
}

// Raw returns the handler that copies t's bytes verbatim.
func Raw(t tag.Tag) Handler {
	return Handler{
		Dir:     RawDir + "/" + DirName(t),
		StoreAs: t,
		Export:  passthrough(".bin"),
		Import:  importRaw,
	}
}

// DirName is the directory name used for t: the tag itself when that
// is a safe file name, else its hex value.
func DirName(t tag.Tag) string {
	s := t.String()
	if t.Printable() && !strings.ContainsAny(s, `/\:.`) && strings.TrimSpace(s) == s {
		return s
	}
	return fmt.Sprintf("%08x", uint32(t))
}

// ParseDirName reverses DirName.
func ParseDirName(name string) (tag.Tag, error) {
	if len(name) == 8 {
		if v, err := strconv.ParseUint(name, 16, 32); err == nil {
			return tag.Tag(v), nil
		}
	}
	return tag.Parse(name)
}

func (r *Registry) exportPICT(req Request, w io.Writer) (string, error) {
	p := pict.New(r.logger)
	p.Load(req.Data)
	if p.Content() == pict.ContentOpaque {
		r.logger.Warn("exporting unparsed picture",
			"resource", req.ID.String(),
			"reason", p.Reason(),
		)
	}
	return p.Export(w)
}

func (r *Registry) exportRawPICT(req Request, w io.Writer) (string, error) {
	var palette pict.PaletteProvider
	if len(req.Palette) > 0 {
		pal, err := clut.Load(req.Palette)
		if err != nil {
			return "", fmt.Errorf("failed to load color table for %s: %w", req.ID, err)
		}
		palette = pal
	}

	p := pict.New(r.logger)
	if err := p.LoadRaw(req.Data, palette); err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", req.ID, err)
	}
	return p.Export(w)
}

func importPICT(name string, r io.Reader) ([]byte, error) {
	p := pict.New(nil)
	if err := p.Import(name, r); err != nil {
		return nil, err
	}
	return p.Save()
}

func exportCLUT(req Request, w io.Writer) (string, error) {
	pal, err := clut.Load(req.Data)
	if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", req.ID, err)
	}
	return ".act", pal.ExportACT(w)
}

func importCLUT(name string, r io.Reader) ([]byte, error) {
	pal, err := clut.Import(name, r)
	if err != nil {
		return nil, err
	}
	return pal.Save(), nil
}

// exportText writes Mac OS Roman text as UTF-8.
func exportText(req Request, w io.Writer) (string, error) {
	if _, err := io.WriteString(w, macroman.Decode(req.Data)); err != nil {
		return "", fmt.Errorf("failed to write text: %w", err)
	}
	return ".txt", nil
}

func importText(name string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return macroman.Encode(string(bytes.TrimPrefix(data, []byte("\ufeff")))), nil
}

func passthrough(ext string) ExportFunc {
	return func(req Request, w io.Writer) (string, error) {
		if _, err := w.Write(req.Data); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", req.ID, err)
		}
		return ext, nil
	}
}

func importRaw(name string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}
