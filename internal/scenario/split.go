package scenario

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"github.com/ossyrian/wadsplit/internal/codec"
	"github.com/ossyrian/wadsplit/internal/rsrc"
	wstypes "github.com/ossyrian/wadsplit/internal/types"
	"github.com/ossyrian/wadsplit/internal/unimap"
	"github.com/ossyrian/wadsplit/internal/wad"
)

// Splitter writes the levels and resources of an archive to a directory.
type Splitter struct {
	fs     afero.Fs
	logger *slog.Logger
	opts   Options
}

// NewSplitter returns a Splitter that reads and writes through fsys.
func NewSplitter(fsys afero.Fs, logger *slog.Logger, opts Options) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = codec.Default(logger)
	}
	return &Splitter{fs: fsys, logger: logger, opts: opts}
}

// Split writes the archive at src into the directory dest, creating it
// if needed.
func (s *Splitter) Split(src, dest string) (*Summary, error) {
	logger := s.logger.With("src", src, "dest", dest)

	if exists, _ := afero.Exists(s.fs, src); !exists {
		return nil, wstypes.IOError("split", fmt.Errorf("%s does not exist", src))
	}
	if info, err := s.fs.Stat(dest); err == nil && !info.IsDir() {
		return nil, wstypes.StructuralError("split", fmt.Errorf("destination %s must be a directory", dest))
	}
	if err := s.fs.MkdirAll(dest, 0o755); err != nil {
		return nil, wstypes.IOError("split", fmt.Errorf("failed to create %s: %w", dest, err))
	}

	archive := unimap.New(s.fs, logger)
	if err := archive.Open(src); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer archive.Close()

	indexes := archive.WadIndexes()
	if len(indexes) > 0 && archive.DataVersion() < s.opts.MinDataVersion {
		return nil, wstypes.PolicyError("split", fmt.Errorf("%s has data version %d, need at least %d", src, archive.DataVersion(), s.opts.MinDataVersion))
	}

	summary := &Summary{}
	names := make(map[int16]string)

	for _, index := range indexes {
		w, err := archive.Wad(index)
		if err != nil {
			return nil, err
		}
		if !w.HasChunk(wad.TagMapInfo) {
			continue
		}
		if err := s.splitLevel(archive, index, w, dest, names); err != nil {
			return nil, fmt.Errorf("failed to split level %d: %w", index, err)
		}
		summary.Levels++
	}

	exported, skipped, err := s.splitResources(archive, filepath.Join(dest, ResourcesDir), names)
	if err != nil {
		return nil, err
	}
	summary.Resources, summary.Skipped = exported, skipped

	if err := writeLevelSelectNames(s.fs, filepath.Join(dest, LevelSelectNamesFile), names); err != nil {
		return nil, err
	}

	logger.Info("split archive",
		"levels", summary.Levels,
		"resources", summary.Resources,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

func (s *Splitter) splitLevel(archive *unimap.Archive, index int16, w *wad.Wad, dest string, names map[int16]string) error {
	level, err := archive.LevelName(index)
	if err != nil {
		return err
	}

	actual := level
	if info, err := wad.ParseMapInfo(w.Chunk(wad.TagMapInfo)); err != nil {
		s.logger.Warn("unreadable map info, using directory name", "index", index, "error", err)
	} else {
		actual = info.LevelName
	}
	if level != actual {
		names[index] = level
	}

	folder := filepath.Join(dest, fmt.Sprintf("%02d %s", index, Sanitize(level)))
	if err := s.fs.MkdirAll(folder, 0o755); err != nil {
		return wstypes.IOError("split level", fmt.Errorf("failed to create %s: %w", folder, err))
	}
	base := filepath.Join(folder, Sanitize(actual))

	w = w.Clone()

	physics := wad.NewWad()
	for _, t := range s.opts.PhysicsTags {
		if w.HasChunk(t) {
			physics.AddChunk(t, w.Chunk(t))
			w.RemoveChunk(t)
		}
	}
	if len(physics.Tags()) > 0 {
		if err := s.saveSingle(physics, actual, wad.DataVersionMarathon, base+ExtPhysics); err != nil {
			return err
		}
	}

	if w.HasChunk(s.opts.ShapesTag) {
		if shapes := w.Chunk(s.opts.ShapesTag); len(shapes) > 0 {
			if err := afero.WriteFile(s.fs, base+ExtShapes, shapes, 0o644); err != nil {
				return wstypes.IOError("split level", fmt.Errorf("failed to write shapes: %w", err))
			}
		}
		w.RemoveChunk(s.opts.ShapesTag)
	}

	s.logger.Debug("splitting level", "index", index, "name", actual, "folder", folder)
	return s.saveSingle(w, actual, wad.DataVersionMarathonTwo, base+ExtLevel)
}

func (s *Splitter) saveSingle(w *wad.Wad, name string, dataVersion int16, path string) error {
	f := wad.New(s.fs, s.logger)
	f.SetWad(0, w)
	f.SetDataVersion(dataVersion)
	f.SetFileName(name)
	return f.Save(path)
}

// splitResources exports every resource below root. Conversion runs in a
// worker pool over byte snapshots taken from the archive up front, so the
// archive itself is only touched from this goroutine.
func (s *Splitter) splitResources(archive *unimap.Archive, root string, names map[int16]string) (int, int, error) {
	ids, err := archive.ResourceIdentifiers()
	if err != nil {
		return 0, 0, err
	}

	var (
		exported atomic.Int64
		skipped  atomic.Int64
		dirs     = make(map[string]bool)
		owners   = s.fileOwners(ids)
	)
	p := pool.New().WithErrors().WithMaxGoroutines(s.opts.workers())

	for _, id := range ids {
		data, err := archive.Resource(id)
		if err != nil {
			return 0, 0, err
		}
		if len(data) == 0 {
			continue
		}
		palette, err := archive.Resource(rsrc.ID{Type: codec.TagCLUT, ID: id.ID})
		if err != nil {
			return 0, 0, err
		}

		h := s.opts.Registry.Lookup(id.Type)
		diverted := false
		if owner := owners[outputKey(h, id)]; owner != id {
			s.logger.Warn("resource shares a file with another type, exporting raw", "resource", id.String(), "owner", owner.String())
			h = codec.Raw(id.Type)
			diverted = true
		}
		dir := filepath.Join(root, filepath.FromSlash(h.Dir))
		if !dirs[dir] {
			if err := s.fs.MkdirAll(dir, 0o755); err != nil {
				return 0, 0, wstypes.IOError("split resources", fmt.Errorf("failed to create %s: %w", dir, err))
			}
			dirs[dir] = true
		}

		if _, ok := names[id.ID]; !ok {
			name, err := archive.ResourceName(id.ID)
			if err != nil {
				return 0, 0, err
			}
			if name != "" {
				names[id.ID] = name
			}
		}

		req := codec.Request{ID: id, Data: data, Palette: palette}
		p.Go(func() error {
			fellBack, err := s.exportResource(req, h, root)
			if err != nil {
				return err
			}
			if fellBack || diverted {
				skipped.Add(1)
			}
			exported.Add(1)
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return 0, 0, err
	}
	return int(exported.Load()), int(skipped.Load()), nil
}

// outputKey names the file h writes for id, less its extension.
func outputKey(h codec.Handler, id rsrc.ID) string {
	return fmt.Sprintf("%s/%05d", h.Dir, id.ID)
}

// fileOwners picks which resource gets each converted file when several
// types share a folder, as 'PICT' and 'pict' do. The type the folder
// imports as wins; the others are exported raw so merge can tell them
// apart.
func (s *Splitter) fileOwners(ids []rsrc.ID) map[string]rsrc.ID {
	owners := make(map[string]rsrc.ID)
	for _, id := range ids {
		h := s.opts.Registry.Lookup(id.Type)
		key := outputKey(h, id)
		owner, taken := owners[key]
		if !taken || (h.StoreAs == id.Type && s.opts.Registry.Lookup(owner.Type).StoreAs != owner.Type) {
			owners[key] = id
		}
	}
	return owners
}

// exportResource converts req with h and writes the result. Resources h
// cannot convert are written raw instead; the bool reports that.
func (s *Splitter) exportResource(req codec.Request, h codec.Handler, root string) (bool, error) {
	var buf bytes.Buffer
	ext, err := h.Export(req, &buf)
	fellBack := false
	if err != nil {
		s.logger.Warn("could not convert resource, exporting raw", "resource", req.ID.String(), "error", err)
		fellBack = true

		h = codec.Raw(req.ID.Type)
		buf.Reset()
		if ext, err = h.Export(req, &buf); err != nil {
			return false, err
		}
	}

	dir := filepath.Join(root, filepath.FromSlash(h.Dir))
	if fellBack {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return false, wstypes.IOError("export resource", fmt.Errorf("failed to create %s: %w", dir, err))
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("%05d%s", req.ID.ID, ext))
	if err := afero.WriteFile(s.fs, path, buf.Bytes(), 0o644); err != nil {
		return false, wstypes.IOError("export resource", fmt.Errorf("failed to write %s: %w", path, err))
	}
	return fellBack, nil
}
