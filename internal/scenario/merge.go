package scenario

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"github.com/ossyrian/wadsplit/internal/codec"
	"github.com/ossyrian/wadsplit/internal/rsrc"
	"github.com/ossyrian/wadsplit/internal/tag"
	wstypes "github.com/ossyrian/wadsplit/internal/types"
	"github.com/ossyrian/wadsplit/internal/unimap"
	"github.com/ossyrian/wadsplit/internal/wad"
)

// ErrConflict is wrapped by the Policy errors merge reports when a level
// folder has more than one file of a kind.
var ErrConflict = errors.New("conflicting source files")

// ErrSlotInUse is wrapped by the Policy errors merge reports for a
// resource numbered like a level.
var ErrSlotInUse = errors.New("slot is used by a level")

// Merger builds an archive from a directory written by Splitter.
type Merger struct {
	fs     afero.Fs
	logger *slog.Logger
	opts   Options
}

// NewMerger returns a Merger that reads and writes through fsys.
func NewMerger(fsys afero.Fs, logger *slog.Logger, opts Options) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = codec.Default(logger)
	}
	return &Merger{fs: fsys, logger: logger, opts: opts}
}

// Merge builds an archive from the directory src and saves it to dest.
// Level folders and resource files that break a rule are logged and
// skipped; everything else is merged.
func (m *Merger) Merge(src, dest string) (*Summary, error) {
	logger := m.logger.With("src", src, "dest", dest)

	isDir, err := afero.IsDir(m.fs, src)
	if err != nil {
		return nil, wstypes.IOError("merge", fmt.Errorf("%s does not exist", src))
	}
	if !isDir {
		return nil, wstypes.StructuralError("merge", errors.New("source must be a directory"))
	}

	names, err := readLevelSelectNames(m.fs, filepath.Join(src, LevelSelectNamesFile))
	if err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(m.fs, src)
	if err != nil {
		return nil, wstypes.IOError("merge", fmt.Errorf("failed to list %s: %w", src, err))
	}

	archive := unimap.New(m.fs, logger)
	summary := &Summary{}

	for _, entry := range lo.Filter(entries, visibleDir) {
		if entry.Name() == ResourcesDir {
			continue
		}
		index, _, ok := parseIndex(entry.Name())
		if !ok {
			logger.Debug("ignoring folder without a slot number", "folder", entry.Name())
			continue
		}

		w, err := m.createWad(filepath.Join(src, entry.Name()))
		if err != nil {
			if wstypes.KindOf(err) != wstypes.KindPolicy {
				return nil, err
			}
			logger.Warn("skipping level", "folder", entry.Name(), "error", err)
			summary.Skipped++
			continue
		}
		archive.SetWad(index, w)
		summary.Levels++
	}

	resources := filepath.Join(src, ResourcesDir)
	if ok, _ := afero.IsDir(m.fs, resources); ok {
		merged, skipped, err := m.mergeResources(archive, resources)
		if err != nil {
			return nil, err
		}
		summary.Resources = merged
		summary.Skipped += skipped
	}

	for index, name := range names {
		if archive.HasWad(index) {
			if err := archive.SetLevelName(index, name); err != nil {
				return nil, err
			}
		}
	}

	base := filepath.Base(dest)
	archive.SetFileName(strings.TrimSuffix(base, filepath.Ext(base)))
	if err := archive.Save(dest); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", dest, err)
	}

	logger.Info("merged archive",
		"levels", summary.Levels,
		"resources", summary.Resources,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

func visibleDir(info os.FileInfo, _ int) bool {
	return info.IsDir() && !strings.HasPrefix(info.Name(), ".")
}

func visibleFile(info os.FileInfo, _ int) bool {
	return !info.IsDir() && !strings.HasPrefix(info.Name(), ".")
}

// createWad builds the Wad of a level folder from its map, physics and
// shapes files.
func (m *Merger) createWad(folder string) (*wad.Wad, error) {
	entries, err := afero.ReadDir(m.fs, folder)
	if err != nil {
		return nil, wstypes.IOError("merge level", fmt.Errorf("failed to list %s: %w", folder, err))
	}

	byExt := lo.GroupBy(lo.Filter(entries, visibleFile), func(info os.FileInfo) string {
		return filepath.Ext(info.Name())
	})
	for _, ext := range []string{ExtLevel, ExtPhysics, ExtShapes} {
		if files := byExt[ext]; len(files) > 1 {
			return nil, wstypes.PolicyError("merge level", fmt.Errorf("%w: %d %s files in %s", ErrConflict, len(files), ext, folder))
		}
	}

	maps := byExt[ExtLevel]
	if len(maps) == 0 {
		return nil, wstypes.PolicyError("merge level", fmt.Errorf("%s does not contain a map", folder))
	}

	level, err := m.openSingle(filepath.Join(folder, maps[0].Name()))
	if err != nil {
		return nil, err
	}
	w := level.Clone()

	if physics := byExt[ExtPhysics]; len(physics) == 1 {
		if err := m.mergePhysics(filepath.Join(folder, physics[0].Name()), w); err != nil {
			if wstypes.KindOf(err) != wstypes.KindPolicy {
				return nil, err
			}
			m.logger.Warn("skipping physics model", "error", err)
		}
	}

	if shapes := byExt[ExtShapes]; len(shapes) == 1 {
		if err := m.mergeShapes(filepath.Join(folder, shapes[0].Name()), shapes[0].Size(), w); err != nil {
			if wstypes.KindOf(err) != wstypes.KindPolicy {
				return nil, err
			}
			m.logger.Warn("skipping shapes patch", "error", err)
		}
	}

	return w, nil
}

// openSingle returns slot 0 of the archive at path.
func (m *Merger) openSingle(path string) (*wad.Wad, error) {
	archive := unimap.New(m.fs, m.logger)
	if err := archive.Open(path); err != nil {
		if wstypes.KindOf(err) == wstypes.KindStructural {
			return nil, wstypes.PolicyError("merge level", err)
		}
		return nil, err
	}
	defer archive.Close()

	if filepath.Ext(path) == ExtLevel && archive.DataVersion() < m.opts.MinDataVersion {
		return nil, wstypes.PolicyError("merge level", fmt.Errorf("%s has data version %d, need at least %d", path, archive.DataVersion(), m.opts.MinDataVersion))
	}
	return archive.Wad(0)
}

func (m *Merger) mergePhysics(path string, w *wad.Wad) error {
	physics, err := m.openSingle(path)
	if err != nil {
		return err
	}

	missing := lo.Reject(m.opts.PhysicsTags, func(t tag.Tag, _ int) bool { return physics.HasChunk(t) })
	if len(missing) > 0 {
		return wstypes.PolicyError("merge physics", fmt.Errorf("%s is not a valid physics model: missing %v", path, missing))
	}

	for _, t := range m.opts.PhysicsTags {
		w.AddChunk(t, physics.Chunk(t))
	}
	return nil
}

func (m *Merger) mergeShapes(path string, size int64, w *wad.Wad) error {
	if size > MaxShapesSize {
		return wstypes.PolicyError("merge shapes", fmt.Errorf("%s is larger than %dK", path, MaxShapesSize/1024))
	}
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		return wstypes.IOError("merge shapes", fmt.Errorf("failed to read %s: %w", path, err))
	}
	w.AddChunk(m.opts.ShapesTag, data)
	return nil
}

// importJob is one resource file and the handler that reads it.
type importJob struct {
	id      rsrc.ID
	path    string
	handler codec.Handler
}

type imported struct {
	id   rsrc.ID
	data []byte
}

// mergeResources imports every resource file below root. Files are
// converted in a worker pool; results are stored from this goroutine.
// Resources numbered like a level slot already in archive are skipped,
// since they would be stored inside the level.
func (m *Merger) mergeResources(archive *unimap.Archive, root string) (int, int, error) {
	jobs, skipped, err := m.resourceJobs(root)
	if err != nil {
		return 0, 0, err
	}

	levels := lo.SliceToMap(archive.WadIndexes(), func(index int16) (int16, bool) { return index, true })
	jobs = lo.Filter(jobs, func(job importJob, _ int) bool {
		if !levels[job.id.ID] {
			return true
		}
		m.logger.Warn("skipping resource",
			"error", wstypes.PolicyError("merge resources", fmt.Errorf("%w: %s uses the slot of a level", ErrSlotInUse, job.id)),
			"path", job.path,
		)
		skipped++
		return false
	})

	p := pool.NewWithResults[*imported]().WithErrors().WithMaxGoroutines(m.opts.workers())
	for _, job := range jobs {
		p.Go(func() (*imported, error) {
			return m.importResource(job)
		})
	}
	results, err := p.Wait()
	if err != nil {
		return 0, 0, err
	}

	merged := 0
	for _, res := range results {
		if res == nil {
			skipped++
			continue
		}
		if err := archive.SetResource(res.id, res.data); err != nil {
			return 0, 0, err
		}
		merged++
	}
	return merged, skipped, nil
}

// resourceJobs lists the importable files below root. Two files that
// would become the same resource are both skipped.
func (m *Merger) resourceJobs(root string) ([]importJob, int, error) {
	entries, err := afero.ReadDir(m.fs, root)
	if err != nil {
		return nil, 0, wstypes.IOError("merge resources", fmt.Errorf("failed to list %s: %w", root, err))
	}

	var jobs []importJob
	for _, entry := range lo.Filter(entries, visibleDir) {
		dir := filepath.Join(root, entry.Name())

		if entry.Name() == codec.RawDir {
			raw, err := afero.ReadDir(m.fs, dir)
			if err != nil {
				return nil, 0, wstypes.IOError("merge resources", fmt.Errorf("failed to list %s: %w", dir, err))
			}
			for _, typeDir := range lo.Filter(raw, visibleDir) {
				t, err := codec.ParseDirName(typeDir.Name())
				if err != nil {
					m.logger.Warn("ignoring resource folder", "folder", typeDir.Name(), "error", err)
					continue
				}
				found, err := m.filesIn(filepath.Join(dir, typeDir.Name()), t, codec.Raw(t))
				if err != nil {
					return nil, 0, err
				}
				jobs = append(jobs, found...)
			}
			continue
		}

		t, h, ok := m.opts.Registry.Importer(entry.Name())
		if !ok {
			m.logger.Warn("ignoring resource folder without a converter", "folder", entry.Name())
			continue
		}
		found, err := m.filesIn(dir, t, h)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, found...)
	}

	counts := lo.CountValuesBy(jobs, func(job importJob) rsrc.ID { return job.id })
	skipped := 0
	jobs = lo.Filter(jobs, func(job importJob, _ int) bool {
		if counts[job.id] == 1 {
			return true
		}
		m.logger.Warn("skipping resource",
			"error", wstypes.PolicyError("merge resources", fmt.Errorf("%w: %d files for %s", ErrConflict, counts[job.id], job.id)),
			"path", job.path,
		)
		skipped++
		return false
	})
	slices.SortFunc(jobs, func(a, b importJob) int { return rsrc.Compare(a.id, b.id) })
	return jobs, skipped, nil
}

func (m *Merger) filesIn(dir string, t tag.Tag, h codec.Handler) ([]importJob, error) {
	entries, err := afero.ReadDir(m.fs, dir)
	if err != nil {
		return nil, wstypes.IOError("merge resources", fmt.Errorf("failed to list %s: %w", dir, err))
	}

	var jobs []importJob
	for _, entry := range lo.Filter(entries, visibleFile) {
		id, _, ok := parseIndex(entry.Name())
		if !ok {
			m.logger.Debug("ignoring file without a resource number", "path", filepath.Join(dir, entry.Name()))
			continue
		}
		jobs = append(jobs, importJob{
			id:      rsrc.ID{Type: t, ID: id},
			path:    filepath.Join(dir, entry.Name()),
			handler: h,
		})
	}
	return jobs, nil
}

// importResource converts one file. Files the handler rejects are logged
// and yield nil.
func (m *Merger) importResource(job importJob) (*imported, error) {
	file, err := m.fs.Open(job.path)
	if err != nil {
		return nil, wstypes.IOError("import resource", fmt.Errorf("failed to open %s: %w", job.path, err))
	}
	defer file.Close()

	data, err := job.handler.Import(job.path, file)
	if err != nil {
		m.logger.Warn("skipping resource", "path", job.path, "resource", job.id.String(), "error", err)
		return nil, nil
	}
	return &imported{id: job.id, data: data}, nil
}
