package unimap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/afero"

	"github.com/ossyrian/wadsplit/internal/rsrc"
	wstypes "github.com/ossyrian/wadsplit/internal/types"
	"github.com/ossyrian/wadsplit/internal/wad"
)

// Archive is a Wadfile with an optional resource fork overlay. Resources
// are looked up in the overlay first and then in the Wad whose slot
// matches the resource number.
type Archive struct {
	*wad.Wadfile

	fs      afero.Fs
	file    afero.File
	logger  *slog.Logger
	overlay *rsrc.Fork
}

// New returns an empty Archive that opens and saves through fsys.
func New(fsys afero.Fs, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{
		Wadfile: wad.New(fsys, logger),
		fs:      fsys,
		logger:  logger,
		overlay: rsrc.NewFork(),
	}
}

// Open reads path as a MacBinary file, a Wadfile with a companion
// resource fork, or a plain Wadfile. A file with an empty data fork is
// valid only when its resource fork holds something.
func (a *Archive) Open(path string) error {
	if err := a.Close(); err != nil {
		return err
	}

	file, err := a.fs.Open(path)
	if err != nil {
		return wstypes.IOError("open archive", fmt.Errorf("failed to open %s: %w", path, err))
	}
	if err := a.load(file, path); err != nil {
		file.Close()
		return err
	}

	a.file = file
	return nil
}

func (a *Archive) load(file afero.File, path string) error {
	logger := a.logger.With("file", path)

	info, err := file.Stat()
	if err != nil {
		return wstypes.IOError("open archive", fmt.Errorf("failed to stat %s: %w", path, err))
	}

	a.overlay = rsrc.NewFork()
	dataOffset, dataLength := int64(0), info.Size()

	if mb, ok := rsrc.DetectMacBinary(file); ok {
		logger.Debug("detected MacBinary",
			"data_length", mb.DataLength,
			"resource_length", mb.ResourceLength,
		)

		fork := make([]byte, mb.ResourceLength)
		if _, err := file.ReadAt(fork, mb.ResourceOffset); err != nil && !errors.Is(err, io.EOF) {
			return wstypes.IOError("open archive", fmt.Errorf("failed to read resource fork: %w", err))
		}
		if len(fork) > 0 {
			overlay, err := rsrc.Parse(fork)
			if err != nil {
				return wstypes.StructuralError("open archive", fmt.Errorf("%w: %w", wad.ErrInvalidArchive, err))
			}
			a.overlay = overlay
		}
		dataOffset, dataLength = mb.DataOffset, mb.DataLength
	} else {
		fork, err := companionFork(a.fs, path)
		switch {
		case err != nil:
			logger.Debug("no companion resource fork", "error", err)
		case len(fork) > 0:
			if overlay, err := rsrc.Parse(fork); err != nil {
				logger.Warn("ignoring malformed companion resource fork", "error", err)
			} else {
				a.overlay = overlay
			}
		}
	}

	if dataLength > 0 {
		return a.Wadfile.Load(io.NewSectionReader(file, dataOffset, dataLength))
	}
	if a.overlay.Len() == 0 {
		return wstypes.StructuralError("open archive", fmt.Errorf("%w: %s has neither data nor resources", wad.ErrInvalidArchive, path))
	}

	logger.Info("opened resource-only archive", "resources", a.overlay.Len())
	return nil
}

// Close releases the input handle.
func (a *Archive) Close() error {
	if err := a.Wadfile.Close(); err != nil {
		return err
	}
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	if err != nil {
		return wstypes.IOError("close archive", err)
	}
	return nil
}

// Resource returns the bytes of id: the overlay's copy if it has any,
// else the chunk tagged id.Type in slot id.ID, else nil.
func (a *Archive) Resource(id rsrc.ID) ([]byte, error) {
	if data := a.overlay.Get(id); len(data) > 0 {
		return data, nil
	}
	if !a.HasWad(id.ID) {
		return nil, nil
	}
	w, err := a.Wad(id.ID)
	if err != nil {
		return nil, err
	}
	return w.Chunk(id.Type), nil
}

// HasResource reports whether Resource would return any bytes for id.
func (a *Archive) HasResource(id rsrc.ID) (bool, error) {
	data, err := a.Resource(id)
	return len(data) > 0, err
}

// SetResource stores data as chunk id.Type of slot id.ID and drops the
// overlay's copy.
func (a *Archive) SetResource(id rsrc.ID, data []byte) error {
	w := wad.NewWad()
	if a.HasWad(id.ID) {
		existing, err := a.Wad(id.ID)
		if err != nil {
			return err
		}
		w = existing.Clone()
	}
	w.AddChunk(id.Type, data)
	a.SetWad(id.ID, w)
	a.overlay.Delete(id)
	return nil
}

// ResourceIdentifiers lists the overlay's resources plus every chunk of
// every slot that is not a level, sorted by type and number.
func (a *Archive) ResourceIdentifiers() ([]rsrc.ID, error) {
	ids := a.overlay.IDs()
	for _, index := range a.WadIndexes() {
		w, err := a.Wad(index)
		if err != nil {
			return nil, err
		}
		if w.HasChunk(wad.TagMapInfo) {
			continue
		}
		for _, t := range w.Tags() {
			id := rsrc.ID{Type: t, ID: index}
			if !a.overlay.Has(id) {
				ids = append(ids, id)
			}
		}
	}
	slices.SortFunc(ids, rsrc.Compare)
	return ids, nil
}

// ResourceName returns the name for resource number id: an explicit
// resource fork name, else the slot's level name, else the name of the
// 'TEXT' resource with the same number.
func (a *Archive) ResourceName(id int16) (string, error) {
	if name, ok := a.overlay.Name(id); ok {
		return name, nil
	}
	name, err := a.LevelName(id)
	if err != nil {
		return "", err
	}
	if name != "" {
		return name, nil
	}
	name, _ = a.overlay.TextName(id)
	return name, nil
}

// SetResourceName names resource number id. Existing slots carry the
// name in their directory entry.
func (a *Archive) SetResourceName(id int16, name string) error {
	if a.HasWad(id) {
		return a.SetLevelName(id, name)
	}
	a.overlay.SetName(id, name)
	return nil
}

// Save folds every overlay resource into its slot's Wad and writes the
// result as a plain Wadfile.
func (a *Archive) Save(path string) error {
	for _, id := range a.overlay.IDs() {
		data := a.overlay.Get(id)
		if len(data) == 0 {
			continue
		}
		if err := a.SetResource(id, data); err != nil {
			return fmt.Errorf("failed to fold resource %s: %w", id, err)
		}
	}
	return a.Wadfile.Save(path)
}
