package wad

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/ossyrian/wadsplit/internal/tag"
	wstypes "github.com/ossyrian/wadsplit/internal/types"
)

var (
	// ErrInvalidArchive is returned when a file cannot be read as a Wadfile.
	ErrInvalidArchive = errors.New("not a valid archive")
	// ErrEmptyArchive is returned by Save when no slot holds any data.
	ErrEmptyArchive = errors.New("archive has no non-empty slots")
)

// Wadfile is an archive of Wads indexed by slot number.
//
// Wads are read lazily: opening a file only reads the header and the
// directory, and Wad reads and caches a slot the first time it is asked
// for. A Wadfile owns its input handle and is not safe for concurrent use.
type Wadfile struct {
	fs     afero.Fs
	file   afero.File
	r      io.ReadSeeker
	logger *slog.Logger

	header    Header
	directory map[int16]DirectoryEntry
	data      map[int16]DirectoryData
	wads      map[int16]*Wad

	// SaveOrder lists the chunk tags every Wad writes first.
	SaveOrder []tag.Tag
}

// New returns an empty Wadfile that opens and saves through fsys.
func New(fsys afero.Fs, logger *slog.Logger) *Wadfile {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wadfile{
		fs:        fsys,
		logger:    logger,
		header:    NewHeader(),
		directory: make(map[int16]DirectoryEntry),
		data:      make(map[int16]DirectoryData),
		wads:      make(map[int16]*Wad),
		SaveOrder: ForgeSaveOrder(),
	}
}

// Open opens path and loads its header and directory. The file stays open
// until Close so slots can be read on demand.
func (f *Wadfile) Open(path string) error {
	if err := f.Close(); err != nil {
		return err
	}

	file, err := f.fs.Open(path)
	if err != nil {
		return wstypes.IOError("open wadfile", fmt.Errorf("failed to open %s: %w", path, err))
	}

	f.logger = f.logger.With("file", path)
	if err := f.Load(file); err != nil {
		file.Close()
		return err
	}

	f.file = file
	return nil
}

// Load reads the header and directory from r, which becomes the source
// for lazily loaded slots. Any read failure means r is not a valid
// archive.
func (f *Wadfile) Load(r io.ReadSeeker) error {
	f.r = r
	f.directory = make(map[int16]DirectoryEntry)
	f.data = make(map[int16]DirectoryData)
	f.wads = make(map[int16]*Wad)

	if err := f.load(); err != nil {
		f.r = nil
		return wstypes.StructuralError("load wadfile", fmt.Errorf("%w: %w", ErrInvalidArchive, err))
	}
	return nil
}

func (f *Wadfile) load() error {
	if _, err := f.r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to header: %w", err)
	}

	h, err := ReadHeader(f.r)
	if err != nil {
		return err
	}
	f.header = *h

	f.logger.Debug("header is valid",
		"version", h.Version,
		"data_version", h.DataVersion,
		"file_name", h.FileName,
		"wad_count", h.WadCount,
		"directory_offset", h.DirectoryOffset,
	)

	if _, err := f.r.Seek(int64(h.DirectoryOffset), io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to directory at %d: %w", h.DirectoryOffset, err)
	}

	for i := int16(0); i < h.WadCount; i++ {
		entry, err := readDirectoryEntry(f.r, int(h.DirectoryEntryBaseSize), i)
		if err != nil {
			return fmt.Errorf("failed to read directory entry %d: %w", i, err)
		}
		f.directory[entry.Index] = entry

		switch h.DirectoryDataSize {
		case 0:
		case DirectoryDataSize:
			d, err := readDirectoryData(f.r)
			if err != nil {
				return fmt.Errorf("failed to read directory data for slot %d: %w", entry.Index, err)
			}
			f.data[entry.Index] = d
		default:
			if _, err := f.r.Seek(int64(h.DirectoryDataSize), io.SeekCurrent); err != nil {
				return fmt.Errorf("failed to skip directory data for slot %d: %w", entry.Index, err)
			}
		}

		f.logger.Debug("read directory entry",
			"index", entry.Index,
			"offset", entry.Offset,
			"size", entry.Size,
		)
	}

	f.logger.Info("read directory", "wad_count", h.WadCount)
	return nil
}

// Close releases the input handle. Cached slots stay available.
func (f *Wadfile) Close() error {
	f.r = nil
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	if err != nil {
		return wstypes.IOError("close wadfile", err)
	}
	return nil
}

// HasWad reports whether the directory has an entry for index.
func (f *Wadfile) HasWad(index int16) bool {
	_, ok := f.directory[index]
	return ok
}

// Wad returns the Wad in slot index, reading it on first use. Unknown
// slots yield an empty Wad. The returned Wad is shared with the cache;
// pass a modified copy to SetWad instead of changing it in place.
func (f *Wadfile) Wad(index int16) (*Wad, error) {
	if w, ok := f.wads[index]; ok {
		return w, nil
	}

	entry, ok := f.directory[index]
	if !ok || entry.Size == 0 {
		return NewWad(), nil
	}
	if f.r == nil {
		return nil, wstypes.IOError("read wad", fmt.Errorf("slot %d is not loaded and no input is open", index))
	}

	if _, err := f.r.Seek(int64(entry.Offset), io.SeekStart); err != nil {
		return nil, wstypes.IOError("read wad", fmt.Errorf("failed to seek to slot %d at %d: %w", index, entry.Offset, err))
	}

	w := NewWad()
	if err := w.Load(f.r, int(f.header.EntryHeaderSize)); err != nil {
		return nil, fmt.Errorf("failed to read slot %d: %w", index, err)
	}

	f.logger.Debug("loaded wad", "index", index, "chunks", len(w.chunks))
	f.wads[index] = w
	return w, nil
}

// SetWad stores w in slot index and refreshes the slot's directory entry
// and auxiliary data.
func (f *Wadfile) SetWad(index int16, w *Wad) {
	f.wads[index] = w
	f.directory[index] = DirectoryEntry{Index: index, Size: w.Size()}
	f.data[index] = f.deriveDirectoryData(index, w)
}

// WadIndexes returns every slot in the directory, ascending.
func (f *Wadfile) WadIndexes() []int16 {
	indexes := lo.Keys(f.directory)
	slices.Sort(indexes)
	return indexes
}

// EntryPointIndexes returns the slots whose entry point flags share a bit
// with flags.
func (f *Wadfile) EntryPointIndexes(flags uint32) ([]int16, error) {
	var indexes []int16
	for _, index := range f.WadIndexes() {
		epf, err := f.EntryPointFlags(index)
		if err != nil {
			return nil, err
		}
		if epf&flags != 0 {
			indexes = append(indexes, index)
		}
	}
	return indexes, nil
}

// EntryPointFlags returns the cached entry point flags of slot index.
func (f *Wadfile) EntryPointFlags(index int16) (uint32, error) {
	d, err := f.directoryData(index)
	if err != nil {
		return 0, err
	}
	return d.EntryPointFlags, nil
}

// LevelName returns the directory level name of slot index, or "" when
// the slot does not exist.
func (f *Wadfile) LevelName(index int16) (string, error) {
	d, err := f.directoryData(index)
	if err != nil {
		return "", err
	}
	return d.LevelName, nil
}

// SetLevelName overrides the directory level name of slot index without
// touching the slot's 'Minf' chunk.
func (f *Wadfile) SetLevelName(index int16, name string) error {
	d, err := f.directoryData(index)
	if err != nil {
		return err
	}
	d.LevelName = name
	f.data[index] = d
	return nil
}

// DirectoryData returns the auxiliary record of slot index, deriving and
// caching it from the slot's 'Minf' chunk if needed.
func (f *Wadfile) DirectoryData(index int16) (DirectoryData, error) {
	return f.directoryData(index)
}

func (f *Wadfile) directoryData(index int16) (DirectoryData, error) {
	if !f.HasWad(index) {
		return DirectoryData{}, nil
	}
	if d, ok := f.data[index]; ok {
		return d, nil
	}

	_, cached := f.wads[index]
	w, err := f.Wad(index)
	if err != nil {
		return DirectoryData{}, err
	}
	if !cached {
		// reading the directory data should not pin the whole slot
		delete(f.wads, index)
	}

	d := f.deriveDirectoryData(index, w)
	f.data[index] = d
	return d, nil
}

func (f *Wadfile) deriveDirectoryData(index int16, w *Wad) DirectoryData {
	if !w.HasChunk(TagMapInfo) {
		return DirectoryData{}
	}
	info, err := ParseMapInfo(w.Chunk(TagMapInfo))
	if err != nil {
		f.logger.Warn("ignoring unreadable map info", "index", index, "error", err)
		return DirectoryData{}
	}
	return directoryDataFrom(info)
}

// Header returns a copy of the current header.
func (f *Wadfile) Header() Header { return f.header }

func (f *Wadfile) Version() int16         { return f.header.Version }
func (f *Wadfile) DataVersion() int16     { return f.header.DataVersion }
func (f *Wadfile) SetDataVersion(v int16) { f.header.DataVersion = v }
func (f *Wadfile) FileName() string       { return f.header.FileName }
func (f *Wadfile) Checksum() uint32       { return f.header.Checksum }
func (f *Wadfile) ParentChecksum() uint32 { return f.header.ParentChecksum }

// SetFileName sets the name stored in the header. It is truncated to 63
// Mac OS Roman bytes on save.
func (f *Wadfile) SetFileName(name string) { f.header.FileName = name }

// Save writes the archive to path. Every slot is read into memory first,
// so path may be the file the archive was opened from.
func (f *Wadfile) Save(path string) error {
	if err := f.materialize(); err != nil {
		return err
	}
	if len(f.nonEmptyIndexes()) == 0 {
		return wstypes.StructuralError("save wadfile", ErrEmptyArchive)
	}

	file, err := f.fs.Create(path)
	if err != nil {
		return wstypes.IOError("save wadfile", fmt.Errorf("failed to create %s: %w", path, err))
	}

	if err := f.SaveTo(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return wstypes.IOError("save wadfile", fmt.Errorf("failed to close %s: %w", path, err))
	}

	f.logger.Info("saved wadfile", "path", path, "wad_count", f.header.WadCount, "checksum", f.header.Checksum)
	return nil
}

func (f *Wadfile) materialize() error {
	for _, index := range f.WadIndexes() {
		if _, err := f.Wad(index); err != nil {
			return err
		}
		if _, err := f.directoryData(index); err != nil {
			return err
		}
	}
	return nil
}

func (f *Wadfile) nonEmptyIndexes() []int16 {
	return lo.Filter(f.WadIndexes(), func(index int16, _ int) bool {
		w, ok := f.wads[index]
		return ok && w.Size() > 0
	})
}

// SaveTo writes the archive to w. The header is written first with a zero
// checksum, then every non-empty slot in index order, then the directory,
// and finally the CRC-32 of all of it is patched into the header.
func (f *Wadfile) SaveTo(w io.WriteSeeker) error {
	if err := f.materialize(); err != nil {
		return err
	}

	h := NewHeader()
	h.DataVersion = f.header.DataVersion
	h.FileName = f.header.FileName
	h.ParentChecksum = f.header.ParentChecksum
	h.DirectoryOffset = HeaderSize

	indexes := f.nonEmptyIndexes()
	switch len(indexes) {
	case 0:
		return wstypes.StructuralError("save wadfile", ErrEmptyArchive)
	case 1:
		h.Version = VersionSupportsOverlays
		h.DirectoryDataSize = 0
	}
	h.WadCount = int16(len(indexes))

	for _, index := range indexes {
		size := f.wads[index].Size()
		f.directory[index] = DirectoryEntry{Offset: h.DirectoryOffset, Size: size, Index: index}
		h.DirectoryOffset += size
	}

	cw := NewChecksumWriter(w)
	start, err := cw.Tell()
	if err != nil {
		return wstypes.IOError("save wadfile", fmt.Errorf("failed to get start position: %w", err))
	}

	header, _ := h.MarshalBinary()
	if _, err := cw.Write(header); err != nil {
		return wstypes.IOError("save wadfile", fmt.Errorf("failed to write header: %w", err))
	}

	for _, index := range indexes {
		if err := f.wads[index].Save(cw, f.SaveOrder); err != nil {
			return fmt.Errorf("failed to write slot %d: %w", index, err)
		}
	}

	for _, index := range indexes {
		entry := f.directory[index]
		if _, err := cw.Write(marshalRecord(&entry)); err != nil {
			return wstypes.IOError("save wadfile", fmt.Errorf("failed to write directory entry %d: %w", index, err))
		}
		if h.DirectoryDataSize > 0 {
			if _, err := cw.Write(f.data[index].marshal()); err != nil {
				return wstypes.IOError("save wadfile", fmt.Errorf("failed to write directory data %d: %w", index, err))
			}
		}
	}

	h.Checksum = cw.Checksum()
	header, _ = h.MarshalBinary()
	if err := cw.Patch(start, header); err != nil {
		return wstypes.IOError("save wadfile", err)
	}

	f.header = h
	return nil
}

// Describe summarizes the header the way `wadsplit info` prints it.
func (f *Wadfile) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version: %d\n", f.header.Version)
	fmt.Fprintf(&b, "Data version: %d\n", f.header.DataVersion)
	fmt.Fprintf(&b, "File name: %s\n", f.header.FileName)
	fmt.Fprintf(&b, "Checksum: 0x%08X\n", f.header.Checksum)
	fmt.Fprintf(&b, "Directory offset: %d\n", f.header.DirectoryOffset)
	fmt.Fprintf(&b, "Directory data size: %d\n", f.header.DirectoryDataSize)
	fmt.Fprintf(&b, "Entry header size: %d\n", f.header.EntryHeaderSize)
	fmt.Fprintf(&b, "Wad count: %d\n", f.header.WadCount)
	return b.String()
}
