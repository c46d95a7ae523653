package wad

import (
	"fmt"
	"io"

	"github.com/ossyrian/wadsplit/internal/macroman"
)

// Header is the fixed 128 byte header at the start of a Wadfile.
type Header struct {
	Version     int16
	DataVersion int16
	FileName    string
	Checksum    uint32

	DirectoryOffset int32
	WadCount        int16

	// DirectoryDataSize is the size of the auxiliary record following
	// each directory entry. 0 when absent.
	DirectoryDataSize      int16
	EntryHeaderSize        int16
	DirectoryEntryBaseSize int16

	ParentChecksum uint32
}

type binHeader struct {
	Version                int16
	DataVersion            int16
	FileName               [FileNameLength]byte
	Checksum               uint32
	DirectoryOffset        int32
	WadCount               int16
	DirectoryDataSize      int16
	EntryHeaderSize        int16
	DirectoryEntryBaseSize int16
	ParentChecksum         uint32
	Unused                 [20]int16
}

// NewHeader returns the header of an empty, current-version Wadfile.
func NewHeader() Header {
	return Header{
		Version:                VersionCurrent,
		DataVersion:            DataVersionCurrent,
		DirectoryDataSize:      DirectoryDataSize,
		EntryHeaderSize:        EntryHeaderSize,
		DirectoryEntryBaseSize: DirectoryEntrySize,
	}
}

// ReadHeader reads a Wadfile header from r. Files older than
// VersionSupportsOverlays get the legacy entry and directory sizes
// regardless of what the header says.
func ReadHeader(r io.Reader) (*Header, error) {
	var b binHeader
	if err := readRecord(r, HeaderSize, &b); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	h := &Header{
		Version:                b.Version,
		DataVersion:            b.DataVersion,
		FileName:               macroman.DecodeCString(b.FileName[:FileNameLength-1]),
		Checksum:               b.Checksum,
		DirectoryOffset:        b.DirectoryOffset,
		WadCount:               b.WadCount,
		DirectoryDataSize:      b.DirectoryDataSize,
		EntryHeaderSize:        b.EntryHeaderSize,
		DirectoryEntryBaseSize: b.DirectoryEntryBaseSize,
		ParentChecksum:         b.ParentChecksum,
	}

	if h.Version <= VersionHasDirectoryEntry {
		h.EntryHeaderSize = EntryHeaderOldSize
		h.DirectoryEntryBaseSize = DirectoryEntryOldSize
	}

	switch {
	case h.DirectoryOffset < HeaderSize:
		return nil, fmt.Errorf("invalid directory offset: %d", h.DirectoryOffset)
	case h.WadCount < 0:
		return nil, fmt.Errorf("invalid wad count: %d", h.WadCount)
	case h.DirectoryDataSize < 0:
		return nil, fmt.Errorf("invalid directory data size: %d", h.DirectoryDataSize)
	case h.EntryHeaderSize < EntryHeaderOldSize:
		return nil, fmt.Errorf("invalid entry header size: %d", h.EntryHeaderSize)
	case h.DirectoryEntryBaseSize < DirectoryEntryOldSize:
		return nil, fmt.Errorf("invalid directory entry size: %d", h.DirectoryEntryBaseSize)
	}

	return h, nil
}

// MarshalBinary encodes h as the 128 byte on-disk header.
func (h *Header) MarshalBinary() ([]byte, error) {
	b := binHeader{
		Version:                h.Version,
		DataVersion:            h.DataVersion,
		Checksum:               h.Checksum,
		DirectoryOffset:        h.DirectoryOffset,
		WadCount:               h.WadCount,
		DirectoryDataSize:      h.DirectoryDataSize,
		EntryHeaderSize:        h.EntryHeaderSize,
		DirectoryEntryBaseSize: h.DirectoryEntryBaseSize,
		ParentChecksum:         h.ParentChecksum,
	}
	copy(b.FileName[:], macroman.EncodeFixed(h.FileName, FileNameLength))
	return marshalRecord(&b), nil
}

// DirectoryEntry locates one Wad inside the file. Offsets are recomputed
// on every save and never trusted across saves.
type DirectoryEntry struct {
	Offset int32
	Size   int32
	Index  int16
}

// readDirectoryEntry reads an entry of the given width. Legacy 8 byte
// entries carry no index, so position is used instead.
func readDirectoryEntry(r io.Reader, width int, position int16) (DirectoryEntry, error) {
	var e DirectoryEntry
	if err := readRecord(r, width, &e); err != nil {
		return e, err
	}
	if width < DirectoryEntrySize {
		e.Index = position
	}
	if e.Offset < 0 || e.Size < 0 {
		return e, fmt.Errorf("invalid directory entry: offset %d size %d", e.Offset, e.Size)
	}
	return e, nil
}

// DirectoryData is the auxiliary per-slot record cached from the slot's
// 'Minf' chunk.
type DirectoryData struct {
	MissionFlags     int16
	EnvironmentFlags int16
	EntryPointFlags  uint32
	LevelName        string
}

type binDirectoryData struct {
	MissionFlags     int16
	EnvironmentFlags int16
	EntryPointFlags  uint32
	LevelName        [LevelNameLength]byte
}

// readDirectoryData reads one auxiliary record. A record cut short by
// exactly two bytes is accepted: an old merge tool wrote them that way.
func readDirectoryData(r io.Reader) (DirectoryData, error) {
	buf := make([]byte, DirectoryDataSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !(err == io.ErrUnexpectedEOF && n == DirectoryDataSize-2) {
		return DirectoryData{}, err
	}

	var b binDirectoryData
	if err := readRecord(bytesReader(buf), DirectoryDataSize, &b); err != nil {
		return DirectoryData{}, err
	}

	return DirectoryData{
		MissionFlags:     b.MissionFlags,
		EnvironmentFlags: b.EnvironmentFlags,
		EntryPointFlags:  b.EntryPointFlags,
		LevelName:        macroman.DecodeCString(b.LevelName[:LevelNameLength-1]),
	}, nil
}

func (d DirectoryData) marshal() []byte {
	b := binDirectoryData{
		MissionFlags:     d.MissionFlags,
		EnvironmentFlags: d.EnvironmentFlags,
		EntryPointFlags:  d.EntryPointFlags,
	}
	copy(b.LevelName[:], macroman.EncodeFixed(d.LevelName, LevelNameLength))
	return marshalRecord(&b)
}

// directoryDataFrom derives the auxiliary record from a 'Minf' chunk.
func directoryDataFrom(info *MapInfo) DirectoryData {
	return DirectoryData{
		MissionFlags:     info.MissionFlags,
		EnvironmentFlags: info.EnvironmentFlags,
		EntryPointFlags:  info.EntryPointFlags,
		LevelName:        info.LevelName,
	}
}
