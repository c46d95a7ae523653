package wad

import "github.com/ossyrian/wadsplit/internal/tag"

// Wadfile header versions.
const (
	VersionPreEntryPoint     = 0
	VersionHasDirectoryEntry = 1
	VersionSupportsOverlays  = 2
	VersionHasInfinityStuff  = 4
	VersionCurrent           = VersionHasInfinityStuff
)

// Data versions stored in the header.
const (
	DataVersionMarathon    = 0
	DataVersionMarathonTwo = 1
	DataVersionCurrent     = DataVersionMarathonTwo
)

// On-disk sizes in bytes.
const (
	HeaderSize     = 128
	FileNameLength = 64

	// EntryHeaderSize is the chunk header written by this package:
	// tag, next offset, length, offset.
	EntryHeaderSize = 16
	// EntryHeaderOldSize lacks the trailing offset field.
	EntryHeaderOldSize = 12

	DirectoryEntrySize    = 10
	DirectoryEntryOldSize = 8

	// DirectoryDataSize is the auxiliary per-slot record: mission flags,
	// environment flags, entry point flags and the level name.
	DirectoryDataSize = 74

	LevelNameLength = 64 + 2

	// checksumOffset is where Header.Checksum lives within the header.
	checksumOffset = 2 + 2 + FileNameLength
)

// Well-known chunk tags.
var (
	TagMapInfo  = tag.New("Minf")
	TagTerminal = tag.New("term")
	TagShapes   = tag.New("ShPa")
)

// ForgeSaveOrder returns the chunk order the Forge map editor writes.
// Wad.Save emits these tags first, in this order, when present.
// A fresh slice is returned on every call.
func ForgeSaveOrder() []tag.Tag {
	return []tag.Tag{
		tag.New("PNTS"),
		tag.New("LINS"),
		tag.New("POLY"),
		tag.New("SIDS"),
		tag.New("LITE"),
		tag.New("NOTE"),
		tag.New("OBJS"),
		TagMapInfo,
		tag.New("plac"),
		tag.New("medi"),
		tag.New("ambi"),
		tag.New("bonk"),
		tag.New("iidx"),
		tag.New("EPNT"),
		tag.New("PLAT"),
		TagTerminal,
		tag.New("MNpx"),
		tag.New("FXpx"),
		tag.New("PRpx"),
		tag.New("PXpx"),
		tag.New("WPpx"),
		TagShapes,
	}
}

// PhysicsTags returns the chunk tags that make up a physics model.
func PhysicsTags() []tag.Tag {
	return []tag.Tag{
		tag.New("MNpx"),
		tag.New("FXpx"),
		tag.New("PRpx"),
		tag.New("PXpx"),
		tag.New("WPpx"),
	}
}
