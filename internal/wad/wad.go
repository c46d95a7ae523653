package wad

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/samber/lo"

	"github.com/ossyrian/wadsplit/internal/tag"
	wstypes "github.com/ossyrian/wadsplit/internal/types"
)

// Wad is one slot of a Wadfile: a set of binary chunks keyed by tag.
// A chunk with no bytes is kept in memory but never sized or saved.
type Wad struct {
	chunks map[tag.Tag][]byte
}

// entryHeader precedes every chunk on disk.
// NextOffset is relative to the start of the Wad, 0 for the last chunk.
type entryHeader struct {
	Tag        uint32
	NextOffset int32
	Length     int32
	Offset     int32
}

// NewWad returns an empty Wad.
func NewWad() *Wad {
	return &Wad{chunks: make(map[tag.Tag][]byte)}
}

// AddChunk stores a copy of data under t, replacing any previous chunk.
func (w *Wad) AddChunk(t tag.Tag, data []byte) {
	w.chunks[t] = bytes.Clone(data)
}

// HasChunk reports whether a chunk is stored under t.
func (w *Wad) HasChunk(t tag.Tag) bool {
	_, ok := w.chunks[t]
	return ok
}

// Chunk returns the bytes stored under t, or nil. The slice is owned by
// the Wad and must not be modified.
func (w *Wad) Chunk(t tag.Tag) []byte {
	return w.chunks[t]
}

// RemoveChunk deletes t.
func (w *Wad) RemoveChunk(t tag.Tag) {
	delete(w.chunks, t)
}

// Tags returns every stored tag in ascending order.
func (w *Wad) Tags() []tag.Tag {
	tags := lo.Keys(w.chunks)
	slices.Sort(tags)
	return tags
}

// Clone returns a deep copy of w.
func (w *Wad) Clone() *Wad {
	c := NewWad()
	for t, data := range w.chunks {
		c.AddChunk(t, data)
	}
	return c
}

// Size returns the number of bytes Save will write. Directory offsets are
// derived from it, so it must be called after the last mutation.
func (w *Wad) Size() int32 {
	var size int32
	for _, data := range w.chunks {
		if len(data) > 0 {
			size += int32(len(data)) + EntryHeaderSize
		}
	}
	return size
}

// Load reads a chunk list starting at the current position of r.
// entryHeaderSize is EntryHeaderSize for current files and
// EntryHeaderOldSize for legacy ones.
func (w *Wad) Load(r io.ReadSeeker, entryHeaderSize int) error {
	if entryHeaderSize < EntryHeaderOldSize {
		return wstypes.StructuralError("load wad", fmt.Errorf("invalid entry header size: %d", entryHeaderSize))
	}

	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return wstypes.IOError("load wad", fmt.Errorf("failed to get current position: %w", err))
	}

	var current int32
	for {
		var h entryHeader
		if err := readRecord(r, entryHeaderSize, &h); err != nil {
			return wstypes.IOError("load wad", fmt.Errorf("failed to read entry header at %d: %w", start+int64(current), err))
		}
		if h.Length < 0 {
			return wstypes.StructuralError("load wad", fmt.Errorf("invalid length %d for chunk %s", h.Length, tag.Tag(h.Tag)))
		}

		data, err := readPayload(r, int64(h.Length))
		if err != nil {
			return wstypes.IOError("load wad", fmt.Errorf("failed to read chunk %s: %w", tag.Tag(h.Tag), err))
		}
		w.chunks[tag.Tag(h.Tag)] = data

		if h.NextOffset == 0 {
			return nil
		}
		if h.NextOffset <= current {
			return wstypes.StructuralError("load wad", fmt.Errorf("chunk list does not advance: next offset %d after %d", h.NextOffset, current))
		}
		current = h.NextOffset

		if _, err := r.Seek(start+int64(current), io.SeekStart); err != nil {
			return wstypes.IOError("load wad", fmt.Errorf("failed to seek to chunk at %d: %w", current, err))
		}
	}
}

// saveTags returns the non-empty tags in write order: those listed in
// order first, then the rest ascending.
func (w *Wad) saveTags(order []tag.Tag) []tag.Tag {
	nonEmpty := func(t tag.Tag) bool { return len(w.chunks[t]) > 0 }

	tags := lo.Uniq(lo.Filter(order, func(t tag.Tag, _ int) bool { return nonEmpty(t) }))
	for _, t := range w.Tags() {
		if nonEmpty(t) && !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	return tags
}

// Save writes the chunk list. Empty chunks are skipped.
func (w *Wad) Save(out io.Writer, order []tag.Tag) error {
	tags := w.saveTags(order)

	var offset int32
	for i, t := range tags {
		data := w.chunks[t]
		h := entryHeader{
			Tag:    uint32(t),
			Length: int32(len(data)),
		}
		if i < len(tags)-1 {
			h.NextOffset = offset + EntryHeaderSize + h.Length
		}

		if _, err := out.Write(marshalRecord(&h)); err != nil {
			return wstypes.IOError("save wad", fmt.Errorf("failed to write header for chunk %s: %w", t, err))
		}
		if _, err := out.Write(data); err != nil {
			return wstypes.IOError("save wad", fmt.Errorf("failed to write chunk %s: %w", t, err))
		}
		offset += EntryHeaderSize + h.Length
	}

	return nil
}
