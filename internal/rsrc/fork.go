package rsrc

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/ossyrian/wadsplit/internal/macroman"
	"github.com/ossyrian/wadsplit/internal/tag"
)

// ErrFormat is returned when a resource fork's header or map is malformed.
var ErrFormat = errors.New("malformed resource fork")

// TagText is the resource type whose names serve as fallback level names.
var TagText = tag.New("TEXT")

const (
	forkHeaderSize = 16
	mapHeaderSize  = 28
	typeEntrySize  = 8
	refEntrySize   = 12
)

// ID identifies a resource by type and number.
type ID struct {
	Type tag.Tag
	ID   int16
}

func (id ID) String() string {
	return fmt.Sprintf("'%s' %d", id.Type, id.ID)
}

// Compare orders IDs by type, then number.
func Compare(a, b ID) int {
	if c := cmp.Compare(a.Type, b.Type); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

type span struct {
	off, n int
}

// Fork is a parsed resource fork. Payloads are slices of one backing
// array, so a Fork is cheap to keep around for the life of an archive.
type Fork struct {
	data      []byte
	spans     map[ID]span
	names     map[int16]string
	textNames map[int16]string
}

// NewFork returns an empty Fork.
func NewFork() *Fork {
	return &Fork{
		spans:     make(map[ID]span),
		names:     make(map[int16]string),
		textNames: make(map[int16]string),
	}
}

// Parse reads a resource fork. The Fork keeps data as its backing store;
// callers must not modify it afterwards.
func Parse(data []byte) (*Fork, error) {
	f := NewFork()
	f.data = data

	if len(data) < forkHeaderSize {
		return nil, fmt.Errorf("%w: %d byte fork is shorter than its header", ErrFormat, len(data))
	}

	dataOffset := int64(binary.BigEndian.Uint32(data[0:]))
	mapOffset := int64(binary.BigEndian.Uint32(data[4:]))
	dataLength := int64(binary.BigEndian.Uint32(data[8:]))
	mapLength := int64(binary.BigEndian.Uint32(data[12:]))

	if dataOffset+dataLength > int64(len(data)) {
		return nil, fmt.Errorf("%w: data region %d+%d exceeds %d bytes", ErrFormat, dataOffset, dataLength, len(data))
	}
	if mapOffset+mapLength > int64(len(data)) || mapLength < mapHeaderSize {
		return nil, fmt.Errorf("%w: map region %d+%d exceeds %d bytes", ErrFormat, mapOffset, mapLength, len(data))
	}

	m := data[mapOffset : mapOffset+mapLength]
	typeListOffset := int(binary.BigEndian.Uint16(m[24:]))
	nameListOffset := int(binary.BigEndian.Uint16(m[26:]))

	if typeListOffset+2 > len(m) {
		return nil, fmt.Errorf("%w: type list offset %d outside map", ErrFormat, typeListOffset)
	}
	typeList := m[typeListOffset:]
	numTypes := int(int16(binary.BigEndian.Uint16(typeList))) + 1

	for i := range numTypes {
		pos := 2 + i*typeEntrySize
		if pos+typeEntrySize > len(typeList) {
			return nil, fmt.Errorf("%w: type entry %d outside map", ErrFormat, i)
		}
		typ := tag.Tag(binary.BigEndian.Uint32(typeList[pos:]))
		numRefs := int(int16(binary.BigEndian.Uint16(typeList[pos+4:]))) + 1
		refListOffset := int(binary.BigEndian.Uint16(typeList[pos+6:]))

		for j := range numRefs {
			ref := refListOffset + j*refEntrySize
			if ref+refEntrySize > len(typeList) {
				return nil, fmt.Errorf("%w: reference %d of '%s' outside map", ErrFormat, j, typ)
			}
			id := ID{Type: typ, ID: int16(binary.BigEndian.Uint16(typeList[ref:]))}
			nameOffset := int16(binary.BigEndian.Uint16(typeList[ref+2:]))
			payloadOffset := int64(binary.BigEndian.Uint32(typeList[ref+4:]) & 0x00ffffff)

			start := dataOffset + payloadOffset
			if start+4 > dataOffset+dataLength {
				return nil, fmt.Errorf("%w: %s payload offset %d outside data", ErrFormat, id, payloadOffset)
			}
			n := int64(binary.BigEndian.Uint32(data[start:]))
			if start+4+n > dataOffset+dataLength {
				return nil, fmt.Errorf("%w: %s payload length %d runs past data", ErrFormat, id, n)
			}
			f.spans[id] = span{off: int(start + 4), n: int(n)}

			if nameOffset >= 0 {
				name, err := pascalString(m, nameListOffset+int(nameOffset))
				if err != nil {
					return nil, fmt.Errorf("%w: name of %s: %w", ErrFormat, id, err)
				}
				if typ == TagText {
					f.textNames[id.ID] = name
				} else {
					f.names[id.ID] = name
				}
			}
		}
	}

	return f, nil
}

func pascalString(b []byte, pos int) (string, error) {
	if pos < 0 || pos >= len(b) {
		return "", fmt.Errorf("offset %d outside map", pos)
	}
	n := int(b[pos])
	if pos+1+n > len(b) {
		return "", fmt.Errorf("%d byte string at %d runs past map", n, pos)
	}
	return macroman.Decode(b[pos+1 : pos+1+n]), nil
}

// Len returns the number of resources.
func (f *Fork) Len() int { return len(f.spans) }

// IDs returns every resource identifier, sorted.
func (f *Fork) IDs() []ID {
	ids := lo.Keys(f.spans)
	slices.SortFunc(ids, Compare)
	return ids
}

// Has reports whether the fork holds id.
func (f *Fork) Has(id ID) bool {
	_, ok := f.spans[id]
	return ok
}

// Get returns the payload of id, or nil. The slice aliases the fork's
// backing store and must not be modified.
func (f *Fork) Get(id ID) []byte {
	s, ok := f.spans[id]
	if !ok {
		return nil
	}
	return f.data[s.off : s.off+s.n : s.off+s.n]
}

// Delete removes id. The payload bytes stay in the backing store.
func (f *Fork) Delete(id ID) {
	delete(f.spans, id)
}

// Name returns the name attached to any non-'TEXT' resource numbered id.
func (f *Fork) Name(id int16) (string, bool) {
	name, ok := f.names[id]
	return name, ok
}

// TextName returns the name of the 'TEXT' resource numbered id.
func (f *Fork) TextName(id int16) (string, bool) {
	name, ok := f.textNames[id]
	return name, ok
}

// SetName attaches name to resource number id.
func (f *Fork) SetName(id int16, name string) {
	f.names[id] = name
}

// Marshal encodes resources as a resource fork. Names are attached to
// the matching ID when present in names.
func Marshal(resources map[ID][]byte, names map[ID]string) []byte {
	ids := lo.Keys(resources)
	slices.SortFunc(ids, Compare)
	types := lo.Uniq(lo.Map(ids, func(id ID, _ int) tag.Tag { return id.Type }))

	const dataOffset = 256

	var payload bytes.Buffer
	offsets := make(map[ID]uint32, len(ids))
	for _, id := range ids {
		offsets[id] = uint32(payload.Len())
		binary.Write(&payload, binary.BigEndian, uint32(len(resources[id])))
		payload.Write(resources[id])
	}

	var nameList bytes.Buffer
	nameOffsets := make(map[ID]int16)
	for _, id := range ids {
		name, ok := names[id]
		if !ok {
			continue
		}
		encoded := macroman.Encode(name)
		if len(encoded) > 255 {
			encoded = encoded[:255]
		}
		nameOffsets[id] = int16(nameList.Len())
		nameList.WriteByte(byte(len(encoded)))
		nameList.Write(encoded)
	}

	var typeList bytes.Buffer
	binary.Write(&typeList, binary.BigEndian, uint16(len(types)-1))
	refListOffset := 2 + typeEntrySize*len(types)
	for _, typ := range types {
		count := lo.CountBy(ids, func(id ID) bool { return id.Type == typ })
		binary.Write(&typeList, binary.BigEndian, uint32(typ))
		binary.Write(&typeList, binary.BigEndian, uint16(count-1))
		binary.Write(&typeList, binary.BigEndian, uint16(refListOffset))
		refListOffset += count * refEntrySize
	}
	for _, id := range ids {
		nameOffset, ok := nameOffsets[id]
		if !ok {
			nameOffset = -1
		}
		binary.Write(&typeList, binary.BigEndian, id.ID)
		binary.Write(&typeList, binary.BigEndian, nameOffset)
		binary.Write(&typeList, binary.BigEndian, offsets[id]&0x00ffffff)
		binary.Write(&typeList, binary.BigEndian, uint32(0))
	}

	mapOffset := dataOffset + payload.Len()
	mapLength := mapHeaderSize + typeList.Len() + nameList.Len()

	header := make([]byte, forkHeaderSize)
	binary.BigEndian.PutUint32(header[0:], dataOffset)
	binary.BigEndian.PutUint32(header[4:], uint32(mapOffset))
	binary.BigEndian.PutUint32(header[8:], uint32(payload.Len()))
	binary.BigEndian.PutUint32(header[12:], uint32(mapLength))

	mapHeader := make([]byte, mapHeaderSize)
	copy(mapHeader, header)
	binary.BigEndian.PutUint16(mapHeader[24:], mapHeaderSize)
	binary.BigEndian.PutUint16(mapHeader[26:], uint16(mapHeaderSize+typeList.Len()))

	out := make([]byte, dataOffset, mapOffset+mapLength)
	copy(out, header)
	out = append(out, payload.Bytes()...)
	out = append(out, mapHeader...)
	out = append(out, typeList.Bytes()...)
	out = append(out, nameList.Bytes()...)
	return out
}
