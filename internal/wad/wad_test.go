package wad_test

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/ossyrian/wadsplit/internal/tag"
	wstypes "github.com/ossyrian/wadsplit/internal/types"
	"github.com/ossyrian/wadsplit/internal/wad"
)

// writtenTags walks a saved chunk list and returns its tags in file order.
func writtenTags(t *testing.T, data []byte) []tag.Tag {
	t.Helper()

	var tags []tag.Tag
	pos := 0
	for {
		if pos+wad.EntryHeaderSize > len(data) {
			t.Fatalf("chunk header at %d runs past %d bytes", pos, len(data))
		}
		tags = append(tags, tag.Tag(binary.BigEndian.Uint32(data[pos:])))
		next := int(int32(binary.BigEndian.Uint32(data[pos+4:])))
		if next == 0 {
			return tags
		}
		pos = next
	}
}

func TestSaveOrder(t *testing.T) {
	w := wad.NewWad()
	w.AddChunk(tag.New("zzzz"), []byte{1})
	w.AddChunk(tag.New("aaaa"), []byte{2})
	w.AddChunk(wad.TagMapInfo, []byte{3})
	w.AddChunk(tag.New("PNTS"), []byte{4})
	w.AddChunk(tag.New("LINS"), nil)

	var buf bytes.Buffer
	if err := w.Save(&buf, wad.ForgeSaveOrder()); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	want := []tag.Tag{tag.New("PNTS"), wad.TagMapInfo, tag.New("aaaa"), tag.New("zzzz")}
	if got := writtenTags(t, buf.Bytes()); !reflect.DeepEqual(got, want) {
		t.Errorf("written tags = %v, want %v", got, want)
	}
	if int32(buf.Len()) != w.Size() {
		t.Errorf("wrote %d bytes, Size() = %d", buf.Len(), w.Size())
	}
}

func TestWadLoad(t *testing.T) {
	w := wad.NewWad()
	w.AddChunk(tag.New("PNTS"), []byte{1, 2, 3})
	w.AddChunk(tag.New("term"), []byte{4, 5})

	var buf bytes.Buffer
	if err := w.Save(&buf, nil); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	// leading garbage checks that offsets are relative to the wad
	data := append([]byte{0xEE, 0xEE, 0xEE}, buf.Bytes()...)

	r := bytes.NewReader(data)
	r.Seek(3, 0)

	got := wad.NewWad()
	if err := got.Load(r, wad.EntryHeaderSize); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !reflect.DeepEqual(got.Tags(), w.Tags()) {
		t.Errorf("Tags() = %v, want %v", got.Tags(), w.Tags())
	}
	if !bytes.Equal(got.Chunk(tag.New("term")), []byte{4, 5}) {
		t.Errorf("Chunk(term) = %v, want [4 5]", got.Chunk(tag.New("term")))
	}
}

func TestWadLoadErrors(t *testing.T) {
	header := func(tg string, next, length int32) []byte {
		b := make([]byte, wad.EntryHeaderSize)
		binary.BigEndian.PutUint32(b[0:], uint32(tag.New(tg)))
		binary.BigEndian.PutUint32(b[4:], uint32(next))
		binary.BigEndian.PutUint32(b[8:], uint32(length))
		return b
	}

	tests := []struct {
		name string
		data []byte
		kind wstypes.ErrorKind
	}{
		{
			name: "truncated header",
			data: []byte{0, 1, 2},
			kind: wstypes.KindIO,
		},
		{
			name: "truncated payload",
			data: append(header("PNTS", 0, 10), 1, 2),
			kind: wstypes.KindIO,
		},
		{
			name: "negative length",
			data: header("PNTS", 0, -1),
			kind: wstypes.KindStructural,
		},
		{
			name: "next offset past end",
			data: append(header("PNTS", 0x7FFFFFFF, 0), header("LINS", 0, 0)...),
			kind: wstypes.KindIO,
		},
		{
			name: "next offset points backwards",
			data: append(append(header("PNTS", 16, 0), header("LINS", 8, 0)...), make([]byte, 16)...),
			kind: wstypes.KindStructural,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wad.NewWad().Load(bytes.NewReader(tt.data), wad.EntryHeaderSize)
			if err == nil {
				t.Fatal("Load() succeeded unexpectedly, wanted error")
			}
			if got := wstypes.KindOf(err); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v (err: %v)", got, tt.kind, err)
			}
		})
	}
}

func TestClone(t *testing.T) {
	w := wad.NewWad()
	w.AddChunk(tag.New("PNTS"), []byte{1})

	c := w.Clone()
	c.AddChunk(tag.New("LINS"), []byte{2})

	if w.HasChunk(tag.New("LINS")) {
		t.Error("Clone() shares chunks with the original")
	}
}

func TestMapInfo(t *testing.T) {
	in := &wad.MapInfo{
		EnvironmentCode: 2,
		PhysicsModel:    1,
		SongIndex:       3,
		MissionFlags:    4,
		LevelName:       "Bigger Guns Nearby",
		EntryPointFlags: 0x21,
	}

	data, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() failed: %v", err)
	}
	if len(data) != wad.MapInfoSize {
		t.Errorf("len = %d, want %d", len(data), wad.MapInfoSize)
	}

	out, err := wad.ParseMapInfo(data)
	if err != nil {
		t.Fatalf("ParseMapInfo() failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("ParseMapInfo() = %+v, want %+v", out, in)
	}

	if _, err := wad.ParseMapInfo(data[:10]); err == nil {
		t.Error("ParseMapInfo() accepted a short chunk")
	}
}
