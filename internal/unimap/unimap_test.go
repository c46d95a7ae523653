package unimap_test

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/spf13/afero"

	"github.com/ossyrian/wadsplit/internal/rsrc"
	"github.com/ossyrian/wadsplit/internal/tag"
	"github.com/ossyrian/wadsplit/internal/unimap"
	"github.com/ossyrian/wadsplit/internal/wad"
)

var (
	pict128 = rsrc.ID{Type: tag.New("PICT"), ID: 128}
	clut129 = rsrc.ID{Type: tag.New("clut"), ID: 129}
	text3   = rsrc.ID{Type: rsrc.TagText, ID: 3}
)

// dataFork saves a Wadfile with a level in slot 0 and resource slots 128
// and 129, and returns its bytes.
func dataFork(t *testing.T) []byte {
	t.Helper()

	fs := afero.NewMemMapFs()
	f := wad.New(fs, nil)

	minf, _ := (&wad.MapInfo{LevelName: "Arrival", EntryPointFlags: 1}).MarshalBinary()
	level := wad.NewWad()
	level.AddChunk(wad.TagMapInfo, minf)
	level.AddChunk(tag.New("PNTS"), []byte{1, 2})
	f.SetWad(0, level)

	pict := wad.NewWad()
	pict.AddChunk(pict128.Type, []byte{1})
	f.SetWad(128, pict)

	clut := wad.NewWad()
	clut.AddChunk(clut129.Type, []byte{2, 2})
	f.SetWad(129, clut)

	if err := f.Save("/data.sceA"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	data, err := afero.ReadFile(fs, "/data.sceA")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	return data
}

func resourceFork() []byte {
	return rsrc.Marshal(
		map[rsrc.ID][]byte{
			pict128: {9, 9},
			text3:   []byte("words"),
			{Type: tag.New("snd "), ID: 5}: {7},
		},
		map[rsrc.ID]string{
			pict128: "Title",
			text3:   "Three",
		},
	)
}

func openArchive(t *testing.T, fs afero.Fs, path string, data []byte) *unimap.Archive {
	t.Helper()

	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	a := unimap.New(fs, nil)
	if err := a.Open(path); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestResourceFallback(t *testing.T) {
	fs := afero.NewMemMapFs()
	file := rsrc.EncodeMacBinary("Map", tag.New("sce2"), tag.New("26.A"), dataFork(t), resourceFork())
	a := openArchive(t, fs, "/map.bin", file)

	tests := []struct {
		name string
		id   rsrc.ID
		want []byte
	}{
		{name: "overlay takes precedence", id: pict128, want: []byte{9, 9}},
		{name: "falls back to wad chunk", id: clut129, want: []byte{2, 2}},
		{name: "overlay only", id: rsrc.ID{Type: tag.New("snd "), ID: 5}, want: []byte{7}},
		{name: "missing", id: rsrc.ID{Type: tag.New("snd "), ID: 6}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Resource(tt.id)
			if err != nil {
				t.Fatalf("Resource() failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Resource(%v) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}

	if ok, _ := a.HasResource(clut129); !ok {
		t.Error("HasResource() = false for a wad-backed resource")
	}
}

func TestResourceIdentifiers(t *testing.T) {
	fs := afero.NewMemMapFs()
	file := rsrc.EncodeMacBinary("Map", tag.New("sce2"), tag.New("26.A"), dataFork(t), resourceFork())
	a := openArchive(t, fs, "/map.bin", file)

	got, err := a.ResourceIdentifiers()
	if err != nil {
		t.Fatalf("ResourceIdentifiers() failed: %v", err)
	}
	want := []rsrc.ID{
		pict128,
		text3,
		clut129,
		{Type: tag.New("snd "), ID: 5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResourceIdentifiers() = %v, want %v", got, want)
	}
}

func TestResourceName(t *testing.T) {
	fs := afero.NewMemMapFs()
	file := rsrc.EncodeMacBinary("Map", tag.New("sce2"), tag.New("26.A"), dataFork(t), resourceFork())
	a := openArchive(t, fs, "/map.bin", file)

	tests := []struct {
		id   int16
		want string
	}{
		{id: 128, want: "Title"},
		{id: 0, want: "Arrival"},
		{id: 3, want: "Three"},
		{id: 77, want: ""},
	}

	for _, tt := range tests {
		got, err := a.ResourceName(tt.id)
		if err != nil {
			t.Fatalf("ResourceName(%d) failed: %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("ResourceName(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}

	if err := a.SetResourceName(0, "Renamed"); err != nil {
		t.Fatalf("SetResourceName() failed: %v", err)
	}
	if got, _ := a.ResourceName(0); got != "Renamed" {
		t.Errorf("ResourceName(0) = %q after rename, want %q", got, "Renamed")
	}
}

func TestSetResource(t *testing.T) {
	fs := afero.NewMemMapFs()
	file := rsrc.EncodeMacBinary("Map", tag.New("sce2"), tag.New("26.A"), dataFork(t), resourceFork())
	a := openArchive(t, fs, "/map.bin", file)

	if err := a.SetResource(pict128, []byte{4, 4, 4}); err != nil {
		t.Fatalf("SetResource() failed: %v", err)
	}
	got, err := a.Resource(pict128)
	if err != nil {
		t.Fatalf("Resource() failed: %v", err)
	}
	if !bytes.Equal(got, []byte{4, 4, 4}) {
		t.Errorf("Resource() = %v after SetResource, want [4 4 4]", got)
	}

	// the level slot must not be disturbed by a resource in another slot
	level, err := a.Wad(0)
	if err != nil {
		t.Fatalf("Wad() failed: %v", err)
	}
	if !level.HasChunk(wad.TagMapInfo) {
		t.Error("level slot lost its map info")
	}
}

func TestSaveFoldsOverlay(t *testing.T) {
	fs := afero.NewMemMapFs()
	file := rsrc.EncodeMacBinary("Map", tag.New("sce2"), tag.New("26.A"), dataFork(t), resourceFork())
	a := openArchive(t, fs, "/map.bin", file)

	if err := a.Save("/saved.sceA"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	b := unimap.New(fs, nil)
	if err := b.Open("/saved.sceA"); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer b.Close()

	for id, want := range map[rsrc.ID][]byte{
		pict128: {9, 9},
		clut129: {2, 2},
		{Type: tag.New("snd "), ID: 5}: {7},
	} {
		got, err := b.Resource(id)
		if err != nil {
			t.Fatalf("Resource(%v) failed: %v", id, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Resource(%v) = %v, want %v", id, got, want)
		}
	}
}

func TestOpen(t *testing.T) {
	plain := dataFork(t)
	badCRC := rsrc.EncodeMacBinary("Map", tag.New("sce2"), tag.New("26.A"), plain, resourceFork())
	badCRC[125] ^= 0xFF

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{name: "plain wadfile", data: plain},
		{name: "resource fork only", data: rsrc.EncodeMacBinary("R", 0, 0, nil, resourceFork())},
		{name: "empty MacBinary", data: rsrc.EncodeMacBinary("E", 0, 0, nil, nil), wantErr: true},
		{name: "empty file", data: nil, wantErr: true},
		{name: "bad MacBinary checksum", data: badCRC, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if err := afero.WriteFile(fs, "/map", tt.data, 0o644); err != nil {
				t.Fatalf("WriteFile() failed: %v", err)
			}

			a := unimap.New(fs, nil)
			err := a.Open("/map")
			defer a.Close()

			if tt.wantErr {
				if !errors.Is(err, wad.ErrInvalidArchive) {
					t.Errorf("Open() error = %v, want %v", err, wad.ErrInvalidArchive)
				}
				return
			}
			if err != nil {
				t.Errorf("Open() failed: %v", err)
			}
		})
	}
}
