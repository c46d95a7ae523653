package scenario_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"reflect"
	"testing"

	"github.com/spf13/afero"

	"github.com/ossyrian/wadsplit/internal/codec"
	"github.com/ossyrian/wadsplit/internal/pict"
	"github.com/ossyrian/wadsplit/internal/rsrc"
	"github.com/ossyrian/wadsplit/internal/scenario"
	"github.com/ossyrian/wadsplit/internal/tag"
	wstypes "github.com/ossyrian/wadsplit/internal/types"
	"github.com/ossyrian/wadsplit/internal/unimap"
	"github.com/ossyrian/wadsplit/internal/wad"
)

const archivePath = "/in/Scenario.sceA"

var (
	pict128 = rsrc.ID{Type: codec.TagPICT, ID: 128}
	strs129 = rsrc.ID{Type: tag.New("STR#"), ID: 129}
	text130 = rsrc.ID{Type: codec.TagText, ID: 130}
	raw131  = rsrc.ID{Type: codec.TagRawPICT, ID: 131}
)

func options() scenario.Options {
	opts := scenario.DefaultOptions()
	opts.Workers = 4
	return opts
}

func level(t *testing.T, name string, extra map[tag.Tag][]byte) *wad.Wad {
	t.Helper()

	minf, err := (&wad.MapInfo{LevelName: name, EntryPointFlags: 1}).MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() failed: %v", err)
	}
	w := wad.NewWad()
	w.AddChunk(wad.TagMapInfo, minf)
	w.AddChunk(tag.New("PNTS"), []byte(name))
	for k, v := range extra {
		w.AddChunk(k, v)
	}
	return w
}

func physics() map[tag.Tag][]byte {
	chunks := make(map[tag.Tag][]byte)
	for i, t := range wad.PhysicsTags() {
		chunks[t] = []byte{byte(i), 0xaa}
	}
	return chunks
}

func picture(t *testing.T) []byte {
	t.Helper()

	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{
		color.RGBA{A: 0xff},
		color.RGBA{R: 0xff, G: 0xff, A: 0xff},
	})
	img.SetColorIndex(0, 0, 1)
	img.SetColorIndex(1, 1, 1)

	p := pict.New(nil)
	p.SetImage(img)
	data, err := p.Save()
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	return data
}

func resourceWad(id rsrc.ID, data []byte) *wad.Wad {
	w := wad.NewWad()
	w.AddChunk(id.Type, data)
	return w
}

// writeArchive saves a scenario with two levels and four resources:
// a picture, an unregistered type, text and a raw picture without the
// color table it needs.
func writeArchive(t *testing.T, fs afero.Fs) map[int16]*wad.Wad {
	t.Helper()

	first := physics()
	first[wad.TagShapes] = []byte("shapes patch")
	levels := map[int16]*wad.Wad{
		0: level(t, "Arrival", first),
		1: level(t, "Second/Half", nil),
	}

	f := wad.New(fs, nil)
	for index, w := range levels {
		f.SetWad(index, w)
	}
	f.SetWad(pict128.ID, resourceWad(pict128, picture(t)))
	f.SetWad(strs129.ID, resourceWad(strs129, []byte{1, 2, 3}))
	f.SetWad(text130.ID, resourceWad(text130, []byte("Hello\rWorld")))
	f.SetWad(raw131.ID, resourceWad(raw131, []byte{0, 0, 0, 0, 0, 1, 0, 1, 0, 8, 7}))
	f.SetFileName("Scenario")

	if err := f.SetLevelName(1, "Custom"); err != nil {
		t.Fatalf("SetLevelName() failed: %v", err)
	}
	if err := f.SetLevelName(strs129.ID, "Strings"); err != nil {
		t.Fatalf("SetLevelName() failed: %v", err)
	}
	if err := f.Save(archivePath); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	return levels
}

func split(t *testing.T, fs afero.Fs, dest string) *scenario.Summary {
	t.Helper()

	summary, err := scenario.NewSplitter(fs, nil, options()).Split(archivePath, dest)
	if err != nil {
		t.Fatalf("Split() failed: %v", err)
	}
	return summary
}

func assertFile(t *testing.T, fs afero.Fs, path string) []byte {
	t.Helper()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("expected %s: %v", path, err)
	}
	return data
}

func TestSplit(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeArchive(t, fs)

	summary := split(t, fs, "/tree")
	want := scenario.Summary{Levels: 2, Resources: 4, Skipped: 1}
	if *summary != want {
		t.Errorf("Summary = %+v, want %+v", *summary, want)
	}

	for _, path := range []string{
		"/tree/00 Arrival/Arrival.sceA",
		"/tree/00 Arrival/Arrival.phyA",
		"/tree/01 Custom/Second-Half.sceA",
		"/tree/Resources/PICT/00128.bmp",
		"/tree/Resources/Other/STR#/00129.bin",
		"/tree/Resources/TEXT/00130.txt",
		"/tree/Resources/Other/pict/00131.bin",
	} {
		assertFile(t, fs, path)
	}

	if got := string(assertFile(t, fs, "/tree/00 Arrival/Arrival.ShPa")); got != "shapes patch" {
		t.Errorf("shapes = %q, want %q", got, "shapes patch")
	}
	if exists, _ := afero.Exists(fs, "/tree/01 Custom/Second-Half.phyA"); exists {
		t.Errorf("level without physics got a physics file")
	}

	names := string(assertFile(t, fs, "/tree/"+scenario.LevelSelectNamesFile))
	if want := "1 Custom\n129 Strings\n"; names != want {
		t.Errorf("level select names = %q, want %q", names, want)
	}

	t.Run("level file", func(t *testing.T) {
		f := wad.New(fs, nil)
		if err := f.Open("/tree/00 Arrival/Arrival.sceA"); err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		defer f.Close()

		if f.FileName() != "Arrival" {
			t.Errorf("FileName() = %q, want Arrival", f.FileName())
		}
		if f.DataVersion() != wad.DataVersionMarathonTwo {
			t.Errorf("DataVersion() = %d, want %d", f.DataVersion(), wad.DataVersionMarathonTwo)
		}
		w, err := f.Wad(0)
		if err != nil {
			t.Fatalf("Wad(0) failed: %v", err)
		}
		want := []tag.Tag{wad.TagMapInfo, tag.New("PNTS")}
		if got := w.Tags(); !sameTags(got, want) {
			t.Errorf("Tags() = %v, want %v", got, want)
		}
	})

	t.Run("physics file", func(t *testing.T) {
		f := wad.New(fs, nil)
		if err := f.Open("/tree/00 Arrival/Arrival.phyA"); err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		defer f.Close()

		if f.DataVersion() != wad.DataVersionMarathon {
			t.Errorf("DataVersion() = %d, want %d", f.DataVersion(), wad.DataVersionMarathon)
		}
		w, err := f.Wad(0)
		if err != nil {
			t.Fatalf("Wad(0) failed: %v", err)
		}
		if got := w.Tags(); !sameTags(got, wad.PhysicsTags()) {
			t.Errorf("Tags() = %v, want %v", got, wad.PhysicsTags())
		}
	})
}

func sameTags(a, b []tag.Tag) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[tag.Tag]bool)
	for _, t := range a {
		seen[t] = true
	}
	for _, t := range b {
		if !seen[t] {
			return false
		}
	}
	return true
}

func TestSplitMergeRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	levels := writeArchive(t, fs)
	split(t, fs, "/tree")

	summary, err := scenario.NewMerger(fs, nil, options()).Merge("/tree", "/out/Merged.sceA")
	if err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}
	want := scenario.Summary{Levels: 2, Resources: 4}
	if *summary != want {
		t.Errorf("Summary = %+v, want %+v", *summary, want)
	}

	a := unimap.New(fs, nil)
	if err := a.Open("/out/Merged.sceA"); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer a.Close()

	if a.FileName() != "Merged" {
		t.Errorf("FileName() = %q, want Merged", a.FileName())
	}

	for index, orig := range levels {
		got, err := a.Wad(index)
		if err != nil {
			t.Fatalf("Wad(%d) failed: %v", index, err)
		}
		if !sameTags(got.Tags(), orig.Tags()) {
			t.Errorf("slot %d tags = %v, want %v", index, got.Tags(), orig.Tags())
		}
		for _, tg := range orig.Tags() {
			if !bytes.Equal(got.Chunk(tg), orig.Chunk(tg)) {
				t.Errorf("slot %d chunk %s differs", index, tg)
			}
		}
	}

	names := map[int16]string{0: "Arrival", 1: "Custom", strs129.ID: "Strings"}
	for index, want := range names {
		got, err := a.LevelName(index)
		if err != nil {
			t.Fatalf("LevelName(%d) failed: %v", index, err)
		}
		if got != want {
			t.Errorf("LevelName(%d) = %q, want %q", index, got, want)
		}
	}

	for id, want := range map[rsrc.ID][]byte{
		strs129: {1, 2, 3},
		text130: []byte("Hello\rWorld"),
		raw131:  {0, 0, 0, 0, 0, 1, 0, 1, 0, 8, 7},
	} {
		got, err := a.Resource(id)
		if err != nil {
			t.Fatalf("Resource(%s) failed: %v", id, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Resource(%s) = %v, want %v", id, got, want)
		}
	}

	data, err := a.Resource(pict128)
	if err != nil {
		t.Fatalf("Resource(%s) failed: %v", pict128, err)
	}
	p := pict.New(nil)
	p.Load(data)
	if p.Content() != pict.ContentRaster {
		t.Fatalf("merged picture is %s (%s)", p.Content(), p.Reason())
	}
	if got := p.Image().Bounds(); got != image.Rect(0, 0, 2, 2) {
		t.Errorf("picture bounds = %v", got)
	}
	r, g, _, _ := p.Image().At(0, 0).RGBA()
	if r>>8 != 0xff || g>>8 != 0xff {
		t.Errorf("pixel (0,0) = %v, want yellow", p.Image().At(0, 0))
	}
}

func TestSplitErrors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, fs afero.Fs)
		dest     string
		wantKind wstypes.ErrorKind
	}{
		{
			name:     "missing source",
			setup:    func(t *testing.T, fs afero.Fs) {},
			dest:     "/tree",
			wantKind: wstypes.KindIO,
		},
		{
			name: "destination is a file",
			setup: func(t *testing.T, fs afero.Fs) {
				writeArchive(t, fs)
				afero.WriteFile(fs, "/tree", []byte("x"), 0o644)
			},
			dest:     "/tree",
			wantKind: wstypes.KindStructural,
		},
		{
			name: "old data version",
			setup: func(t *testing.T, fs afero.Fs) {
				f := wad.New(fs, nil)
				f.SetWad(0, level(t, "Old", nil))
				f.SetWad(1, level(t, "Older", nil))
				f.SetDataVersion(wad.DataVersionMarathon)
				if err := f.Save(archivePath); err != nil {
					t.Fatalf("Save() failed: %v", err)
				}
			},
			dest:     "/tree",
			wantKind: wstypes.KindPolicy,
		},
		{
			name: "not an archive",
			setup: func(t *testing.T, fs afero.Fs) {
				afero.WriteFile(fs, archivePath, []byte("definitely not a wadfile header"), 0o644)
			},
			dest:     "/tree",
			wantKind: wstypes.KindStructural,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			tt.setup(t, fs)

			_, err := scenario.NewSplitter(fs, nil, options()).Split(archivePath, tt.dest)
			if err == nil {
				t.Fatalf("Split() succeeded, want error")
			}
			if got := wstypes.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf(%v) = %s, want %s", err, got, tt.wantKind)
			}
		})
	}
}

// tree writes files into fs and returns it.
func tree(t *testing.T, files map[string][]byte) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for path, data := range files {
		if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", path, err)
		}
	}
	return fs
}

// singleSlot returns the bytes of a one-slot Wadfile holding w.
func singleSlot(t *testing.T, w *wad.Wad, dataVersion int16) []byte {
	t.Helper()

	fs := afero.NewMemMapFs()
	f := wad.New(fs, nil)
	f.SetWad(0, w)
	f.SetDataVersion(dataVersion)
	if err := f.Save("/single"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	return assertFile(t, fs, "/single")
}

func TestMergePolicy(t *testing.T) {
	good := singleSlot(t, level(t, "Good", nil), wad.DataVersionMarathonTwo)
	physicsWad := wad.NewWad()
	physicsWad.AddChunk(wad.PhysicsTags()[0], []byte{1})
	partialPhysics := singleSlot(t, physicsWad, wad.DataVersionMarathon)

	fs := tree(t, map[string][]byte{
		"/src/00 Good/Good.sceA":             good,
		"/src/00 Good/Good.phyA":             partialPhysics,
		"/src/00 Good/Good.ShPa":             make([]byte, scenario.MaxShapesSize+1),
		"/src/01 Twice/A.sceA":               good,
		"/src/01 Twice/B.sceA":               good,
		"/src/02 Empty/notes.txt":            []byte("nothing here"),
		"/src/03 Old/Old.sceA":               singleSlot(t, level(t, "Old", nil), wad.DataVersionMarathon),
		"/src/notes/00 ignored.sceA":         good,
		"/src/Resources/TEXT/00200.txt":      []byte("first"),
		"/src/Resources/TEXT/200.txt":        []byte("second"),
		"/src/Resources/TEXT/0201 Title.txt": []byte("kept"),
		"/src/Resources/CLUT/00300.act":      []byte("short"),
		"/src/Resources/Junk/00400.bin":      []byte{1},
	})

	summary, err := scenario.NewMerger(fs, nil, options()).Merge("/src", "/out.sceA")
	if err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}
	want := scenario.Summary{Levels: 1, Resources: 1, Skipped: 6}
	if *summary != want {
		t.Errorf("Summary = %+v, want %+v", *summary, want)
	}

	f := wad.New(fs, nil)
	if err := f.Open("/out.sceA"); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer f.Close()

	if got, want := f.WadIndexes(), []int16{0, 201}; !reflect.DeepEqual(got, want) {
		t.Fatalf("WadIndexes() = %v, want %v", got, want)
	}
	w, err := f.Wad(0)
	if err != nil {
		t.Fatalf("Wad(0) failed: %v", err)
	}
	if w.HasChunk(wad.PhysicsTags()[0]) {
		t.Errorf("incomplete physics model was merged")
	}
	if w.HasChunk(wad.TagShapes) {
		t.Errorf("oversized shapes patch was merged")
	}
	text, err := f.Wad(201)
	if err != nil {
		t.Fatalf("Wad(201) failed: %v", err)
	}
	if got := string(text.Chunk(codec.TagText)); got != "kept" {
		t.Errorf("text 201 = %q, want kept", got)
	}
}

func TestMergeErrors(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string][]byte
		wantKind wstypes.ErrorKind
		wantErr  error
	}{
		{
			name:     "missing source",
			files:    map[string][]byte{},
			wantKind: wstypes.KindIO,
		},
		{
			name:     "source is a file",
			files:    map[string][]byte{"/src": []byte("x")},
			wantKind: wstypes.KindStructural,
		},
		{
			name:     "nothing to merge",
			files:    map[string][]byte{"/src/readme": []byte("x")},
			wantKind: wstypes.KindStructural,
			wantErr:  wad.ErrEmptyArchive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := tree(t, tt.files)

			_, err := scenario.NewMerger(fs, nil, options()).Merge("/src", "/out.sceA")
			if err == nil {
				t.Fatalf("Merge() succeeded, want error")
			}
			if got := wstypes.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf(%v) = %s, want %s", err, got, tt.wantKind)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Merge() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLevelSelectNamesLineEndings(t *testing.T) {
	good := singleSlot(t, level(t, "Plain", nil), wad.DataVersionMarathonTwo)
	fs := tree(t, map[string][]byte{
		"/src/00 A/A.sceA":                      good,
		"/src/01 B/B.sceA":                      good,
		"/src/02 C/C.sceA":                      good,
		"/src/" + scenario.LevelSelectNamesFile: []byte("0 Mac Name\r1 Windows Name\r\n2 Unix Name\n7 Missing\n"),
	})

	if _, err := scenario.NewMerger(fs, nil, options()).Merge("/src", "/out.sceA"); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}

	f := wad.New(fs, nil)
	if err := f.Open("/out.sceA"); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer f.Close()

	for index, want := range map[int16]string{0: "Mac Name", 1: "Windows Name", 2: "Unix Name"} {
		got, err := f.LevelName(index)
		if err != nil {
			t.Fatalf("LevelName(%d) failed: %v", index, err)
		}
		if got != want {
			t.Errorf("LevelName(%d) = %q, want %q", index, got, want)
		}
	}
	if f.HasWad(7) {
		t.Errorf("a name without a level created slot 7")
	}
}

func TestDryRun(t *testing.T) {
	base := afero.NewMemMapFs()
	writeArchive(t, base)
	fs := scenario.DryRun(base)

	split(t, fs, "/tree")
	if _, err := scenario.NewMerger(fs, nil, options()).Merge("/tree", "/out.sceA"); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}

	for _, path := range []string{"/tree", "/out.sceA"} {
		if exists, _ := afero.Exists(base, path); exists {
			t.Errorf("dry run wrote %s to the base filesystem", path)
		}
		if exists, _ := afero.Exists(fs, path); !exists {
			t.Errorf("dry run did not produce %s in the overlay", path)
		}
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Arrival", want: "Arrival"},
		{in: "Either/Or", want: "Either-Or"},
		{in: "C:\\Path", want: "C--Path"},
		{in: "Bell\x07Tab\tEnd", want: "BellTabEnd"},
		{in: "  padded  ", want: "padded"},
		{in: "", want: "Unnamed Level"},
		{in: "\x01\x02", want: "Unnamed Level"},
		{in: "..", want: "Unnamed Level"},
		{in: "Café", want: "Café"},
	}

	for _, tt := range tests {
		if got := scenario.Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitUsesSameNumberedColorTable(t *testing.T) {
	fs := afero.NewMemMapFs()

	clut := make([]byte, 6+256*6)
	binary.BigEndian.PutUint16(clut, 2)
	binary.BigEndian.PutUint16(clut[12:], 0xffff)

	w := wad.NewWad()
	w.AddChunk(codec.TagRawPICT, []byte{0, 0, 0, 0, 0, 1, 0, 2, 0, 8, 0, 1})
	w.AddChunk(codec.TagCLUT, clut)

	f := wad.New(fs, nil)
	f.SetWad(140, w)
	if err := f.Save(archivePath); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	summary := split(t, fs, "/tree")
	if summary.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", summary.Skipped)
	}
	assertFile(t, fs, "/tree/Resources/PICT/00140.bmp")
	assertFile(t, fs, "/tree/Resources/CLUT/00140.act")
}

func TestMergeSkipsResourcesInLevelSlots(t *testing.T) {
	fs := tree(t, map[string][]byte{
		"/src/00 Arrival/Arrival.sceA":        singleSlot(t, level(t, "Arrival", nil), wad.DataVersionMarathonTwo),
		"/src/01 Rise/Rise.sceA":              singleSlot(t, level(t, "Rise", nil), wad.DataVersionMarathonTwo),
		"/src/Resources/Other/vers/00001.bin": []byte("in a level slot"),
		"/src/Resources/Other/vers/00128.bin": []byte("free slot"),
	})

	summary, err := scenario.NewMerger(fs, nil, options()).Merge("/src", "/out.sceA")
	if err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}
	want := scenario.Summary{Levels: 2, Resources: 1, Skipped: 1}
	if *summary != want {
		t.Errorf("Summary = %+v, want %+v", *summary, want)
	}

	archive := unimap.New(fs, nil)
	if err := archive.Open("/out.sceA"); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer archive.Close()

	rise, err := archive.Wad(1)
	if err != nil {
		t.Fatalf("Wad(1) failed: %v", err)
	}
	if rise.HasChunk(tag.New("vers")) {
		t.Errorf("level 1 has tags %v, want no vers chunk", rise.Tags())
	}
	ids, err := archive.ResourceIdentifiers()
	if err != nil {
		t.Fatalf("ResourceIdentifiers() failed: %v", err)
	}
	if want := []rsrc.ID{{Type: tag.New("vers"), ID: 128}}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ResourceIdentifiers() = %v, want %v", ids, want)
	}
}

func TestSplitTypesSharingAFolder(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := wad.New(fs, nil)
	f.SetWad(0, level(t, "Only", nil))

	texts := wad.NewWad()
	texts.AddChunk(codec.TagTEXT, []byte("upper"))
	texts.AddChunk(codec.TagText, []byte("lower"))
	f.SetWad(140, texts)
	if err := f.Save(archivePath); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	summary := split(t, fs, "/out")
	if want := (scenario.Summary{Levels: 1, Resources: 2, Skipped: 1}); *summary != want {
		t.Errorf("split Summary = %+v, want %+v", *summary, want)
	}

	// the folder's own type keeps the converted file
	if got := string(assertFile(t, fs, "/out/Resources/TEXT/00140.txt")); got != "lower" {
		t.Errorf("TEXT/00140.txt = %q, want lower", got)
	}
	if got := string(assertFile(t, fs, "/out/Resources/Other/TEXT/00140.bin")); got != "upper" {
		t.Errorf("Other/TEXT/00140.bin = %q, want upper", got)
	}

	merged, err := scenario.NewMerger(fs, nil, options()).Merge("/out", "/merged.sceA")
	if err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}
	if want := (scenario.Summary{Levels: 1, Resources: 2}); *merged != want {
		t.Errorf("merge Summary = %+v, want %+v", *merged, want)
	}

	archive := unimap.New(fs, nil)
	if err := archive.Open("/merged.sceA"); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer archive.Close()

	for id, want := range map[rsrc.ID]string{
		{Type: codec.TagTEXT, ID: 140}: "upper",
		{Type: codec.TagText, ID: 140}: "lower",
	} {
		got, err := archive.Resource(id)
		if err != nil {
			t.Fatalf("Resource(%s) failed: %v", id, err)
		}
		if string(got) != want {
			t.Errorf("Resource(%s) = %q, want %q", id, got, want)
		}
	}
}
