// Package scenario splits a scenario archive into a tree of editable
// files and merges such a tree back into an archive.
//
// A split tree looks like this:
//
//	00 Arrival/Arrival.sceA           level chunks, single slot Wadfile
//	00 Arrival/Arrival.phyA           physics model, if the level has one
//	00 Arrival/Arrival.ShPa           shapes patch, if the level has one
//	Resources/PICT/01000.bmp          resources, one directory per type
//	Resources/Other/STR#/00128.bin    types without a converter
//	Level Select Names.txt            "<slot> <name>" lines
package scenario

import (
	"bufio"
	"bytes"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/spf13/afero"

	"github.com/ossyrian/wadsplit/internal/codec"
	"github.com/ossyrian/wadsplit/internal/tag"
	wstypes "github.com/ossyrian/wadsplit/internal/types"
	"github.com/ossyrian/wadsplit/internal/wad"
)

const (
	ResourcesDir         = "Resources"
	LevelSelectNamesFile = "Level Select Names.txt"

	ExtLevel   = ".sceA"
	ExtPhysics = ".phyA"
	ExtShapes  = ".ShPa"

	// MaxShapesSize is the largest shapes patch the engine accepts.
	MaxShapesSize = 384 * 1024

	unnamedLevel = "Unnamed Level"
)

// Options configures Splitter and Merger.
type Options struct {
	// PhysicsTags are the chunks split moves to the .phyA file. Merge
	// accepts a physics file only if it has all of them.
	PhysicsTags []tag.Tag
	// ShapesTag is the chunk split moves to the .ShPa file.
	ShapesTag tag.Tag
	// Workers bounds resource conversion concurrency.
	Workers int
	// MinDataVersion is the oldest archive data version accepted.
	MinDataVersion int16
	// Registry converts resources. Nil means codec.Default.
	Registry *codec.Registry
}

// DefaultOptions returns the Marathon 2 / Infinity layout.
func DefaultOptions() Options {
	return Options{
		PhysicsTags:    wad.PhysicsTags(),
		ShapesTag:      wad.TagShapes,
		Workers:        runtime.NumCPU(),
		MinDataVersion: wad.DataVersionMarathonTwo,
	}
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return 1
	}
	return o.Workers
}

// Summary counts what a split or merge did.
type Summary struct {
	Levels    int
	Resources int
	Skipped   int
}

// DryRun layers an in-memory filesystem over a read-only view of base, so
// a split or merge can run to completion without touching base.
func DryRun(base afero.Fs) afero.Fs {
	return afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(base), afero.NewMemMapFs())
}

// Sanitize turns a level name into something usable as a file name.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':':
			b.WriteRune('-')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" && s != "." && s != ".." {
		return s
	}
	return unnamedLevel
}

// parseIndex reads the slot or resource number a file or directory name
// starts with, and returns the rest of the name with leading spaces
// removed.
func parseIndex(name string) (int16, string, bool) {
	end := 0
	if strings.HasPrefix(name, "-") {
		end = 1
	}
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(name[:end], 10, 16)
	if err != nil {
		return 0, "", false
	}
	return int16(n), strings.TrimLeft(name[end:], " "), true
}

// writeLevelSelectNames writes names as "<slot> <name>" lines, by slot.
func writeLevelSelectNames(fsys afero.Fs, path string, names map[int16]string) error {
	if len(names) == 0 {
		return nil
	}

	indexes := make([]int, 0, len(names))
	for index := range names {
		indexes = append(indexes, int(index))
	}
	sort.Ints(indexes)

	var buf bytes.Buffer
	for _, index := range indexes {
		fmt.Fprintf(&buf, "%d %s\n", index, names[int16(index)])
	}
	if err := afero.WriteFile(fsys, path, buf.Bytes(), 0o644); err != nil {
		return wstypes.IOError("write level select names", err)
	}
	return nil
}

// readLevelSelectNames reads a file written by writeLevelSelectNames. Any
// of LF, CR or CRLF ends a line. A missing file yields no names.
func readLevelSelectNames(fsys afero.Fs, path string) (map[int16]string, error) {
	names := make(map[int16]string)

	exists, err := afero.Exists(fsys, path)
	if err != nil || !exists {
		return names, nil
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, wstypes.IOError("read level select names", err)
	}

	s := bufio.NewScanner(bytes.NewReader(data))
	s.Split(scanAnyLines)
	for s.Scan() {
		line := strings.ReplaceAll(s.Text(), "\x00", "")
		index, name, ok := parseIndex(line)
		if !ok {
			continue
		}
		names[index] = name
	}
	if err := s.Err(); err != nil {
		return nil, wstypes.IOError("read level select names", err)
	}
	return names, nil
}

// scanAnyLines is bufio.ScanLines for files written on any platform.
func scanAnyLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if !atEOF {
				// a LF may follow in the next read
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
