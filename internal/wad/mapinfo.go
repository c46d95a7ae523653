package wad

import (
	"bytes"
	"fmt"

	"github.com/ossyrian/wadsplit/internal/macroman"
)

// MapInfoSize is the length of a 'Minf' chunk.
const MapInfoSize = 88

// MapInfo is the level description stored in a Wad's 'Minf' chunk.
// Only the fields the directory caches are interpreted.
type MapInfo struct {
	EnvironmentCode  int16
	PhysicsModel     int16
	SongIndex        int16
	MissionFlags     int16
	EnvironmentFlags int16
	LevelName        string
	EntryPointFlags  uint32
}

type binMapInfo struct {
	EnvironmentCode  int16
	PhysicsModel     int16
	SongIndex        int16
	MissionFlags     int16
	EnvironmentFlags int16
	Unused           [4]int16
	LevelName        [LevelNameLength]byte
	EntryPointFlags  uint32
}

// ParseMapInfo decodes a 'Minf' chunk.
func ParseMapInfo(data []byte) (*MapInfo, error) {
	if len(data) < MapInfoSize {
		return nil, fmt.Errorf("map info too short: %d bytes, want %d", len(data), MapInfoSize)
	}

	var b binMapInfo
	if err := readRecord(bytes.NewReader(data), MapInfoSize, &b); err != nil {
		return nil, fmt.Errorf("failed to read map info: %w", err)
	}

	return &MapInfo{
		EnvironmentCode:  b.EnvironmentCode,
		PhysicsModel:     b.PhysicsModel,
		SongIndex:        b.SongIndex,
		MissionFlags:     b.MissionFlags,
		EnvironmentFlags: b.EnvironmentFlags,
		LevelName:        macroman.DecodeCString(b.LevelName[:]),
		EntryPointFlags:  b.EntryPointFlags,
	}, nil
}

// MarshalBinary encodes m as a 'Minf' chunk.
func (m *MapInfo) MarshalBinary() ([]byte, error) {
	b := binMapInfo{
		EnvironmentCode:  m.EnvironmentCode,
		PhysicsModel:     m.PhysicsModel,
		SongIndex:        m.SongIndex,
		MissionFlags:     m.MissionFlags,
		EnvironmentFlags: m.EnvironmentFlags,
		EntryPointFlags:  m.EntryPointFlags,
	}
	copy(b.LevelName[:], macroman.EncodeFixed(m.LevelName, LevelNameLength))
	return marshalRecord(&b), nil
}
