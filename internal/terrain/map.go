// Package terrain holds the tile map agents walk on and the island generator
// that produces it.
package terrain

import (
	"errors"
	"fmt"
	"strings"
)

// Tile is the kind of ground at one map position.
type Tile uint8

const (
	Water Tile = iota
	Grass
	Sand
	Forest
	Cliff
)

func (t Tile) String() string {
	switch t {
	case Water:
		return "water"
	case Grass:
		return "grass"
	case Sand:
		return "sand"
	case Forest:
		return "forest"
	case Cliff:
		return "cliff"
	default:
		return "unknown"
	}
}

// Walkable reports whether agents may stand on t.
func (t Tile) Walkable() bool {
	return t != Water && t != Cliff
}

// ErrBadSize is returned for maps without area or with ragged rows.
var ErrBadSize = errors.New("bad map size")

// Map is a rectangular tile map, stored row-major.
type Map struct {
	width, height int
	tiles         []Tile
	heights       []float64 // altitude in [-1, 1]; zero for hand-built maps
}

// New creates a width×height map filled with fill.
func New(width, height int, fill Tile) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%dx%d: %w", width, height, ErrBadSize)
	}
	m := &Map{
		width:   width,
		height:  height,
		tiles:   make([]Tile, width*height),
		heights: make([]float64, width*height),
	}
	if fill != Water {
		for i := range m.tiles {
			m.tiles[i] = fill
		}
	}
	return m, nil
}

// NewOpen creates an all-grass map.
func NewOpen(width, height int) (*Map, error) {
	return New(width, height, Grass)
}

// FromRows builds a map from text, one string per row: '.' grass, ',' sand,
// 'T' forest, '~' water, '#' cliff.
func FromRows(rows ...string) (*Map, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows: %w", ErrBadSize)
	}
	m, err := New(len(rows[0]), len(rows), Grass)
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		if len(row) != m.width {
			return nil, fmt.Errorf("row %d has %d tiles, want %d: %w", y, len(row), m.width, ErrBadSize)
		}
		for x := 0; x < len(row); x++ {
			t, ok := tileRunes[row[x]]
			if !ok {
				return nil, fmt.Errorf("row %d col %d: unknown tile %q", y, x, row[x])
			}
			m.tiles[y*m.width+x] = t
		}
	}
	return m, nil
}

var tileRunes = map[byte]Tile{
	'.': Grass,
	',': Sand,
	'T': Forest,
	'~': Water,
	'#': Cliff,
}

// Bounds returns the map size in tiles.
func (m *Map) Bounds() (int, int) { return m.width, m.height }

// InBounds reports whether (x, y) lies on the map.
func (m *Map) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.width && y < m.height
}

// At returns the tile at (x, y). Off-map positions read as Water.
func (m *Map) At(x, y int) Tile {
	if !m.InBounds(x, y) {
		return Water
	}
	return m.tiles[y*m.width+x]
}

// Walkable reports whether (x, y) is on the map and passable.
func (m *Map) Walkable(x, y int) bool {
	return m.InBounds(x, y) && m.tiles[y*m.width+x].Walkable()
}

// Set changes the tile at (x, y). Off-map positions are ignored. Set must not
// race with a running tick.
func (m *Map) Set(x, y int, t Tile) {
	if m.InBounds(x, y) {
		m.tiles[y*m.width+x] = t
	}
}

// Fill sets every tile in the w×h rectangle at (x, y).
func (m *Map) Fill(x, y, w, h int, t Tile) {
	for ty := y; ty < y+h; ty++ {
		for tx := x; tx < x+w; tx++ {
			m.Set(tx, ty, t)
		}
	}
}

// Height returns the generated altitude at (x, y).
func (m *Map) Height(x, y int) float64 {
	if !m.InBounds(x, y) {
		return -1
	}
	return m.heights[y*m.width+x]
}

// Counts returns how many tiles of each kind the map holds.
func (m *Map) Counts() map[Tile]int {
	counts := make(map[Tile]int)
	for _, t := range m.tiles {
		counts[t]++
	}
	return counts
}

// WalkableShare is the fraction of tiles agents can stand on.
func (m *Map) WalkableShare() float64 {
	n := 0
	for _, t := range m.tiles {
		if t.Walkable() {
			n++
		}
	}
	return float64(n) / float64(len(m.tiles))
}

// String renders the map in the FromRows alphabet.
func (m *Map) String() string {
	glyph := map[Tile]byte{}
	for r, t := range tileRunes {
		glyph[t] = r
	}
	var sb strings.Builder
	sb.Grow((m.width + 1) * m.height)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			sb.WriteByte(glyph[m.tiles[y*m.width+x]])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
