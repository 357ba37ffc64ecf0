package sim

import (
	"math"
	"slices"
	"sync"
)

// Cell addresses one square of a Grid.
type Cell struct {
	X, Y int
}

type gridCell struct {
	mu      sync.RWMutex
	members []Handle
}

// Grid partitions the world into square cells of agent handles. The world
// keeps two of them: every agent in the spatial grid, and only the current
// leaders in the leader index. Every cell carries its own lock, so agents
// stepping in parallel only contend when they touch the same cell.
type Grid struct {
	cellSize int
	cols     int
	rows     int
	cells    []gridCell
}

// NewGrid builds a grid covering worldW × worldH tiles.
func NewGrid(worldW, worldH, cellSize int) *Grid {
	cols := (worldW + cellSize - 1) / cellSize
	rows := (worldH + cellSize - 1) / cellSize
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &Grid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    make([]gridCell, cols*rows),
	}
}

// Dims returns the number of columns and rows.
func (g *Grid) Dims() (int, int) { return g.cols, g.rows }

// CellSize returns the side length of a cell in tiles.
func (g *Grid) CellSize() int { return g.cellSize }

// CellOf returns the cell containing p, clamped to the grid bounds.
func (g *Grid) CellOf(p Vec) Cell {
	cx := int(math.Floor(p.X / float64(g.cellSize)))
	cy := int(math.Floor(p.Y / float64(g.cellSize)))
	return Cell{X: clampInt(cx, 0, g.cols-1), Y: clampInt(cy, 0, g.rows-1)}
}

// InBounds reports whether c addresses a real cell.
func (g *Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.cols && c.Y < g.rows
}

func (g *Grid) cell(c Cell) *gridCell {
	if !g.InBounds(c) {
		return nil
	}
	return &g.cells[c.Y*g.cols+c.X]
}

// Insert adds h to cell c. It returns false when h is already there or c is
// out of bounds; duplicates are never stored.
func (g *Grid) Insert(h Handle, c Cell) bool {
	gc := g.cell(c)
	if gc == nil {
		return false
	}
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if slices.Contains(gc.members, h) {
		return false
	}
	gc.members = append(gc.members, h)
	return true
}

// Remove deletes h from cell c. A missing handle is not an error: an agent
// may already have migrated, so the caller only gets false back.
func (g *Grid) Remove(h Handle, c Cell) bool {
	gc := g.cell(c)
	if gc == nil {
		return false
	}
	gc.mu.Lock()
	defer gc.mu.Unlock()
	i := slices.Index(gc.members, h)
	if i < 0 {
		return false
	}
	// Keep insertion order so runs stay reproducible for a given seed.
	gc.members = slices.Delete(gc.members, i, i+1)
	return true
}

// Move relocates h from one cell to another. The two cells are never locked
// at the same time. It returns false when h was not found in from; h is
// inserted into to regardless.
func (g *Grid) Move(h Handle, from, to Cell) bool {
	if from == to {
		return g.Contains(h, from)
	}
	removed := g.Remove(h, from)
	g.Insert(h, to)
	return removed
}

// Contains reports whether h is stored in cell c.
func (g *Grid) Contains(h Handle, c Cell) bool {
	gc := g.cell(c)
	if gc == nil {
		return false
	}
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	return slices.Contains(gc.members, h)
}

// Count returns the number of handles in cell c.
func (g *Grid) Count(c Cell) int {
	gc := g.cell(c)
	if gc == nil {
		return 0
	}
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	return len(gc.members)
}

// AppendMembers appends a snapshot of cell c's handles to buf.
func (g *Grid) AppendMembers(c Cell, buf []Handle) []Handle {
	gc := g.cell(c)
	if gc == nil {
		return buf
	}
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	return append(buf, gc.members...)
}

// neighborOffsets is the 3×3 window, centre first.
var neighborOffsets = [9][2]int{
	{0, 0},
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// Neighbors appends the 3×3 window around c, clipped to the grid, to buf.
// The centre cell always comes first.
func (g *Grid) Neighbors(c Cell, buf []Cell) []Cell {
	for _, d := range neighborOffsets {
		n := Cell{X: c.X + d[0], Y: c.Y + d[1]}
		if g.InBounds(n) {
			buf = append(buf, n)
		}
	}
	return buf
}

// CountNear counts the handles in the 3×3 window around c, not counting
// exclude.
func (g *Grid) CountNear(c Cell, exclude Handle) int {
	n := 0
	for _, d := range neighborOffsets {
		gc := g.cell(Cell{X: c.X + d[0], Y: c.Y + d[1]})
		if gc == nil {
			continue
		}
		gc.mu.RLock()
		for _, h := range gc.members {
			if h != exclude {
				n++
			}
		}
		gc.mu.RUnlock()
	}
	return n
}

// Len returns the number of handles across every cell.
func (g *Grid) Len() int {
	n := 0
	for i := range g.cells {
		g.cells[i].mu.RLock()
		n += len(g.cells[i].members)
		g.cells[i].mu.RUnlock()
	}
	return n
}

// Clear empties every cell, keeping allocated capacity.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i].mu.Lock()
		g.cells[i].members = g.cells[i].members[:0]
		g.cells[i].mu.Unlock()
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
