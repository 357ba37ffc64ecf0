package sim

import (
	"slices"
	"sync"
)

type cacheCell struct {
	mu     sync.Mutex
	routes [][]Vec
}

// PathCache keeps, per spatial cell, a few leader routes that were planned
// from inside that cell. Leaders funnelling through the same region reuse
// them instead of running a full search.
type PathCache struct {
	capacity int
	cols     int
	rows     int
	cells    []cacheCell
}

// NewPathCache creates a cache for a cols × rows spatial grid holding at most
// capacity routes per cell.
func NewPathCache(cols, rows, capacity int) *PathCache {
	return &PathCache{
		capacity: capacity,
		cols:     cols,
		rows:     rows,
		cells:    make([]cacheCell, cols*rows),
	}
}

func (pc *PathCache) cell(c Cell) *cacheCell {
	if c.X < 0 || c.Y < 0 || c.X >= pc.cols || c.Y >= pc.rows {
		return nil
	}
	return &pc.cells[c.Y*pc.cols+c.X]
}

// Add stores a copy of route for cell c. It returns false when the cell is
// already full or route is empty.
func (pc *PathCache) Add(c Cell, route []Vec) bool {
	cc := pc.cell(c)
	if cc == nil || len(route) == 0 {
		return false
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if len(cc.routes) >= pc.capacity {
		return false
	}
	cc.routes = append(cc.routes, slices.Clone(route))
	return true
}

// Reuse walks the routes cached for cell c in stored order. Every route is
// deep-copied and each waypoint checked with walkable; a route with any bad
// waypoint is evicted on the spot. The first valid copy that join accepts is
// returned as join's result. The whole walk runs under the cell's lock.
func (pc *PathCache) Reuse(c Cell, walkable func(Vec) bool, join func(route []Vec) ([]Vec, bool)) (path []Vec, evicted int, ok bool) {
	cc := pc.cell(c)
	if cc == nil {
		return nil, 0, false
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	for i := 0; i < len(cc.routes); i++ {
		route := slices.Clone(cc.routes[i])
		if !routeWalkable(route, walkable) {
			cc.routes = slices.Delete(cc.routes, i, i+1)
			i--
			evicted++
			continue
		}
		if joined, good := join(route); good {
			return joined, evicted, true
		}
	}
	return nil, evicted, false
}

func routeWalkable(route []Vec, walkable func(Vec) bool) bool {
	for _, wp := range route {
		if !walkable(wp) {
			return false
		}
	}
	return true
}

// Routes returns copies of the routes cached for cell c.
func (pc *PathCache) Routes(c Cell) [][]Vec {
	cc := pc.cell(c)
	if cc == nil {
		return nil
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	out := make([][]Vec, len(cc.routes))
	for i, r := range cc.routes {
		out[i] = slices.Clone(r)
	}
	return out
}

// Len returns the number of routes cached for cell c.
func (pc *PathCache) Len(c Cell) int {
	cc := pc.cell(c)
	if cc == nil {
		return 0
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return len(cc.routes)
}

// Total returns the number of routes across every cell.
func (pc *PathCache) Total() int {
	n := 0
	for i := range pc.cells {
		pc.cells[i].mu.Lock()
		n += len(pc.cells[i].routes)
		pc.cells[i].mu.Unlock()
	}
	return n
}

// Clear drops every cached route.
func (pc *PathCache) Clear() {
	for i := range pc.cells {
		pc.cells[i].mu.Lock()
		pc.cells[i].routes = nil
		pc.cells[i].mu.Unlock()
	}
}
