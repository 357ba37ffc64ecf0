package sim

import (
	"container/heap"
	"errors"
	"math"
	"sync"
)

// ErrNoPath is returned when the goal cannot be reached within the search bounds.
var ErrNoPath = errors.New("no path")

// WalkableFunc reports whether the tile at (x, y) can be walked on. Callers
// bounds-check before invoking it.
type WalkableFunc func(x, y int) bool

// Pathfinder runs bounded A* over a tile map. It is safe for concurrent use:
// search buffers are pooled per call.
type Pathfinder struct {
	walkable      WalkableFunc
	width         int
	height        int
	maxDist       int
	maxExpansions int
	diagonals     bool
	bufs          sync.Pool
}

// PathfinderOption tunes a Pathfinder.
type PathfinderOption func(*Pathfinder)

// WithMaxExpansions caps the number of nodes a single search may expand.
func WithMaxExpansions(n int) PathfinderOption {
	return func(p *Pathfinder) { p.maxExpansions = n }
}

// WithoutDiagonals restricts movement to the four cardinal directions.
func WithoutDiagonals() PathfinderOption {
	return func(p *Pathfinder) { p.diagonals = false }
}

// NewPathfinder builds a pathfinder over a width × height tile map. Searches
// never leave the square of side 2*maxDist+1 centred on their start tile.
func NewPathfinder(walkable WalkableFunc, width, height, maxDist int, opts ...PathfinderOption) *Pathfinder {
	p := &Pathfinder{
		walkable:  walkable,
		width:     width,
		height:    height,
		maxDist:   maxDist,
		diagonals: true,
	}
	for _, o := range opts {
		o(p)
	}
	p.bufs.New = func() any {
		return &searchBuf{
			best:   make(map[int]int32),
			closed: make(map[int]struct{}),
		}
	}
	return p
}

// Walkable applies the bounds check and then the walkability predicate.
func (p *Pathfinder) Walkable(x, y int) bool {
	if x < 0 || y < 0 || x >= p.width || y >= p.height {
		return false
	}
	return p.walkable(x, y)
}

// --- A* ---

type pathNode struct {
	x, y   int
	g, h   float64
	parent int32
}

type searchBuf struct {
	nodes  []pathNode
	open   openList
	best   map[int]int32 // tile key -> node index
	closed map[int]struct{}
}

func (b *searchBuf) reset() {
	b.nodes = b.nodes[:0]
	b.open.items = b.open.items[:0]
	b.open.nodes = nil
	clear(b.best)
	clear(b.closed)
}

type openList struct {
	nodes *[]pathNode
	items []int32
}

func (ol *openList) Len() int { return len(ol.items) }
func (ol *openList) Less(i, j int) bool {
	a, b := &(*ol.nodes)[ol.items[i]], &(*ol.nodes)[ol.items[j]]
	return a.g+a.h < b.g+b.h
}
func (ol *openList) Swap(i, j int) { ol.items[i], ol.items[j] = ol.items[j], ol.items[i] }
func (ol *openList) Push(x any)    { ol.items = append(ol.items, x.(int32)) }
func (ol *openList) Pop() any {
	n := ol.items[len(ol.items)-1]
	ol.items = ol.items[:len(ol.items)-1]
	return n
}

var dirs = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

func (p *Pathfinder) heuristic(ax, ay, bx, by int) float64 {
	dx := math.Abs(float64(ax - bx))
	dy := math.Abs(float64(ay - by))
	if !p.diagonals {
		return dx + dy
	}
	return dx + dy + (math.Sqrt2-2)*math.Min(dx, dy)
}

// Find returns the waypoints from tile (sx, sy) to tile (gx, gy), excluding
// the start tile. Waypoints sit at tile centres. A start tile that is itself
// blocked is tolerated so agents nudged onto an edge can still walk off it.
// Start equal to goal yields an empty path.
func (p *Pathfinder) Find(sx, sy, gx, gy int) ([]Vec, error) {
	if !p.Walkable(gx, gy) {
		return nil, ErrNoPath
	}
	if sx < 0 || sy < 0 || sx >= p.width || sy >= p.height {
		return nil, ErrNoPath
	}
	if sx == gx && sy == gy {
		return []Vec{}, nil
	}
	if chebyshev(sx, sy, gx, gy) > p.maxDist {
		return nil, ErrNoPath
	}

	b := p.bufs.Get().(*searchBuf)
	defer func() {
		b.reset()
		p.bufs.Put(b)
	}()
	b.open.nodes = &b.nodes

	key := func(x, y int) int { return y*p.width + x }
	ndirs := 4
	if p.diagonals {
		ndirs = 8
	}

	b.nodes = append(b.nodes, pathNode{x: sx, y: sy, h: p.heuristic(sx, sy, gx, gy), parent: -1})
	b.best[key(sx, sy)] = 0
	heap.Push(&b.open, int32(0))

	expanded := 0
	for b.open.Len() > 0 {
		ci := heap.Pop(&b.open).(int32)
		cur := b.nodes[ci]
		if cur.x == gx && cur.y == gy {
			return buildPath(b.nodes, ci), nil
		}
		k := key(cur.x, cur.y)
		if _, done := b.closed[k]; done {
			continue
		}
		b.closed[k] = struct{}{}

		expanded++
		if p.maxExpansions > 0 && expanded > p.maxExpansions {
			return nil, ErrNoPath
		}

		for _, d := range dirs[:ndirs] {
			nx, ny := cur.x+d[0], cur.y+d[1]
			if !p.Walkable(nx, ny) || chebyshev(sx, sy, nx, ny) > p.maxDist {
				continue
			}
			cost := 1.0
			if d[0] != 0 && d[1] != 0 {
				// Prevent diagonal corner-cutting through blocked tiles.
				if !p.Walkable(cur.x+d[0], cur.y) || !p.Walkable(cur.x, cur.y+d[1]) {
					continue
				}
				cost = math.Sqrt2
			}
			nk := key(nx, ny)
			if _, done := b.closed[nk]; done {
				continue
			}
			g := cur.g + cost
			if prev, ok := b.best[nk]; ok && g >= b.nodes[prev].g {
				continue
			}
			b.nodes = append(b.nodes, pathNode{x: nx, y: ny, g: g, h: p.heuristic(nx, ny, gx, gy), parent: ci})
			ni := int32(len(b.nodes) - 1)
			b.best[nk] = ni
			heap.Push(&b.open, ni)
		}
	}
	return nil, ErrNoPath
}

func buildPath(nodes []pathNode, end int32) []Vec {
	var path []Vec
	for i := end; nodes[i].parent >= 0; i = nodes[i].parent {
		path = append(path, TileCenter(nodes[i].x, nodes[i].y))
	}
	// Reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// TileCenter returns the world position at the centre of tile (x, y).
func TileCenter(x, y int) Vec {
	return Vec{X: float64(x) + 0.5, Y: float64(y) + 0.5}
}

func chebyshev(ax, ay, bx, by int) int {
	dx := ax - bx
	if dx < 0 {
		dx = -dx
	}
	dy := ay - by
	if dy < 0 {
		dy = -dy
	}
	return max(dx, dy)
}
