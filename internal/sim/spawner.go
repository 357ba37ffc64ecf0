package sim

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrNoSpawnSite is returned when no walkable edge tile was found.
var ErrNoSpawnSite = errors.New("no walkable spawn site")

// spawnAttempts bounds the random search for a walkable edge tile.
const spawnAttempts = 64

// Edge is a side of the map.
type Edge uint8

const (
	EdgeNorth Edge = iota
	EdgeEast
	EdgeSouth
	EdgeWest
)

func (e Edge) String() string {
	switch e {
	case EdgeNorth:
		return "north"
	case EdgeEast:
		return "east"
	case EdgeSouth:
		return "south"
	case EdgeWest:
		return "west"
	default:
		return "unknown"
	}
}

// Spawner places new agents on walkable tiles along the map edges, so they
// have to cross the map to reach the destination.
type Spawner struct {
	world *World
	rng   *rand.Rand
	inset int // tiles between the map border and the spawn line
}

// NewSpawner creates a spawner for w. seed drives edge and tile choice.
func NewSpawner(w *World, seed int64) *Spawner {
	return &Spawner{
		world: w,
		rng:   rand.New(rand.NewSource(seed)), // #nosec G404 -- simulation placement
		inset: 1,
	}
}

// EdgePosition picks a walkable tile centre on a random edge.
func (s *Spawner) EdgePosition() (Vec, error) {
	width, height := s.world.Bounds()
	for range spawnAttempts {
		edge := Edge(s.rng.Intn(4))
		x, y := s.edgeTile(edge, width, height)
		if s.world.pather.Walkable(x, y) {
			return TileCenter(x, y), nil
		}
	}
	return Vec{}, ErrNoSpawnSite
}

func (s *Spawner) edgeTile(e Edge, width, height int) (int, int) {
	in := s.inset
	switch e {
	case EdgeNorth:
		return s.rng.Intn(width), min(in, height-1)
	case EdgeEast:
		return max(width-1-in, 0), s.rng.Intn(height)
	case EdgeSouth:
		return s.rng.Intn(width), max(height-1-in, 0)
	default:
		return min(in, width-1), s.rng.Intn(height)
	}
}

// SpawnEdge adds one agent on a random edge.
func (s *Spawner) SpawnEdge() (Handle, error) {
	p, err := s.EdgePosition()
	if err != nil {
		return Handle{}, err
	}
	return s.world.Spawn(p)
}

// Replenish tops the population back up to target and returns how many
// agents were added. It stops at the first placement failure.
func (s *Spawner) Replenish(target int) (int, error) {
	added := 0
	for s.world.Len() < target {
		if _, err := s.SpawnEdge(); err != nil {
			return added, fmt.Errorf("replenish to %d: %w", target, err)
		}
		added++
	}
	return added, nil
}
