package sim

import (
	"errors"
	"testing"

	"github.com/Garsondee/boid-flock/internal/terrain"
)

func TestSpawner_EdgePositionsOnSpawnLine(t *testing.T) {
	ts := newTestSim(t, WithMapSize(80, 60))
	for i := 0; i < 200; i++ {
		p, err := ts.Spawner.EdgePosition()
		if err != nil {
			t.Fatal(err)
		}
		x, y := p.Tile()
		if x != 1 && y != 1 && x != 78 && y != 58 {
			t.Fatalf("spawn %v is not on an edge line", p)
		}
		if p != TileCenter(x, y) {
			t.Fatalf("spawn %v should be a tile centre", p)
		}
	}
}

func TestSpawner_SkipsBlockedEdges(t *testing.T) {
	ts := newTestSim(t, WithMapSize(80, 60), WithBlocked(0, 0, 80, 30))
	for i := 0; i < 100; i++ {
		p, err := ts.Spawner.EdgePosition()
		if err != nil {
			t.Fatal(err)
		}
		if x, y := p.Tile(); !ts.Terrain.Walkable(x, y) {
			t.Fatalf("spawn on blocked tile (%d,%d)", x, y)
		}
	}
}

func TestSpawner_NoSite(t *testing.T) {
	m, _ := terrain.New(30, 30, terrain.Water)
	ts := newTestSim(t, WithTerrain(m))
	if _, err := ts.Spawner.EdgePosition(); !errors.Is(err, ErrNoSpawnSite) {
		t.Fatalf("expected ErrNoSpawnSite, got %v", err)
	}
	if _, err := ts.Spawner.Replenish(5); !errors.Is(err, ErrNoSpawnSite) {
		t.Fatalf("replenish should surface the placement error, got %v", err)
	}
}

func TestSpawner_Replenish(t *testing.T) {
	ts := newTestSim(t, WithMapSize(100, 100), WithAgent(10, 10))
	added, err := ts.Spawner.Replenish(12)
	if err != nil {
		t.Fatal(err)
	}
	if added != 11 || ts.World.Len() != 12 {
		t.Fatalf("expected 11 added for 12 alive, got %d added %d alive", added, ts.World.Len())
	}
	if added, _ := ts.Spawner.Replenish(5); added != 0 {
		t.Fatal("replenish below the current population should add nothing")
	}
}

func TestHarness_PopulationIsTopped(t *testing.T) {
	ts := newTestSim(t, WithMapSize(120, 120), WithPopulation(20))
	ts.RunTicks(1)
	if ts.World.Stats().Spawned != 20 {
		t.Fatalf("expected 20 spawns before the first tick, got %d", ts.World.Stats().Spawned)
	}
}

func TestEdge_String(t *testing.T) {
	if EdgeWest.String() != "west" || Edge(9).String() != "unknown" {
		t.Fatal("edge names")
	}
}
