package sim

import (
	"sync"
	"testing"
)

func TestGrid_Dims(t *testing.T) {
	g := NewGrid(100, 48, 48)
	cols, rows := g.Dims()
	if cols != 3 || rows != 1 {
		t.Fatalf("expected 3x1 cells, got %dx%d", cols, rows)
	}
}

func TestGrid_CellOfClamps(t *testing.T) {
	g := NewGrid(96, 96, 48)
	if c := g.CellOf(V(50, 10)); c != (Cell{1, 0}) {
		t.Fatalf("expected (1,0) got %v", c)
	}
	if c := g.CellOf(V(-3, 500)); c != (Cell{0, 1}) {
		t.Fatalf("off-grid position should clamp to (0,1), got %v", c)
	}
}

func TestGrid_InsertRejectsDuplicates(t *testing.T) {
	g := NewGrid(96, 96, 48)
	h := Handle{Index: 1, Gen: 1}
	if !g.Insert(h, Cell{0, 0}) {
		t.Fatal("first insert should succeed")
	}
	if g.Insert(h, Cell{0, 0}) {
		t.Fatal("duplicate insert should be rejected")
	}
	if g.Count(Cell{0, 0}) != 1 {
		t.Fatalf("expected 1 member, got %d", g.Count(Cell{0, 0}))
	}
	if g.Insert(h, Cell{5, 5}) {
		t.Fatal("insert into a missing cell should fail")
	}
}

func TestGrid_RemoveMissingIsNotAnError(t *testing.T) {
	g := NewGrid(96, 96, 48)
	if g.Remove(Handle{Index: 3, Gen: 1}, Cell{1, 1}) {
		t.Fatal("removing an absent handle should report false")
	}
}

func TestGrid_RemoveKeepsOrder(t *testing.T) {
	g := NewGrid(48, 48, 48)
	for i := uint32(1); i <= 4; i++ {
		g.Insert(Handle{Index: i, Gen: 1}, Cell{})
	}
	g.Remove(Handle{Index: 2, Gen: 1}, Cell{})
	got := g.AppendMembers(Cell{}, nil)
	want := []uint32{1, 3, 4}
	for i, h := range got {
		if h.Index != want[i] {
			t.Fatalf("member order changed: %v", got)
		}
	}
}

func TestGrid_Move(t *testing.T) {
	g := NewGrid(96, 96, 48)
	h := Handle{Index: 0, Gen: 1}
	g.Insert(h, Cell{0, 0})
	if !g.Move(h, Cell{0, 0}, Cell{1, 1}) {
		t.Fatal("move should find the handle in its old cell")
	}
	if g.Contains(h, Cell{0, 0}) || !g.Contains(h, Cell{1, 1}) {
		t.Fatal("handle should live only in the new cell")
	}
	// Stale source cell: still lands in the destination exactly once.
	if g.Move(h, Cell{0, 1}, Cell{1, 1}) {
		t.Fatal("move from the wrong cell should report false")
	}
	if g.Len() != 1 {
		t.Fatalf("expected exactly one entry, got %d", g.Len())
	}
}

func TestGrid_NeighborsClippedCentreFirst(t *testing.T) {
	g := NewGrid(144, 144, 48)
	corner := g.Neighbors(Cell{0, 0}, nil)
	if len(corner) != 4 {
		t.Fatalf("corner should have 4 cells in window, got %d", len(corner))
	}
	if corner[0] != (Cell{0, 0}) {
		t.Fatalf("centre cell should come first, got %v", corner[0])
	}
	if mid := g.Neighbors(Cell{1, 1}, nil); len(mid) != 9 {
		t.Fatalf("interior cell should have 9 cells in window, got %d", len(mid))
	}
}

func TestGrid_CountNearExcludesSelf(t *testing.T) {
	g := NewGrid(144, 144, 48)
	self := Handle{Index: 0, Gen: 1}
	g.Insert(self, Cell{1, 1})
	g.Insert(Handle{Index: 1, Gen: 1}, Cell{0, 0})
	g.Insert(Handle{Index: 2, Gen: 1}, Cell{2, 2})
	if n := g.CountNear(Cell{1, 1}, self); n != 2 {
		t.Fatalf("expected 2 nearby, got %d", n)
	}
	if n := g.CountNear(Cell{0, 0}, Handle{}); n != 2 {
		t.Fatalf("window at corner should see (0,0) and (1,1), got %d", n)
	}
}

func TestGrid_ConcurrentMoves(t *testing.T) {
	g := NewGrid(480, 480, 48)
	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		h := Handle{Index: uint32(i), Gen: 1}
		g.Insert(h, Cell{0, 0})
		wg.Add(1)
		go func() {
			defer wg.Done()
			from := Cell{0, 0}
			for step := 1; step < 10; step++ {
				to := Cell{X: step, Y: int(h.Index) % 10}
				g.Move(h, from, to)
				from = to
			}
		}()
	}
	wg.Wait()
	if g.Len() != n {
		t.Fatalf("expected %d entries after concurrent moves, got %d", n, g.Len())
	}
	for i := 0; i < n; i++ {
		if !g.Contains(Handle{Index: uint32(i), Gen: 1}, Cell{X: 9, Y: i % 10}) {
			t.Fatalf("handle %d not in its final cell", i)
		}
	}
}
