package terrain

import (
	"errors"
	"testing"
)

func TestTile_Walkable(t *testing.T) {
	for _, tile := range []Tile{Grass, Sand, Forest} {
		if !tile.Walkable() {
			t.Fatalf("%s should be walkable", tile)
		}
	}
	for _, tile := range []Tile{Water, Cliff} {
		if tile.Walkable() {
			t.Fatalf("%s should be blocked", tile)
		}
	}
}

func TestNewOpen_AllWalkable(t *testing.T) {
	m, err := NewOpen(8, 4)
	if err != nil {
		t.Fatal(err)
	}
	w, h := m.Bounds()
	if w != 8 || h != 4 {
		t.Fatalf("expected 8x4 got %dx%d", w, h)
	}
	if m.WalkableShare() != 1 {
		t.Fatalf("open map should be fully walkable, got %.2f", m.WalkableShare())
	}
}

func TestNew_RejectsEmpty(t *testing.T) {
	if _, err := New(0, 5, Grass); !errors.Is(err, ErrBadSize) {
		t.Fatalf("expected ErrBadSize, got %v", err)
	}
}

func TestFromRows(t *testing.T) {
	m, err := FromRows(
		"..#",
		"~,T",
	)
	if err != nil {
		t.Fatal(err)
	}
	if m.At(2, 0) != Cliff || m.At(0, 1) != Water || m.At(1, 1) != Sand || m.At(2, 1) != Forest {
		t.Fatalf("tiles parsed wrong:\n%s", m)
	}
	if m.Walkable(2, 0) {
		t.Fatal("cliff should not be walkable")
	}
	if !m.Walkable(2, 1) {
		t.Fatal("forest should be walkable")
	}
	if got := m.String(); got != "..#\n~,T\n" {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestFromRows_Ragged(t *testing.T) {
	if _, err := FromRows("...", ".."); !errors.Is(err, ErrBadSize) {
		t.Fatalf("expected ErrBadSize for ragged rows, got %v", err)
	}
	if _, err := FromRows("..x"); err == nil {
		t.Fatal("unknown glyph should fail")
	}
}

func TestMap_OffMapIsBlocked(t *testing.T) {
	m, _ := NewOpen(4, 4)
	if m.Walkable(-1, 0) || m.Walkable(0, 4) || m.Walkable(4, 0) {
		t.Fatal("off-map tiles must not be walkable")
	}
	m.Set(10, 10, Cliff) // ignored
	if m.Counts()[Cliff] != 0 {
		t.Fatal("off-map Set should be ignored")
	}
}

func TestMap_Fill(t *testing.T) {
	m, _ := NewOpen(10, 10)
	m.Fill(2, 3, 4, 2, Cliff)
	if got := m.Counts()[Cliff]; got != 8 {
		t.Fatalf("expected 8 cliff tiles, got %d", got)
	}
	if m.Walkable(2, 3) || m.Walkable(5, 4) {
		t.Fatal("filled tiles should be blocked")
	}
	if !m.Walkable(6, 3) || !m.Walkable(2, 5) {
		t.Fatal("tiles outside the fill should stay open")
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.Width, cfg.Height = 160, 120
	cfg.Seed = 42
	a, err := Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Fatal("same seed should generate the same map")
	}
}

func TestGenerate_CentreAndBorderWalkable(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.Width, cfg.Height = 200, 140
	cfg.Seed = 7
	m, err := Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Walkable(cfg.Width/2, cfg.Height/2) {
		t.Fatalf("centre should be walkable, got %s", m.At(cfg.Width/2, cfg.Height/2))
	}
	for y := 0; y < cfg.Height; y++ {
		if !m.Walkable(0, y) || !m.Walkable(cfg.Width-1, y) {
			t.Fatalf("border row %d should be raised land", y)
		}
	}
	if h := m.Height(cfg.Width/2, cfg.Height/2); h <= 0 {
		t.Fatalf("centre altitude should be positive, got %.2f", h)
	}
}
