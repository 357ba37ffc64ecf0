package viewer

import (
	"math"
	"strings"
	"testing"

	"github.com/Garsondee/boid-flock/internal/sim"
	"github.com/Garsondee/boid-flock/internal/terrain"
)

func newTestGame(t *testing.T, opts Options) *Game {
	t.Helper()
	m, err := terrain.NewOpen(160, 90)
	if err != nil {
		t.Fatal(err)
	}
	w, err := sim.NewWorld(m, sim.DefaultConfig(), sim.WithEventLog(sim.NewEventLog(0)), sim.WithSeed(3))
	if err != nil {
		t.Fatal(err)
	}
	if opts.Width == 0 {
		opts.Width, opts.Height = 1000, 600
	}
	g, err := New(w, m, opts)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestStepSpeed_Clamps(t *testing.T) {
	if got := stepSpeed(0, -1); got != 0 {
		t.Fatalf("slowest speed should stay put, got %d", got)
	}
	last := len(speedSteps) - 1
	if got := stepSpeed(last, 1); got != last {
		t.Fatalf("fastest speed should stay put, got %d", got)
	}
	if got := stepSpeed(defaultSpeed, 1); speedSteps[got] != 2 {
		t.Fatalf("expected x2 after one step up, got x%v", speedSteps[got])
	}
}

func TestClampZoom(t *testing.T) {
	if clampZoom(0.1) != minZoom || clampZoom(10) != maxZoom || clampZoom(1.5) != 1.5 {
		t.Fatal("zoom clamp")
	}
}

func TestEventPanel_RingBuffer(t *testing.T) {
	p := NewEventPanel()
	for i := range panelMaxEntries + 5 {
		p.Add(sim.Event{Tick: i, Category: sim.CatRole, Key: "promote"})
	}
	got := p.Recent()
	if len(got) != panelMaxEntries {
		t.Fatalf("expected %d entries, got %d", panelMaxEntries, len(got))
	}
	if got[0].Tick != 5 || got[len(got)-1].Tick != panelMaxEntries+4 {
		t.Fatalf("oldest entries should be overwritten, got %d..%d", got[0].Tick, got[len(got)-1].Tick)
	}
	p.Clear()
	if len(p.Recent()) != 0 {
		t.Fatal("clear should empty the panel")
	}
}

func TestEventPanel_PullFiltersCategories(t *testing.T) {
	log := sim.NewEventLog(0)
	log.Add(1, "#0.1", sim.CatLife, "spawn", "", 0)
	log.Add(1, "#0.1", sim.CatRole, "promote", "", 0)
	log.Add(2, "#0.1", sim.CatPath, "fresh", "", 0)
	log.Add(3, "--", sim.CatIndex, "stale_remove", "", 0)

	p := NewEventPanel()
	p.Pull(log, 2)
	got := p.Recent()
	if len(got) != 1 || got[0].Key != "fresh" {
		t.Fatalf("expected only the path event from tick 2, got %+v", got)
	}
}

func TestNew_RejectsTinyWindow(t *testing.T) {
	m, _ := terrain.NewOpen(10, 10)
	w, err := sim.NewWorld(m, sim.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(w, m, Options{Width: panelWidth, Height: 100}); err == nil {
		t.Fatal("a window no wider than the panel should be rejected")
	}
	if _, err := New(nil, m, Options{Width: 800, Height: 600}); err == nil {
		t.Fatal("a nil world should be rejected")
	}
}

func TestGame_SimTickReplenishes(t *testing.T) {
	g := newTestGame(t, Options{Population: 25, Workers: 2})
	for range snapshotEvery {
		if err := g.simTick(); err != nil {
			t.Fatal(err)
		}
	}
	if g.world.TickCount() != snapshotEvery {
		t.Fatalf("expected %d ticks, got %d", snapshotEvery, g.world.TickCount())
	}
	if g.world.Len() == 0 {
		t.Fatal("population should have been topped up")
	}
	if g.reporter.Latest() == nil {
		t.Fatal("a snapshot should be collected every window step")
	}
}

func TestGame_ResetClearsEverything(t *testing.T) {
	g := newTestGame(t, Options{Population: 10})
	for range 30 {
		if err := g.simTick(); err != nil {
			t.Fatal(err)
		}
	}
	g.followRandom()
	if !g.follow.Valid() {
		t.Fatal("expected a follow target")
	}
	g.panel.Add(sim.Event{Category: sim.CatRole})
	g.reset()
	if g.world.Len() != 0 || g.world.TickCount() != 0 || g.world.Events().Len() != 0 {
		t.Fatal("reset should empty the world and its log")
	}
	if g.follow.Valid() || len(g.panel.Recent()) != 0 {
		t.Fatal("reset should drop the follow target and panel")
	}
}

func TestGame_ScreenWorldRoundTrip(t *testing.T) {
	g := newTestGame(t, Options{})
	g.camZoom = 2
	g.camX, g.camY = 40, 30
	p := sim.V(52.5, 17.25)
	x, y := g.toScreen(p)
	back := g.toWorld(float64(x), float64(y))
	if math.Abs(back.X-p.X) > 1e-3 || math.Abs(back.Y-p.Y) > 1e-3 {
		t.Fatalf("expected %v back, got %v", p, back)
	}
	cx, cy := g.toScreen(sim.V(40, 30))
	if int(cx) != g.mapWidth()/2 || int(cy) != g.height/2 {
		t.Fatalf("camera centre should map to the view centre, got %v,%v", cx, cy)
	}
}

func TestGame_HUDLines(t *testing.T) {
	g := newTestGame(t, Options{})
	g.paused = true
	g.flash("hello")
	lines := strings.Join(g.hudLines(), "\n")
	for _, want := range []string{"PAUSED", "agents 0", "> hello"} {
		if !strings.Contains(lines, want) {
			t.Fatalf("HUD missing %q:\n%s", want, lines)
		}
	}
}
