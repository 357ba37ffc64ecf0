package sim

import (
	"math"
	"math/rand"
	"testing"
)

func TestInView(t *testing.T) {
	ahead := V(1, 0)
	if !inView(ahead, V(1, 0), 1.5) {
		t.Fatal("straight ahead should be visible")
	}
	if inView(ahead, V(-1, 0), 1.5) {
		t.Fatal("directly behind should be outside a 1.5 rad half-angle")
	}
	if !inView(Vec{}, V(-1, 0), 0.1) {
		t.Fatal("a stationary agent sees in every direction")
	}
}

func TestFlock_SeparationPushesApart(t *testing.T) {
	ts := newTestSim(t,
		WithMapSize(200, 200),
		WithConfig(noPromotion),
		WithConfig(func(c *Config) { c.Coherence = 0 }),
		WithAgent(50, 50),
		WithAgent(52, 50),
	)
	a, _ := ts.Agent(0)
	v := ts.World.flock(a, Vec{}, newScratch())
	if v.X >= 0 {
		t.Fatalf("close neighbour on the right should push left, got %v", v)
	}
}

func TestFlock_CoherencePullsTogether(t *testing.T) {
	ts := newTestSim(t,
		WithMapSize(200, 200),
		WithConfig(noPromotion),
		WithAgent(50, 50),
		WithAgent(70, 50),
	)
	a, _ := ts.Agent(0)
	v := ts.World.flock(a, Vec{}, newScratch())
	if math.Abs(v.X-ts.World.Config().Coherence) > 1e-12 || v.Y != 0 {
		t.Fatalf("distant neighbour should add pure coherence, got %v", v)
	}
}

func TestFlock_ViewAngleFiltersOtherCells(t *testing.T) {
	ts := newTestSim(t,
		WithMapSize(200, 200),
		WithConfig(noPromotion),
		WithAgent(60, 50),
		WithAgent(50, 50), // behind, same cell
		WithAgent(40, 50), // behind, neighbouring cell
	)
	a, _ := ts.Agent(0)
	heading := V(1, 0)

	v := ts.World.flock(a, heading, newScratch())
	// Only the same-cell neighbour counts: one coherence pull to the left.
	want := heading.Sub(V(ts.World.Config().Coherence, 0))
	if math.Abs(v.X-want.X) > 1e-12 {
		t.Fatalf("expected %v, got %v", want, v)
	}

	ts.World.cfg.ViewAngleSameCell = true
	v = ts.World.flock(a, heading, newScratch())
	if v != heading {
		t.Fatalf("with the filter applied everywhere nobody is visible, got %v", v)
	}
}

func TestFlock_StackedAgentsSplit(t *testing.T) {
	ts := newTestSim(t,
		WithMapSize(200, 200),
		WithConfig(noPromotion),
		WithAgent(50, 50),
		WithAgent(50, 50),
	)
	a, _ := ts.Agent(0)
	b, _ := ts.Agent(1)
	va := ts.World.flock(a, Vec{}, newScratch())
	vb := ts.World.flock(b, Vec{}, newScratch())
	if !va.Finite() || !vb.Finite() {
		t.Fatal("stacked agents must not produce NaN")
	}
	if va.Dot(vb) >= 0 {
		t.Fatalf("stacked agents should be pushed in opposite directions: %v %v", va, vb)
	}
}

func TestAvoidWalls(t *testing.T) {
	ts := newTestSim(t, WithMapSize(50, 50), WithBlocked(21, 0, 5, 50))
	v := ts.World.avoidWalls(V(20.5, 10.5), Vec{})
	if v.X >= 0 {
		t.Fatalf("wall to the right should push left, got %v", v)
	}
	if open := ts.World.avoidWalls(V(5.5, 10.5), V(1, 0)); open != V(1, 0) {
		t.Fatalf("no wall in range should leave velocity alone, got %v", open)
	}
}

func TestAvoidWalls_MapEdgeAddsNoPush(t *testing.T) {
	ts := newTestSim(t, WithMapSize(50, 50))
	for _, pos := range []Vec{V(0.5, 0.5), V(49.5, 25.5), V(25.5, 49.5)} {
		if v := ts.World.avoidWalls(pos, V(1, 0)); v != V(1, 0) {
			t.Fatalf("open map edge at %v should not push, got %v", pos, v)
		}
	}
}

func TestSettle_ClampsAndSeeds(t *testing.T) {
	ts := newTestSim(t, WithMapSize(50, 50), WithAgent(10, 10))
	a, _ := ts.Agent(0)
	cfg := ts.World.Config()

	fast := ts.World.settle(a, V(100, 0), cfg.FollowerSpeed)
	if math.Abs(fast.Len()-cfg.FollowerSpeed) > 1e-9 {
		t.Fatalf("expected clamp to %.1f, got %.3f", cfg.FollowerSpeed, fast.Len())
	}
	seeded := ts.World.settle(a, Vec{}, cfg.FollowerSpeed)
	if seeded.IsZero() {
		t.Fatal("zero velocity should be seeded")
	}
	want := math.Hypot(cfg.ZeroVelocitySeed, cfg.ZeroVelocitySeed) * cfg.StallBoost
	if math.Abs(seeded.Len()-want) > 1e-9 {
		t.Fatalf("seeded stall should be boosted to %.4f, got %.4f", want, seeded.Len())
	}
}

func TestFlock_SeparationMagnitude(t *testing.T) {
	ts := newTestSim(t,
		WithMapSize(200, 200),
		WithConfig(noPromotion),
		WithConfig(func(c *Config) { c.Coherence, c.Separation = 0, 2 }),
		WithAgent(50, 50),
		WithAgent(53, 50),
	)
	a, _ := ts.Agent(0)
	v := ts.World.flock(a, Vec{}, newScratch())
	// Half the optimal distance away: push = 2 - 2/6*3 = 1.
	if math.Abs(v.X+1) > 1e-12 || v.Y != 0 {
		t.Fatalf("expected a unit push to the left, got %v", v)
	}
}

// alignAt steers a heading (1,0) agent against one neighbour d tiles ahead
// that moves at (0,5).
func alignAt(t *testing.T, d, alignment float64) Vec {
	t.Helper()
	ts := newTestSim(t,
		WithMapSize(200, 200),
		WithConfig(noPromotion),
		WithConfig(func(c *Config) {
			c.Coherence, c.Separation, c.Alignment = 0, 0, alignment
		}),
		WithAgent(50, 50),
		WithAgent(50+d, 50),
	)
	a, _ := ts.Agent(0)
	b, _ := ts.Agent(1)
	b.setKinematics(b.Position(), V(0, 5))
	return ts.World.flock(a, V(1, 0), newScratch())
}

func TestFlock_AlignmentFalloff(t *testing.T) {
	opt := DefaultConfig().OptimalDistance

	if v := alignAt(t, opt, 0.25); v != V(1, 0) {
		t.Fatalf("no alignment pull at the optimal distance, got %v", v)
	}

	// Twice the optimal distance: weight 0.25 * 1^2.
	far := alignAt(t, 2*opt, 0.25)
	if math.Abs(far.X-0.75) > 1e-12 || math.Abs(far.Y-1.25) > 1e-12 {
		t.Fatalf("expected (0.75,1.25) beyond optimal, got %v", far)
	}

	// Half the optimal distance: weight 0.25 * 0.5^2.
	near := alignAt(t, opt/2, 0.25)
	wt := 0.0625
	if math.Abs(near.X-(1-wt)) > 1e-12 || math.Abs(near.Y-5*wt) > 1e-12 {
		t.Fatalf("expected (%.4f,%.4f) inside optimal, got %v", 1-wt, 5*wt, near)
	}
	if near.Y >= far.Y {
		t.Fatal("alignment should grow with distance from optimal")
	}

	// The weight saturates at 1: the neighbour's velocity replaces ours.
	if v := alignAt(t, 3*opt, 1); math.Abs(v.X) > 1e-12 || math.Abs(v.Y-5) > 1e-12 {
		t.Fatalf("saturated alignment should copy the neighbour, got %v", v)
	}
}

func TestSettle_JitterBounded(t *testing.T) {
	const jitter = 0.3
	ts := newTestSim(t,
		WithMapSize(50, 50),
		WithConfig(func(c *Config) { c.Jitter = jitter }),
		WithAgent(10, 10),
	)
	a, _ := ts.Agent(0)
	a.rng = rand.New(rand.NewSource(5))

	in := V(3, 4)
	widest := 0.0
	for range 500 {
		out := ts.World.settle(a, in, ts.World.Config().FollowerSpeed)
		if math.Abs(out.Len()-in.Len()) > 1e-9 {
			t.Fatalf("jitter must only rotate: |%v| != |%v|", out, in)
		}
		angle := math.Atan2(in.X*out.Y-in.Y*out.X, in.Dot(out))
		if math.Abs(angle) > jitter+1e-12 {
			t.Fatalf("rotation %.4f exceeds jitter %.2f", angle, jitter)
		}
		widest = max(widest, math.Abs(angle))
	}
	if widest < jitter/2 {
		t.Fatalf("jitter never used its range, widest rotation %.4f", widest)
	}
}
