package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Garsondee/boid-flock/internal/terrain"
)

// DefaultDt is the fixed step the drivers use (60 ticks per simulated second).
const DefaultDt = 1.0 / 60

// TestSim is a headless simulation harness used by tests and the batch
// reporter. It drives a World over a terrain map with deterministic seeding
// and records every event into Log.
type TestSim struct {
	Width    int
	Height   int
	Terrain  *terrain.Map
	World    *World
	Spawner  *Spawner
	Log      *EventLog
	Reporter *Reporter
	Handles  []Handle // agents added by options, in option order
	Dt       float64

	cfg        Config
	seed       int64
	target     Vec
	hasTarget  bool
	blocked    []rect
	workers    int
	population int
	logger     *slog.Logger
	err        error
}

type rect struct{ x, y, w, h int }

// simOptionKind controls the pass in which an option is applied.
type simOptionKind int

const (
	simOptInfra simOptionKind = iota // map, config, seed: applied before the world exists
	simOptAgent                      // add agents: applied once the world is built
	simOptCache                      // seed path cache routes: applied after agents exist
)

// SimOption is a builder function applied to a TestSim during construction.
type SimOption struct {
	kind simOptionKind
	fn   func(*TestSim) error
}

// WithMapSize sets an open map of w×h tiles.
func WithMapSize(w, h int) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) error {
		ts.Width, ts.Height = w, h
		return nil
	}}
}

// WithTerrain runs the harness on m instead of an open map.
func WithTerrain(m *terrain.Map) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) error {
		ts.Terrain = m
		ts.Width, ts.Height = m.Bounds()
		return nil
	}}
}

// WithBlocked marks a w×h rectangle of tiles at (x, y) as cliff.
func WithBlocked(x, y, w, h int) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) error {
		ts.blocked = append(ts.blocked, rect{x: x, y: y, w: w, h: h})
		return nil
	}}
}

// WithSimSeed sets the seed for agent jitter and spawning.
func WithSimSeed(seed int64) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) error {
		ts.seed = seed
		return nil
	}}
}

// WithConfig adjusts the engine configuration.
func WithConfig(fn func(*Config)) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) error {
		fn(&ts.cfg)
		return nil
	}}
}

// WithTarget sets the destination every leader plans towards.
func WithTarget(x, y float64) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) error {
		ts.target = Vec{X: x, Y: y}
		ts.hasTarget = true
		return nil
	}}
}

// WithWorkers steps agents with TickParallel across n goroutines.
func WithWorkers(n int) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) error {
		ts.workers = n
		return nil
	}}
}

// WithPopulation keeps the population topped up to n with edge spawns
// before every tick.
func WithPopulation(n int) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) error {
		ts.population = n
		return nil
	}}
}

// WithSimLogger routes world diagnostics to l.
func WithSimLogger(l *slog.Logger) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) error {
		ts.logger = l
		return nil
	}}
}

// WithAgent adds a follower at (x, y).
func WithAgent(x, y float64) SimOption {
	return SimOption{simOptAgent, func(ts *TestSim) error {
		_, err := ts.add(x, y)
		return err
	}}
}

// WithLeader adds an agent at (x, y) that is already a leader.
func WithLeader(x, y float64) SimOption {
	return SimOption{simOptAgent, func(ts *TestSim) error {
		a, err := ts.add(x, y)
		if err != nil {
			return err
		}
		ts.World.promote(a, 0)
		return nil
	}}
}

// WithCachedRoute stores route in the path cache of the cell containing its
// first waypoint.
func WithCachedRoute(route ...Vec) SimOption {
	return SimOption{simOptCache, func(ts *TestSim) error {
		if len(route) == 0 {
			return errors.New("empty cached route")
		}
		c := ts.World.grid.CellOf(route[0])
		if !ts.World.cache.Add(c, route) {
			return fmt.Errorf("cache cell (%d,%d) rejected route", c.X, c.Y)
		}
		return nil
	}}
}

// NewTestSim constructs a TestSim from the given options in ordered passes:
//  1. Infrastructure (map, blocked tiles, config, seed)
//  2. Build terrain and world
//  3. Agents
//  4. Cached routes
func NewTestSim(opts ...SimOption) (*TestSim, error) {
	ts := &TestSim{
		Width:  200,
		Height: 200,
		Log:    NewEventLog(0),
		Dt:     DefaultDt,
		cfg:    DefaultConfig(),
		seed:   1,
	}
	if err := ts.apply(opts, simOptInfra); err != nil {
		return nil, err
	}
	if err := ts.build(); err != nil {
		return nil, err
	}
	if err := ts.apply(opts, simOptAgent); err != nil {
		return nil, err
	}
	if err := ts.apply(opts, simOptCache); err != nil {
		return nil, err
	}
	return ts, nil
}

func (ts *TestSim) apply(opts []SimOption, kind simOptionKind) error {
	for _, o := range opts {
		if o.kind != kind {
			continue
		}
		if err := o.fn(ts); err != nil {
			return err
		}
	}
	return nil
}

func (ts *TestSim) build() error {
	if ts.Terrain == nil {
		m, err := terrain.NewOpen(ts.Width, ts.Height)
		if err != nil {
			return fmt.Errorf("build terrain: %w", err)
		}
		ts.Terrain = m
	}
	for _, r := range ts.blocked {
		ts.Terrain.Fill(r.x, r.y, r.w, r.h, terrain.Cliff)
	}

	wopts := []Option{WithEventLog(ts.Log), WithSeed(ts.seed)}
	if ts.hasTarget {
		wopts = append(wopts, WithDestination(ts.target))
	}
	if ts.logger != nil {
		wopts = append(wopts, WithLogger(ts.logger))
	}
	w, err := NewWorld(ts.Terrain, ts.cfg, wopts...)
	if err != nil {
		return fmt.Errorf("build world: %w", err)
	}
	ts.World = w
	ts.Spawner = NewSpawner(w, ts.seed)
	ts.Reporter = NewReporter(0)
	return nil
}

func (ts *TestSim) add(x, y float64) (*Agent, error) {
	h, err := ts.World.Spawn(Vec{X: x, Y: y})
	if err != nil {
		return nil, err
	}
	ts.Handles = append(ts.Handles, h)
	a, _ := ts.World.resolve(h)
	return a, nil
}

// Agent returns the i-th agent added by an option, if it is still alive.
func (ts *TestSim) Agent(i int) (*Agent, bool) {
	if i < 0 || i >= len(ts.Handles) {
		return nil, false
	}
	return ts.World.Agent(ts.Handles[i])
}

// Block marks tile (x, y) unwalkable between ticks.
func (ts *TestSim) Block(x, y int) {
	ts.Terrain.Set(x, y, terrain.Cliff)
}

// RunTicks advances the simulation n ticks.
func (ts *TestSim) RunTicks(n int) {
	for i := 0; i < n; i++ {
		ts.runOneTick()
	}
}

// RunUntil advances the simulation up to maxTicks, stopping early if predicate
// returns true. Returns the tick at which the predicate was satisfied, or -1.
func (ts *TestSim) RunUntil(predicate func(*TestSim) bool, maxTicks int) int {
	for i := 0; i < maxTicks; i++ {
		ts.runOneTick()
		if predicate(ts) {
			return ts.World.TickCount()
		}
	}
	return -1
}

func (ts *TestSim) runOneTick() {
	if ts.population > 0 {
		if _, err := ts.Spawner.Replenish(ts.population); err != nil && ts.err == nil {
			ts.err = err
		}
	}
	if ts.workers > 0 {
		if err := ts.World.TickParallel(context.Background(), ts.Dt, ts.workers); err != nil && ts.err == nil {
			ts.err = err
		}
		return
	}
	ts.World.Tick(ts.Dt)
}

// Err returns the first spawn or tick error seen while running.
func (ts *TestSim) Err() error { return ts.err }

// CurrentTick returns the number of completed ticks.
func (ts *TestSim) CurrentTick() int { return ts.World.TickCount() }

// Snapshot collects a population snapshot into the reporter.
func (ts *TestSim) Snapshot() Snapshot { return ts.Reporter.Collect(ts.World) }
