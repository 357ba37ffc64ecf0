package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Terrain is the walkability map the engine runs on. It must not change
// shape during a run; individual tiles may be re-flagged between ticks.
type Terrain interface {
	// Walkable reports whether tile (x, y) is passable. Callers bounds-check.
	Walkable(x, y int) bool
	// Bounds returns the map size in tiles.
	Bounds() (width, height int)
}

// ErrOutOfBounds is returned when a spawn position lies outside the map.
var ErrOutOfBounds = errors.New("position outside map")

type slot struct {
	gen   uint32
	agent *Agent
}

// World owns everything agents share: the spatial grid, the leader index,
// the path cache, the population arena and the simulation clock. Agents only
// ever hold handles into it.
type World struct {
	cfg     Config
	terrain Terrain
	width   int
	height  int

	grid    *Grid
	leaders *Grid
	cache   *PathCache
	pather  *Pathfinder
	intra   *Pathfinder

	dest     Vec
	destTile [2]int
	hasDest  bool

	popMu sync.RWMutex
	slots []slot
	free  []uint32
	live  int

	clock time.Duration
	tick  int
	seed  int64
	seq   int64

	log     *slog.Logger
	events  *EventLog
	stats   counters
	scratch *scratch
	order   []Handle
}

// Option configures a World.
type Option func(*World)

// WithLogger sets the diagnostic logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(w *World) { w.log = l }
}

// WithEventLog records role, path and lifecycle events into l.
func WithEventLog(l *EventLog) Option {
	return func(w *World) { w.events = l }
}

// WithSeed seeds the per-agent jitter generators.
func WithSeed(seed int64) Option {
	return func(w *World) { w.seed = seed }
}

// WithDestination overrides the default destination (the map centre).
func WithDestination(p Vec) Option {
	return func(w *World) {
		w.dest = p
		w.hasDest = true
	}
}

// NewWorld builds an empty world over t.
func NewWorld(t Terrain, cfg Config, opts ...Option) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	width, height := t.Bounds()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("terrain bounds %dx%d: %w", width, height, ErrOutOfBounds)
	}
	w := &World{
		cfg:     cfg,
		terrain: t,
		width:   width,
		height:  height,
		seed:    1,
		log:     slog.New(slog.DiscardHandler),
		scratch: newScratch(),
	}
	for _, o := range opts {
		o(w)
	}

	w.grid = NewGrid(width, height, cfg.CellSize)
	w.leaders = NewGrid(width, height, cfg.CellSize)
	cols, rows := w.grid.Dims()
	w.cache = NewPathCache(cols, rows, cfg.PathCacheMax)
	w.pather = NewPathfinder(t.Walkable, width, height, cfg.MaxSearchDistance, WithMaxExpansions(cfg.MaxExpansions))
	w.intra = NewPathfinder(t.Walkable, width, height, cfg.intraCellDistance())

	if !w.hasDest {
		w.dest = Vec{X: float64(width / 2), Y: float64(height / 2)}
	}
	if err := w.SetDestination(w.dest); err != nil {
		return nil, err
	}
	return w, nil
}

// Config returns the configuration the world runs with.
func (w *World) Config() Config { return w.cfg }

// Bounds returns the map size in tiles.
func (w *World) Bounds() (int, int) { return w.width, w.height }

// Grid returns the spatial grid of every agent.
func (w *World) Grid() *Grid { return w.grid }

// Leaders returns the leader index.
func (w *World) Leaders() *Grid { return w.leaders }

// Cache returns the leader path cache.
func (w *World) Cache() *PathCache { return w.cache }

// Events returns the event log, which may be nil.
func (w *World) Events() *EventLog { return w.events }

// Destination returns the point every leader plans towards.
func (w *World) Destination() Vec { return w.dest }

// Clock returns the simulated time elapsed over completed ticks.
func (w *World) Clock() time.Duration { return w.clock }

// TickCount returns the number of completed ticks.
func (w *World) TickCount() int { return w.tick }

// SetDestination moves the global target. Cached and active routes lead to
// the old target, so both are dropped and leaders replan on their next step.
// Call it between ticks.
func (w *World) SetDestination(p Vec) error {
	if !p.Finite() {
		return fmt.Errorf("destination %v: %w", p, ErrOutOfBounds)
	}
	tx, ty := p.Tile()
	if tx < 0 || ty < 0 || tx >= w.width || ty >= w.height {
		return fmt.Errorf("destination %v: %w", p, ErrOutOfBounds)
	}
	w.dest = p
	w.destTile = [2]int{tx, ty}
	w.cache.Clear()

	w.popMu.RLock()
	for _, s := range w.slots {
		if s.agent != nil {
			s.agent.path = nil
		}
	}
	w.popMu.RUnlock()
	return nil
}

// Spawn adds a follower at p and indexes it. Positions are validated here so
// no agent ever carries a NaN coordinate.
func (w *World) Spawn(p Vec) (Handle, error) {
	if !p.Finite() {
		return Handle{}, fmt.Errorf("spawn at %v: %w", p, ErrOutOfBounds)
	}
	if p.X < 0 || p.Y < 0 || p.X >= float64(w.width) || p.Y >= float64(w.height) {
		return Handle{}, fmt.Errorf("spawn at %v: %w", p, ErrOutOfBounds)
	}

	w.popMu.Lock()
	var idx uint32
	if n := len(w.free); n > 0 {
		idx = w.free[n-1]
		w.free = w.free[:n-1]
	} else {
		idx = uint32(len(w.slots))
		w.slots = append(w.slots, slot{})
	}
	s := &w.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	h := Handle{Index: idx, Gen: s.gen}
	w.seq++
	a := newAgent(h, p, w.grid.CellOf(p), w.seed*7919+w.seq)
	s.agent = a
	w.live++
	w.popMu.Unlock()

	w.grid.Insert(h, a.cell)
	w.stats.spawned.Add(1)
	w.events.Add(w.tick, h.String(), CatLife, "spawn", fmt.Sprintf("(%.1f,%.1f)", p.X, p.Y), 0)
	return h, nil
}

// Agent resolves h. It fails for handles of destroyed agents.
func (w *World) Agent(h Handle) (*Agent, bool) {
	return w.resolve(h)
}

func (w *World) resolve(h Handle) (*Agent, bool) {
	if !h.Valid() {
		return nil, false
	}
	w.popMu.RLock()
	defer w.popMu.RUnlock()
	if int(h.Index) >= len(w.slots) {
		return nil, false
	}
	s := w.slots[h.Index]
	if s.gen != h.Gen || s.agent == nil {
		return nil, false
	}
	return s.agent, true
}

// Len returns the live population.
func (w *World) Len() int {
	w.popMu.RLock()
	defer w.popMu.RUnlock()
	return w.live
}

// Handles returns the live handles in slot order.
func (w *World) Handles() []Handle {
	return w.appendHandles(nil)
}

func (w *World) appendHandles(buf []Handle) []Handle {
	w.popMu.RLock()
	defer w.popMu.RUnlock()
	for _, s := range w.slots {
		if s.agent != nil {
			buf = append(buf, s.agent.id)
		}
	}
	return buf
}

// Each calls fn for every live agent in slot order. fn must not spawn or
// step agents.
func (w *World) Each(fn func(a *Agent)) {
	w.popMu.RLock()
	defer w.popMu.RUnlock()
	for _, s := range w.slots {
		if s.agent != nil {
			fn(s.agent)
		}
	}
}

// Reset removes every agent, empties both indices and the cache and rewinds
// the clock.
func (w *World) Reset() {
	w.popMu.Lock()
	for i := range w.slots {
		if w.slots[i].agent != nil {
			w.slots[i].agent = nil
			w.free = append(w.free, uint32(i))
		}
	}
	w.live = 0
	w.popMu.Unlock()
	w.grid.Clear()
	w.leaders.Clear()
	w.cache.Clear()
	w.clock = 0
	w.tick = 0
}

// Tick advances every agent once, in slot order, then advances the clock.
func (w *World) Tick(dt float64) {
	w.order = w.appendHandles(w.order[:0])
	for _, h := range w.order {
		w.stepHandle(h, dt, w.scratch)
	}
	w.Advance(dt)
}

// Step advances a single agent by dt. Drivers that call Step themselves must
// call Advance once per frame after stepping every agent.
func (w *World) Step(h Handle, dt float64) {
	w.stepHandle(h, dt, newScratch())
}

// Advance moves the simulation clock forward by dt seconds.
func (w *World) Advance(dt float64) {
	w.clock += durationOf(dt)
	w.tick++
}

func durationOf(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func (w *World) stepHandle(h Handle, dt float64, s *scratch) {
	a, ok := w.resolve(h)
	if !ok {
		return
	}
	w.step(a, dt, s)
}

// step runs one agent through its tick: destination check, role check,
// behaviour, then re-indexing.
func (w *World) step(a *Agent, dt float64, s *scratch) {
	if a.pos.DistSq(w.dest) < w.cfg.DestroyRadius*w.cfg.DestroyRadius {
		w.stats.arrived.Add(1)
		w.destroy(a, "arrive")
		return
	}

	w.electRole(a)

	if a.role == RoleLeader {
		if !w.leaderStep(a, dt) {
			return
		}
	} else {
		w.followerStep(a, dt, s)
	}

	w.reindex(a)
}

// reindex clamps the position onto the map and moves the agent's index
// entries when it crossed into another cell.
func (w *World) reindex(a *Agent) {
	pos := w.clampPosition(a.pos)
	if pos != a.pos {
		a.setKinematics(pos, a.vel)
	}
	cell := w.grid.CellOf(pos)
	if cell == a.cell {
		return
	}
	if !w.grid.Move(a.id, a.cell, cell) {
		w.staleRemove(a, "grid", a.cell)
	}
	if a.role == RoleLeader {
		if !w.leaders.Move(a.id, a.cell, cell) {
			w.staleRemove(a, "leaders", a.cell)
		}
	}
	a.cell = cell
}

func (w *World) clampPosition(p Vec) Vec {
	return Vec{
		X: math.Min(math.Max(p.X, 0), math.Nextafter(float64(w.width), 0)),
		Y: math.Min(math.Max(p.Y, 0), math.Nextafter(float64(w.height), 0)),
	}
}

func (w *World) staleRemove(a *Agent, index string, c Cell) {
	w.stats.staleRemovals.Add(1)
	w.events.Add(w.tick, a.id.String(), CatIndex, "stale_remove", fmt.Sprintf("%s (%d,%d)", index, c.X, c.Y), 0)
	w.log.Debug("index entry missing", "agent", a.id.String(), "index", index, "cell_x", c.X, "cell_y", c.Y)
}

// destroy removes a from both indices and the population.
func (w *World) destroy(a *Agent, reason string) {
	if !w.grid.Remove(a.id, a.cell) {
		w.staleRemove(a, "grid", a.cell)
	}
	if a.role == RoleLeader && !w.leaders.Remove(a.id, a.cell) {
		w.staleRemove(a, "leaders", a.cell)
	}
	a.path = nil

	w.popMu.Lock()
	if s := &w.slots[a.id.Index]; s.gen == a.id.Gen && s.agent == a {
		s.agent = nil
		w.free = append(w.free, a.id.Index)
		w.live--
	}
	w.popMu.Unlock()

	w.events.Add(w.tick, a.id.String(), CatLife, reason, a.role.String(), 0)
}

// walkableAt reports whether the tile under p is passable and on the map.
func (w *World) walkableAt(p Vec) bool {
	if !p.Finite() {
		return false
	}
	x, y := p.Tile()
	return w.pather.Walkable(x, y)
}
