package sim

import (
	"fmt"
	"strings"
)

// reportWindowTicks is the default sliding window for recent-behaviour reports (~10s at 60TPS).
const reportWindowTicks = 600

// Snapshot captures the population at one tick.
type Snapshot struct {
	Tick      int
	Alive     int
	Leaders   int
	Followers int
	Bound     int // followers holding a leader binding
	Idle      int // followers standing still
	AvgSpeed  float64
	CachedRts int // routes held by the path cache
	Stats     Stats
}

// Reporter collects periodic snapshots and summarises sliding windows of them.
type Reporter struct {
	history     []Snapshot
	windowTicks int
}

// NewReporter creates a reporter with the given window size.
func NewReporter(windowTicks int) *Reporter {
	if windowTicks <= 0 {
		windowTicks = reportWindowTicks
	}
	return &Reporter{windowTicks: windowTicks}
}

// Collect gathers a snapshot from w. Call it between ticks.
func (r *Reporter) Collect(w *World) Snapshot {
	snap := Snapshot{
		Tick:      w.TickCount(),
		CachedRts: w.cache.Total(),
		Stats:     w.Stats(),
	}
	var speed float64
	w.Each(func(a *Agent) {
		_, vel, role := a.kinematics()
		snap.Alive++
		speed += vel.Len()
		if role == RoleLeader {
			snap.Leaders++
			return
		}
		snap.Followers++
		if a.leader.Valid() {
			snap.Bound++
		}
		if vel.IsZero() {
			snap.Idle++
		}
	})
	if snap.Alive > 0 {
		snap.AvgSpeed = speed / float64(snap.Alive)
	}
	r.history = append(r.history, snap)
	// Keep a few windows of history.
	if keep := r.windowTicks * 4; len(r.history) > keep {
		r.history = r.history[len(r.history)-keep:]
	}
	return snap
}

// Latest returns the most recent snapshot, or nil.
func (r *Reporter) Latest() *Snapshot {
	if len(r.history) == 0 {
		return nil
	}
	return &r.history[len(r.history)-1]
}

// History returns the retained snapshots.
func (r *Reporter) History() []Snapshot { return r.history }

// Reset drops all snapshots.
func (r *Reporter) Reset() { r.history = r.history[:0] }

// WindowReport aggregates the snapshots of one window.
type WindowReport struct {
	FromTick, ToTick int
	SampleCount      int

	AvgAlive     float64
	AvgLeaders   float64
	PeakLeaders  int
	AvgBoundPct  float64 // share of followers with a leader binding
	AvgIdlePct   float64
	AvgSpeed     float64
	CacheHitRate float64

	Delta Stats // counter growth over the window
}

// WindowSummary aggregates the snapshots inside the sliding window.
func (r *Reporter) WindowSummary() *WindowReport {
	if len(r.history) == 0 {
		return nil
	}
	last := r.history[len(r.history)-1]
	start := len(r.history) - 1
	for start > 0 && last.Tick-r.history[start-1].Tick <= r.windowTicks {
		start--
	}
	window := r.history[start:]

	wr := &WindowReport{
		FromTick:    window[0].Tick,
		ToTick:      last.Tick,
		SampleCount: len(window),
	}
	for _, s := range window {
		wr.AvgAlive += float64(s.Alive)
		wr.AvgLeaders += float64(s.Leaders)
		wr.AvgSpeed += s.AvgSpeed
		wr.PeakLeaders = max(wr.PeakLeaders, s.Leaders)
		if s.Followers > 0 {
			wr.AvgBoundPct += 100 * float64(s.Bound) / float64(s.Followers)
			wr.AvgIdlePct += 100 * float64(s.Idle) / float64(s.Followers)
		}
	}
	n := float64(len(window))
	wr.AvgAlive /= n
	wr.AvgLeaders /= n
	wr.AvgSpeed /= n
	wr.AvgBoundPct /= n
	wr.AvgIdlePct /= n
	wr.Delta = last.Stats.Sub(window[0].Stats)
	wr.CacheHitRate = wr.Delta.CacheHitRate()
	return wr
}

// Format returns a human-readable multi-line string of the window summary.
func (wr *WindowReport) Format() string {
	if wr == nil {
		return "No data collected yet.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Flock Report (T=%d..%d, %d samples) ===\n",
		wr.FromTick, wr.ToTick, wr.SampleCount)

	sb.WriteString("\n--- Population ---\n")
	fmt.Fprintf(&sb, "  alive=%.1f  leaders=%.1f (peak %d)  speed=%.2f\n",
		wr.AvgAlive, wr.AvgLeaders, wr.PeakLeaders, wr.AvgSpeed)
	fmt.Fprintf(&sb, "  followers bound=%.1f%%  idle=%.1f%%\n", wr.AvgBoundPct, wr.AvgIdlePct)

	sb.WriteString("\n--- Lifecycle ---\n")
	fmt.Fprintf(&sb, "  spawned=%d  arrived=%d  unreachable=%d\n",
		wr.Delta.Spawned, wr.Delta.Arrived, wr.Delta.Unreachable)
	fmt.Fprintf(&sb, "  promotions=%d  demotions=%d\n", wr.Delta.Promotions, wr.Delta.Demotions)

	sb.WriteString("\n--- Planning ---\n")
	fmt.Fprintf(&sb, "  fresh=%d  cache_hits=%d (%.1f%%)  evictions=%d  no_path=%d\n",
		wr.Delta.FreshPlans, wr.Delta.CacheHits, 100*wr.CacheHitRate, wr.Delta.CacheEvictions, wr.Delta.NoPath)
	if wr.Delta.StaleRemovals > 0 {
		fmt.Fprintf(&sb, "  stale index removals=%d\n", wr.Delta.StaleRemovals)
	}
	return sb.String()
}

// FormatLatest returns a one-line summary of the most recent snapshot.
func (r *Reporter) FormatLatest() string {
	s := r.Latest()
	if s == nil {
		return "No data collected yet.\n"
	}
	return fmt.Sprintf("T=%d alive=%d leaders=%d bound=%d idle=%d arrived=%d cached=%d\n",
		s.Tick, s.Alive, s.Leaders, s.Bound, s.Idle, s.Stats.Arrived, s.CachedRts)
}
