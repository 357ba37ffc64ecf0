package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Garsondee/boid-flock/internal/archive"
	"github.com/Garsondee/boid-flock/internal/sim"
	"github.com/Garsondee/boid-flock/internal/terrain"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const sampleEvery = 60

type runConfig struct {
	ticks   int
	agents  int
	width   int
	height  int
	workers int
}

type runStats struct {
	runIndex int
	id       uuid.UUID
	seed     int64
	started  time.Time
	elapsed  time.Duration

	walkable    float64
	stats       sim.Stats
	peakLeaders int
	endAlive    int

	firstPromotionTick   int
	firstArrivalTick     int
	firstCacheHitTick    int
	firstUnreachableTick int

	events        map[string]int
	windowSummary *sim.WindowReport
}

func main() {
	var runs int
	var seedBase int64
	var seedStep int64
	var dbPath string
	var list int
	var cfg runConfig

	flag.IntVar(&runs, "runs", 5, "number of headless simulation runs")
	flag.IntVar(&cfg.ticks, "ticks", 3600, "ticks per run")
	flag.IntVar(&cfg.agents, "agents", 300, "live population kept topped up")
	flag.Int64Var(&seedBase, "seed-base", 42, "base RNG seed for run 1")
	flag.Int64Var(&seedStep, "seed-step", 1, "seed increment between runs")
	flag.IntVar(&cfg.width, "width", 640, "map width in tiles")
	flag.IntVar(&cfg.height, "height", 360, "map height in tiles")
	flag.IntVar(&cfg.workers, "workers", 0, "parallel tick workers (0 = sequential)")
	flag.StringVar(&dbPath, "db", "", "SQLite archive for run summaries (empty = none)")
	flag.IntVar(&list, "list", 0, "print the N most recent archived runs from -db and exit")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if list > 0 && dbPath == "" {
		fmt.Println("error: -list needs -db")
		return
	}
	if runs <= 0 {
		fmt.Println("error: -runs must be > 0")
		return
	}
	if cfg.ticks <= 0 {
		fmt.Println("error: -ticks must be > 0")
		return
	}
	if cfg.agents <= 0 {
		fmt.Println("error: -agents must be > 0")
		return
	}

	var db *archive.DB
	if dbPath != "" {
		var err error
		if db, err = archive.Open(dbPath, slog.Default()); err != nil {
			slog.Error("archive unavailable", "path", dbPath, "err", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	if list > 0 {
		recent, err := db.ListRuns(context.Background(), list)
		if err != nil {
			slog.Error("list runs", "path", dbPath, "err", err)
			os.Exit(1)
		}
		printArchived(os.Stdout, recent)
		return
	}

	fmt.Printf("=== Headless Flock Report ===\n")
	fmt.Printf("runs=%d ticks=%s agents=%s map=%dx%d workers=%d seed_base=%d seed_step=%d\n\n",
		runs, humanize.Comma(int64(cfg.ticks)), humanize.Comma(int64(cfg.agents)),
		cfg.width, cfg.height, cfg.workers, seedBase, seedStep)

	all := make([]runStats, 0, runs)
	for i := range runs {
		seed := seedBase + int64(i)*seedStep
		rs, err := runFlock(cfg, i+1, seed)
		if err != nil {
			slog.Error("run failed", "run", i+1, "seed", seed, "err", err)
			os.Exit(1)
		}
		if db != nil {
			if _, err := db.SaveRun(context.Background(), toArchive(cfg, rs)); err != nil {
				slog.Error("archive run", "run", rs.id, "err", err)
				os.Exit(1)
			}
		}
		all = append(all, rs)
		printRun(rs)
	}
	printAggregate(all)
}

func runFlock(cfg runConfig, runIndex int, seed int64) (runStats, error) {
	gen := terrain.DefaultGenConfig()
	gen.Width, gen.Height, gen.Seed = cfg.width, cfg.height, seed
	m, err := terrain.Generate(gen)
	if err != nil {
		return runStats{}, fmt.Errorf("generate terrain: %w", err)
	}

	ts, err := sim.NewTestSim(
		sim.WithTerrain(m),
		sim.WithSimSeed(seed),
		sim.WithPopulation(cfg.agents),
		sim.WithWorkers(cfg.workers),
	)
	if err != nil {
		return runStats{}, err
	}

	rs := runStats{
		runIndex: runIndex,
		id:       uuid.New(),
		seed:     seed,
		started:  time.Now(),
		walkable: m.WalkableShare(),
	}
	for ts.CurrentTick() < cfg.ticks {
		ts.RunTicks(min(sampleEvery, cfg.ticks-ts.CurrentTick()))
		if err := ts.Err(); err != nil {
			return rs, fmt.Errorf("tick %d: %w", ts.CurrentTick(), err)
		}
		snap := ts.Snapshot()
		rs.peakLeaders = max(rs.peakLeaders, snap.Leaders)
	}
	rs.elapsed = time.Since(rs.started)

	entries := ts.Log.Entries()
	rs.stats = ts.World.Stats()
	rs.endAlive = ts.World.Len()
	rs.events = countEvents(entries)
	rs.firstPromotionTick = firstTick(entries, sim.CatRole, "promote")
	rs.firstArrivalTick = firstTick(entries, sim.CatLife, "arrive")
	rs.firstCacheHitTick = firstTick(entries, sim.CatPath, "cache_hit")
	rs.firstUnreachableTick = firstTick(entries, sim.CatLife, "unreachable")
	rs.windowSummary = ts.Reporter.WindowSummary()
	return rs, nil
}

// countEvents tallies entries by "category/key".
func countEvents(entries []sim.Event) map[string]int {
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Category+"/"+e.Key]++
	}
	return counts
}

func firstTick(entries []sim.Event, category, key string) int {
	for _, e := range entries {
		if e.Category == category && e.Key == key {
			return e.Tick
		}
	}
	return -1
}

func toArchive(cfg runConfig, rs runStats) archive.Run {
	return archive.Run{
		ID:             rs.id,
		StartedAt:      rs.started,
		Seed:           rs.seed,
		Ticks:          cfg.ticks,
		Agents:         cfg.agents,
		Width:          cfg.width,
		Height:         cfg.height,
		Workers:        cfg.workers,
		Spawned:        rs.stats.Spawned,
		Arrived:        rs.stats.Arrived,
		Unreachable:    rs.stats.Unreachable,
		Promotions:     rs.stats.Promotions,
		Demotions:      rs.stats.Demotions,
		CacheHits:      rs.stats.CacheHits,
		CacheEvictions: rs.stats.CacheEvictions,
		FreshPlans:     rs.stats.FreshPlans,
		NoPath:         rs.stats.NoPath,
		PeakLeaders:    rs.peakLeaders,
		HitRate:        rs.stats.CacheHitRate(),
		Events:         rs.events,
	}
}

// printArchived writes one line per archived run, newest first.
func printArchived(out io.Writer, recent []archive.Run) {
	if len(recent) == 0 {
		fmt.Fprintln(out, "no archived runs")
		return
	}
	fmt.Fprintf(out, "=== Archived Runs (%d) ===\n", len(recent))
	for _, r := range recent {
		fmt.Fprintf(out, "%s  %s  seed=%d ticks=%s agents=%s map=%dx%d arrived=%s unreachable=%s hit_rate=%.1f%% peak_leaders=%d\n",
			r.ID, humanize.Time(r.StartedAt), r.Seed,
			humanize.Comma(int64(r.Ticks)), humanize.Comma(int64(r.Agents)), r.Width, r.Height,
			humanize.Comma(r.Arrived), humanize.Comma(r.Unreachable), 100*r.HitRate, r.PeakLeaders)
	}
}

func printRun(rs runStats) {
	st := rs.stats
	fmt.Printf("--- Run %d (seed=%d id=%s) ---\n", rs.runIndex, rs.seed, rs.id)
	fmt.Printf("terrain: walkable=%.1f%%  wall_time=%s\n", 100*rs.walkable, rs.elapsed.Round(time.Millisecond))
	fmt.Printf("phase_markers: first_promotion=%d first_cache_hit=%d first_arrival=%d first_unreachable=%d\n",
		rs.firstPromotionTick, rs.firstCacheHitTick, rs.firstArrivalTick, rs.firstUnreachableTick)
	fmt.Printf("lifecycle: spawned=%s arrived=%s unreachable=%s alive_at_end=%s\n",
		humanize.Comma(st.Spawned), humanize.Comma(st.Arrived), humanize.Comma(st.Unreachable),
		humanize.Comma(int64(rs.endAlive)))
	fmt.Printf("leadership: promotions=%s demotions=%s peak_leaders=%d\n",
		humanize.Comma(st.Promotions), humanize.Comma(st.Demotions), rs.peakLeaders)
	fmt.Printf("planning: fresh=%s cache_hits=%s hit_rate=%.1f%% evictions=%s no_path=%s\n",
		humanize.Comma(st.FreshPlans), humanize.Comma(st.CacheHits), 100*st.CacheHitRate(),
		humanize.Comma(st.CacheEvictions), humanize.Comma(st.NoPath))
	if st.StaleRemovals > 0 {
		fmt.Printf("index: stale_removals=%s\n", humanize.Comma(st.StaleRemovals))
	}
	fmt.Printf("event_totals: %s\n", formatCounts(rs.events))
	if rs.windowSummary != nil {
		fmt.Printf("window_samples=%d window_tick_range=%d..%d\n",
			rs.windowSummary.SampleCount, rs.windowSummary.FromTick, rs.windowSummary.ToTick)
		fmt.Printf("window_avg: alive=%.1f leaders=%.1f bound=%.1f%% idle=%.1f%% speed=%.2f\n",
			rs.windowSummary.AvgAlive, rs.windowSummary.AvgLeaders,
			rs.windowSummary.AvgBoundPct, rs.windowSummary.AvgIdlePct, rs.windowSummary.AvgSpeed)
	}
	fmt.Println()
}

func printAggregate(all []runStats) {
	var total sim.Stats
	peak := 0
	arrivalTicks := make([]int, 0, len(all))
	unreachableTicks := make([]int, 0, len(all))
	for _, rs := range all {
		total.Spawned += rs.stats.Spawned
		total.Arrived += rs.stats.Arrived
		total.Unreachable += rs.stats.Unreachable
		total.Promotions += rs.stats.Promotions
		total.Demotions += rs.stats.Demotions
		total.CacheHits += rs.stats.CacheHits
		total.FreshPlans += rs.stats.FreshPlans
		total.CacheEvictions += rs.stats.CacheEvictions
		peak = max(peak, rs.peakLeaders)
		if rs.firstArrivalTick >= 0 {
			arrivalTicks = append(arrivalTicks, rs.firstArrivalTick)
		}
		if rs.firstUnreachableTick >= 0 {
			unreachableTicks = append(unreachableTicks, rs.firstUnreachableTick)
		}
	}

	n := len(all)
	fmt.Println("=== Aggregate ===")
	fmt.Printf("runs=%d\n", n)
	fmt.Printf("avg_per_run: spawned=%.1f arrived=%.1f unreachable=%.1f promotions=%.1f demotions=%.1f\n",
		avg(total.Spawned, n), avg(total.Arrived, n), avg(total.Unreachable, n),
		avg(total.Promotions, n), avg(total.Demotions, n))
	fmt.Printf("planning: cache_hit_rate=%.1f%% evictions_per_run=%.1f peak_leaders=%d\n",
		100*total.CacheHitRate(), avg(total.CacheEvictions, n), peak)
	fmt.Printf("phase_marker_avg_ticks: first_arrival=%s first_unreachable=%s\n",
		avgTickString(arrivalTicks), avgTickString(unreachableTicks))
}

func avg(sum int64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func avgTickString(vals []int) string {
	if len(vals) == 0 {
		return "n/a"
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return fmt.Sprintf("%.1f", float64(sum)/float64(len(vals)))
}

// formatCounts renders counts sorted by name.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%s", k, humanize.Comma(int64(counts[k])))
	}
	return strings.Join(parts, " ")
}
