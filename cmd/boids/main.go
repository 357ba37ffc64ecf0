package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/Garsondee/boid-flock/internal/sim"
	"github.com/Garsondee/boid-flock/internal/terrain"
	"github.com/Garsondee/boid-flock/internal/viewer"
	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	var (
		seed    int64
		agents  int
		width   int
		height  int
		workers int
		winW    int
		winH    int
		debug   bool
	)
	flag.Int64Var(&seed, "seed", 0, "terrain and simulation seed (0 = time based)")
	flag.IntVar(&agents, "agents", 300, "live population kept topped up")
	flag.IntVar(&width, "width", 640, "map width in tiles")
	flag.IntVar(&height, "height", 360, "map height in tiles")
	flag.IntVar(&workers, "workers", 0, "parallel tick workers (0 = sequential)")
	flag.IntVar(&winW, "window-width", 1620, "window width in pixels, event panel included")
	flag.IntVar(&winH, "window-height", 720, "window height in pixels")
	flag.BoolVar(&debug, "debug", false, "log planning diagnostics")
	flag.Parse()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gen := terrain.DefaultGenConfig()
	gen.Width, gen.Height, gen.Seed = width, height, seed
	m, err := terrain.Generate(gen)
	if err != nil {
		logger.Error("generate terrain", "err", err)
		os.Exit(1)
	}
	logger.Info("terrain ready", "seed", seed, "width", width, "height", height, "walkable", m.WalkableShare())

	w, err := sim.NewWorld(m, sim.DefaultConfig(),
		sim.WithSeed(seed),
		sim.WithLogger(logger),
		sim.WithEventLog(sim.NewEventLog(4096)),
	)
	if err != nil {
		logger.Error("build world", "err", err)
		os.Exit(1)
	}

	g, err := viewer.New(w, m, viewer.Options{
		Width:      winW,
		Height:     winH,
		Population: agents,
		Workers:    workers,
		Seed:       seed,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("build viewer", "err", err)
		os.Exit(1)
	}

	ebiten.SetWindowTitle("Boid Flock")
	ebiten.SetWindowSize(winW, winH)
	if err := ebiten.RunGame(g); err != nil {
		logger.Error("run", "err", err)
		os.Exit(1)
	}
}
