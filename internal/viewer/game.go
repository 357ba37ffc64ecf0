// Package viewer renders a running flock with ebiten and drives its ticks.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"math/rand"

	"github.com/Garsondee/boid-flock/internal/sim"
	"github.com/Garsondee/boid-flock/internal/terrain"
	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"
)

// speedSteps are the ticks run per frame at each speed setting.
var speedSteps = []float64{0.25, 0.5, 1, 2, 4}

const (
	defaultSpeed  = 2
	snapshotEvery = 60
	statusFrames  = 120
	panSpeed      = 6.0
	minZoom       = 0.5
	maxZoom       = 4.0
)

var tileColors = map[terrain.Tile]color.RGBA{
	terrain.Cliff:  {R: 75, G: 75, B: 75, A: 255},
	terrain.Water:  {R: 10, G: 60, B: 50, A: 255},
	terrain.Sand:   {R: 200, G: 200, B: 20, A: 255},
	terrain.Grass:  {R: 10, G: 130, B: 10, A: 255},
	terrain.Forest: {R: 15, G: 115, B: 20, A: 255},
}

var cellPalette = []color.RGBA{
	{R: 230, G: 80, B: 80, A: 255},
	{R: 80, G: 200, B: 230, A: 255},
	{R: 230, G: 160, B: 40, A: 255},
	{R: 170, G: 90, B: 230, A: 255},
	{R: 240, G: 240, B: 120, A: 255},
	{R: 90, G: 230, B: 140, A: 255},
	{R: 240, G: 120, B: 200, A: 255},
}

var (
	followerCol = color.RGBA{R: 235, G: 235, B: 235, A: 255}
	leaderCol   = color.RGBA{R: 255, G: 70, B: 40, A: 255}
	pathCol     = color.RGBA{R: 255, G: 150, B: 60, A: 160}
	gridCol     = color.RGBA{R: 0, G: 0, B: 0, A: 70}
	destCol     = color.RGBA{R: 255, G: 255, B: 255, A: 220}
	hudBg       = color.RGBA{R: 8, G: 10, B: 12, A: 200}
	hudText     = color.RGBA{R: 225, G: 230, B: 235, A: 255}
)

// Options configures a Game.
type Options struct {
	Width, Height int // window size in pixels, event panel included
	Population    int // live agents kept topped up every tick
	Workers       int // > 0 ticks through World.TickParallel
	Seed          int64
	Logger        *slog.Logger
}

// Game is the ebiten.Game driving and drawing one world.
type Game struct {
	world    *sim.World
	terrain  *terrain.Map
	spawner  *sim.Spawner
	reporter *sim.Reporter
	panel    *EventPanel
	log      *slog.Logger
	rng      *rand.Rand

	population int
	workers    int

	width, height int
	terrainImg    *ebiten.Image

	camX, camY float64
	camZoom    float64
	follow     sim.Handle

	speedIdx  int
	paused    bool
	tickAccum float64

	showHUD     bool
	showLeaders bool
	showGrid    bool
	tintCells   bool

	status      string
	statusTimer int

	prevKeys  map[ebiten.Key]bool
	prevClick bool
	noSite    bool
}

// New creates a viewer for w, which must be built over m.
func New(w *sim.World, m *terrain.Map, opts Options) (*Game, error) {
	if w == nil || m == nil {
		return nil, errors.New("viewer: world and terrain are required")
	}
	if opts.Width <= panelWidth || opts.Height <= 0 {
		return nil, fmt.Errorf("viewer: window %dx%d too small", opts.Width, opts.Height)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mw, mh := m.Bounds()
	return &Game{
		world:       w,
		terrain:     m,
		spawner:     sim.NewSpawner(w, opts.Seed),
		reporter:    sim.NewReporter(0),
		panel:       NewEventPanel(),
		log:         logger,
		rng:         rand.New(rand.NewSource(opts.Seed)),
		population:  opts.Population,
		workers:     opts.Workers,
		width:       opts.Width,
		height:      opts.Height,
		camX:        float64(mw) / 2,
		camY:        float64(mh) / 2,
		camZoom:     1,
		speedIdx:    defaultSpeed,
		showHUD:     true,
		showLeaders: true,
		prevKeys:    make(map[ebiten.Key]bool),
	}, nil
}

// Update advances the simulation and handles input.
func (g *Game) Update() error {
	g.handleInput()

	if !g.paused {
		since := g.world.TickCount()
		g.tickAccum += speedSteps[g.speedIdx]
		for g.tickAccum >= 1 {
			g.tickAccum--
			if err := g.simTick(); err != nil {
				return err
			}
		}
		g.panel.Pull(g.world.Events(), since)
	}

	if g.follow.Valid() {
		if a, ok := g.world.Agent(g.follow); ok {
			p := a.Position()
			g.camX, g.camY = p.X, p.Y
		} else {
			g.follow = sim.Handle{}
			g.flash("followed agent is gone")
		}
	}
	if g.statusTimer > 0 {
		g.statusTimer--
	}
	return nil
}

func (g *Game) simTick() error {
	if _, err := g.spawner.Replenish(g.population); err != nil {
		if !errors.Is(err, sim.ErrNoSpawnSite) {
			return err
		}
		if !g.noSite {
			g.log.Warn("population cannot be replenished", "err", err)
			g.noSite = true
		}
	}
	if g.workers > 0 {
		if err := g.world.TickParallel(context.Background(), sim.DefaultDt, g.workers); err != nil {
			return fmt.Errorf("tick %d: %w", g.world.TickCount(), err)
		}
	} else {
		g.world.Tick(sim.DefaultDt)
	}
	if g.world.TickCount()%snapshotEvery == 0 {
		g.reporter.Collect(g.world)
	}
	return nil
}

func (g *Game) pressed(current map[ebiten.Key]bool, k ebiten.Key) bool {
	return current[k] && !g.prevKeys[k]
}

func (g *Game) handleInput() {
	watched := []ebiten.Key{
		ebiten.KeyP, ebiten.KeyR, ebiten.KeyG, ebiten.KeyL, ebiten.KeyK,
		ebiten.KeyN, ebiten.KeyC, ebiten.KeyH, ebiten.KeyComma, ebiten.KeyPeriod,
	}
	current := make(map[ebiten.Key]bool, len(watched))
	for _, k := range watched {
		current[k] = ebiten.IsKeyPressed(k)
	}

	if g.pressed(current, ebiten.KeyP) {
		g.paused = !g.paused
	}
	if g.pressed(current, ebiten.KeyR) {
		g.reset()
	}
	if g.pressed(current, ebiten.KeyG) {
		g.tintCells = !g.tintCells
	}
	if g.pressed(current, ebiten.KeyL) {
		g.showLeaders = !g.showLeaders
	}
	if g.pressed(current, ebiten.KeyK) {
		g.showGrid = !g.showGrid
	}
	if g.pressed(current, ebiten.KeyH) {
		g.showHUD = !g.showHUD
	}
	if g.pressed(current, ebiten.KeyN) {
		g.followRandom()
	}
	if g.pressed(current, ebiten.KeyC) {
		g.copyReport()
	}
	if g.pressed(current, ebiten.KeyComma) {
		g.speedIdx = stepSpeed(g.speedIdx, -1)
	}
	if g.pressed(current, ebiten.KeyPeriod) {
		g.speedIdx = stepSpeed(g.speedIdx, 1)
	}
	g.prevKeys = current

	// Manual panning drops any follow target.
	dx, dy := 0.0, 0.0
	if ebiten.IsKeyPressed(ebiten.KeyA) || ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
		dx--
	}
	if ebiten.IsKeyPressed(ebiten.KeyD) || ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		dx++
	}
	if ebiten.IsKeyPressed(ebiten.KeyW) || ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
		dy--
	}
	if ebiten.IsKeyPressed(ebiten.KeyS) || ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		dy++
	}
	if dx != 0 || dy != 0 {
		g.follow = sim.Handle{}
		step := panSpeed / g.scale()
		g.camX += dx * step
		g.camY += dy * step
	}

	if _, wy := ebiten.Wheel(); wy != 0 {
		g.camZoom = clampZoom(g.camZoom * math.Pow(1.1, wy))
	}

	click := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	if click && !g.prevClick {
		mx, my := ebiten.CursorPosition()
		if mx < g.mapWidth() {
			p := g.toWorld(float64(mx), float64(my))
			if err := g.world.SetDestination(p); err != nil {
				g.flash("destination outside the map")
			} else {
				g.flash("destination moved")
			}
		}
	}
	g.prevClick = click
}

func (g *Game) reset() {
	g.world.Reset()
	g.world.Events().Reset()
	g.reporter.Reset()
	g.panel.Clear()
	g.follow = sim.Handle{}
	g.tickAccum = 0
	g.noSite = false
	g.flash("world reset")
}

func (g *Game) followRandom() {
	hs := g.world.Handles()
	if len(hs) == 0 {
		g.flash("nobody to follow")
		return
	}
	g.follow = hs[g.rng.Intn(len(hs))]
	g.flash("following " + g.follow.String())
}

func (g *Game) copyReport() {
	if g.world.TickCount() > 0 && g.world.TickCount()%snapshotEvery != 0 {
		g.reporter.Collect(g.world)
	}
	if err := clipboard.WriteAll(g.reporter.WindowSummary().Format()); err != nil {
		g.log.Warn("clipboard copy failed", "err", err)
		g.flash("clipboard unavailable")
		return
	}
	g.flash("report copied")
}

func (g *Game) flash(msg string) {
	g.status = msg
	g.statusTimer = statusFrames
}

// stepSpeed moves idx by delta through speedSteps, clamped at both ends.
func stepSpeed(idx, delta int) int {
	return max(0, min(len(speedSteps)-1, idx+delta))
}

func clampZoom(z float64) float64 {
	return max(minZoom, min(maxZoom, z))
}

func (g *Game) mapWidth() int { return g.width - panelWidth }

// scale is screen pixels per tile: the whole map fits at zoom 1.
func (g *Game) scale() float64 {
	mw, mh := g.terrain.Bounds()
	fit := min(float64(g.mapWidth())/float64(mw), float64(g.height)/float64(mh))
	return fit * g.camZoom
}

func (g *Game) toScreen(p sim.Vec) (float32, float32) {
	s := g.scale()
	x := (p.X-g.camX)*s + float64(g.mapWidth())/2
	y := (p.Y-g.camY)*s + float64(g.height)/2
	return float32(x), float32(y)
}

func (g *Game) toWorld(x, y float64) sim.Vec {
	s := g.scale()
	return sim.V((x-float64(g.mapWidth())/2)/s+g.camX, (y-float64(g.height)/2)/s+g.camY)
}

// Draw renders the map, agents, HUD and event panel.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 4, G: 6, B: 8, A: 255})
	if g.terrainImg == nil {
		g.terrainImg = renderTerrain(g.terrain)
	}

	s := g.scale()
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(-g.camX, -g.camY)
	op.GeoM.Scale(s, s)
	op.GeoM.Translate(float64(g.mapWidth())/2, float64(g.height)/2)
	screen.DrawImage(g.terrainImg, op)

	if g.tintCells {
		g.drawCellTint(screen)
	}
	if g.showGrid {
		g.drawGridLines(screen)
	}
	g.drawAgents(screen)

	dx, dy := g.toScreen(g.world.Destination())
	vector.StrokeCircle(screen, dx, dy, float32(max(4, 3*s)), 2, destCol, false)

	if g.showHUD {
		g.drawHUD(screen)
	}
	g.panel.Draw(screen, g.mapWidth(), g.height)
}

// renderTerrain paints one pixel per tile.
func renderTerrain(m *terrain.Map) *ebiten.Image {
	w, h := m.Bounds()
	pix := make([]byte, w*h*4)
	for y := range h {
		for x := range w {
			c := tileColors[m.At(x, y)]
			i := (y*w + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
		}
	}
	img := ebiten.NewImage(w, h)
	img.WritePixels(pix)
	return img
}

func cellColor(c sim.Cell) color.RGBA {
	return cellPalette[(c.X*7+c.Y*3)%len(cellPalette)]
}

func (g *Game) drawCellTint(screen *ebiten.Image) {
	grid := g.world.Grid()
	cols, rows := grid.Dims()
	size := float64(grid.CellSize())
	s := float32(size * g.scale())
	for cy := range rows {
		for cx := range cols {
			c := sim.Cell{X: cx, Y: cy}
			if grid.Count(c) == 0 {
				continue
			}
			tint := cellColor(c)
			tint.A = 50
			x, y := g.toScreen(sim.V(float64(cx)*size, float64(cy)*size))
			vector.FillRect(screen, x, y, s, s, tint, false)
		}
	}
}

func (g *Game) drawGridLines(screen *ebiten.Image) {
	grid := g.world.Grid()
	cols, rows := grid.Dims()
	size := float64(grid.CellSize())
	for cx := 0; cx <= cols; cx++ {
		x0, y0 := g.toScreen(sim.V(float64(cx)*size, 0))
		x1, y1 := g.toScreen(sim.V(float64(cx)*size, float64(rows)*size))
		vector.StrokeLine(screen, x0, y0, x1, y1, 1, gridCol, false)
	}
	for cy := 0; cy <= rows; cy++ {
		x0, y0 := g.toScreen(sim.V(0, float64(cy)*size))
		x1, y1 := g.toScreen(sim.V(float64(cols)*size, float64(cy)*size))
		vector.StrokeLine(screen, x0, y0, x1, y1, 1, gridCol, false)
	}
}

func (g *Game) drawAgents(screen *ebiten.Image) {
	dot := float32(max(2, g.scale()))
	g.world.Each(func(a *sim.Agent) {
		x, y := g.toScreen(a.Position())
		col := followerCol
		if g.tintCells {
			col = cellColor(a.Cell())
		}
		if a.Role() == sim.RoleLeader && g.showLeaders {
			g.drawPath(screen, a)
			vector.FillRect(screen, x-dot, y-dot, 2*dot, 2*dot, leaderCol, false)
			return
		}
		vector.FillRect(screen, x-dot/2, y-dot/2, dot, dot, col, false)
		if a.Handle() == g.follow {
			vector.StrokeCircle(screen, x, y, 3*dot, 1, destCol, false)
		}
	})
}

func (g *Game) drawPath(screen *ebiten.Image, a *sim.Agent) {
	px, py := g.toScreen(a.Position())
	for _, wp := range a.Path() {
		x, y := g.toScreen(wp)
		vector.StrokeLine(screen, px, py, x, y, 1, pathCol, false)
		px, py = x, y
	}
}

func (g *Game) hudLines() []string {
	var leaders, followers int
	g.world.Each(func(a *sim.Agent) {
		if a.Role() == sim.RoleLeader {
			leaders++
		} else {
			followers++
		}
	})
	st := g.world.Stats()
	state := fmt.Sprintf("x%s", humanize.FtoaWithDigits(speedSteps[g.speedIdx], 2))
	if g.paused {
		state = "PAUSED"
	}
	lines := []string{
		fmt.Sprintf("T=%s  %s  clock %s", humanize.Comma(int64(g.world.TickCount())), state, g.world.Clock().Truncate(1e8)),
		fmt.Sprintf("agents %s  leaders %d  followers %s",
			humanize.Comma(int64(leaders+followers)), leaders, humanize.Comma(int64(followers))),
		fmt.Sprintf("arrived %s  unreachable %s",
			humanize.Comma(st.Arrived), humanize.Comma(st.Unreachable)),
		fmt.Sprintf("plans fresh %s  cached %s  hit %.0f%%  routes %d",
			humanize.Comma(st.FreshPlans), humanize.Comma(st.CacheHits), 100*st.CacheHitRate(), g.world.Cache().Total()),
		"P pause  R reset  N follow  C copy  ,/. speed",
		"G cells  K grid  L leaders  H hud  click dest",
	}
	if g.statusTimer > 0 {
		lines = append(lines, "> "+g.status)
	}
	return lines
}

func (g *Game) drawHUD(screen *ebiten.Image) {
	lines := g.hudLines()
	face := basicfont.Face7x13
	const lineH, pad = 15, 6
	wide := 0
	for _, l := range lines {
		wide = max(wide, len(l))
	}
	w := float32(wide*7 + 2*pad)
	h := float32(len(lines)*lineH + 2*pad)
	vector.FillRect(screen, 8, 8, w, h, hudBg, false)
	vector.StrokeRect(screen, 8, 8, w, h, 1, color.RGBA{R: 70, G: 80, B: 90, A: 255}, false)
	for i, l := range lines {
		text.Draw(screen, l, face, 8+pad, 8+pad+11+i*lineH, hudText)
	}
}

// Layout reports the fixed window size.
func (g *Game) Layout(_, _ int) (int, int) {
	return g.width, g.height
}
