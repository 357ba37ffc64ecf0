package terrain

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds island generation parameters. Distances are in tiles.
type GenConfig struct {
	Width, Height int
	Seed          int64 // 0 = random

	// Noise layers: a broad continent layer plus two detail layers.
	ContinentScale float64
	DetailScale    float64
	FineScale      float64
	TreeScale      float64

	IslandWidth  float64 // radius of the raised central island
	PathWidth    float64 // half-width of the raised cross through the centre
	PathHeight   float64
	BorderWidth  float64 // raised land strip along the map edges
	BorderHeight float64

	SandLevel     float64 // altitude below which land is beach
	TreeLevel     float64 // tree noise above which grass becomes forest
	CliffGradient float64 // local slope that turns any land into cliff
	HighLevel     float64 // altitude above which HighGradient applies instead
	HighGradient  float64
}

// DefaultGenConfig returns the generator tuning used by the simulation.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:  640,
		Height: 360,

		ContinentScale: 64,
		DetailScale:    16,
		FineScale:      8,
		TreeScale:      8,

		IslandWidth:  40,
		PathWidth:    40,
		PathHeight:   1.5,
		BorderWidth:  50,
		BorderHeight: 3,

		SandLevel:     0.1,
		TreeLevel:     0.1,
		CliffGradient: 0.27,
		HighLevel:     0.4,
		HighGradient:  0.15,
	}
}

// Generate builds an island map: layered simplex noise squashed through tanh,
// then raised into land around the centre, along a cross of paths through
// the centre and along the map border so agents can spawn at the edges and
// still reach the middle.
func Generate(cfg GenConfig) (*Map, error) {
	m, err := New(cfg.Width, cfg.Height, Water)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63() // #nosec G404 -- map seed
	}

	continent := opensimplex.New(seed)
	detail := opensimplex.New(seed + 1)
	fine := opensimplex.New(seed + 2)
	trees := opensimplex.New(seed + 3)

	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			fx, fy := float64(x), float64(y)
			local := (detail.Eval2(fx/cfg.DetailScale, fy/cfg.DetailScale) +
				1.25*fine.Eval2(fx/cfg.FineScale, fy/cfg.FineScale)) / 2.25
			base := octaveNoise(continent, fx, fy, 3, 1/cfg.ContinentScale, 0.5)
			h := math.Tanh(4 * (base + 0.2*local))
			m.heights[y*m.width+x] = cfg.raise(h, fx, fy)
		}
	}

	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			tree := trees.Eval2(float64(x)/cfg.TreeScale, float64(y)/cfg.TreeScale)
			m.tiles[y*m.width+x] = cfg.classify(m, x, y, tree)
		}
	}
	return m, nil
}

// raise lifts h by the strongest of the island, path and border shapes.
func (cfg GenConfig) raise(h, x, y float64) float64 {
	cx, cy := float64(cfg.Width/2), float64(cfg.Height/2)

	d2 := (x-cx)*(x-cx) + (y-cy)*(y-cy)
	alt := math.Tanh(4 * (math.Exp(-d2/(cfg.IslandWidth*cfg.IslandWidth)) - 0.5))

	var path float64
	if dx := math.Abs(x - cx); dx < cfg.PathWidth {
		path += cfg.PathHeight - cfg.PathHeight/cfg.PathWidth*dx
	}
	if dy := math.Abs(y - cy); dy < cfg.PathWidth {
		path += cfg.PathHeight - cfg.PathHeight/cfg.PathWidth*dy
	}

	edge := math.Min(math.Min(x, y), math.Min(float64(cfg.Width-1)-x, float64(cfg.Height-1)-y))
	border := -1.0
	if edge < cfg.BorderWidth {
		border = cfg.BorderHeight * (cfg.BorderWidth - edge) / cfg.BorderWidth
	}

	alt = math.Max(math.Max(alt, path), border)
	if alt <= 0 {
		return h
	}
	return math.Min(math.Max(h+alt, -1), 1)
}

func (cfg GenConfig) classify(m *Map, x, y int, tree float64) Tile {
	h := m.heights[y*m.width+x]
	g := gradient(m, x, y)
	switch {
	case h > 0 && g > cfg.CliffGradient, h > cfg.HighLevel && g > cfg.HighGradient:
		return Cliff
	case h < 0:
		return Water
	case h < cfg.SandLevel:
		return Sand
	case tree > cfg.TreeLevel:
		return Forest
	default:
		return Grass
	}
}

// gradient is the summed absolute altitude change to the four neighbours.
// Border tiles report a flat gradient.
func gradient(m *Map, x, y int) float64 {
	if x == 0 || y == 0 || x == m.width-1 || y == m.height-1 {
		return 0
	}
	h := m.heights[y*m.width+x]
	return math.Abs(m.heights[(y-1)*m.width+x]-h) +
		math.Abs(m.heights[(y+1)*m.width+x]-h) +
		math.Abs(m.heights[y*m.width+x-1]-h) +
		math.Abs(m.heights[y*m.width+x+1]-h)
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
