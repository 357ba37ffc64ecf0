package sim

import "math"

// scratch holds per-goroutine buffers reused across agent steps.
type scratch struct {
	cells   []Cell
	members []Handle
	queue   leaderQueue
}

func newScratch() *scratch {
	return &scratch{
		cells:   make([]Cell, 0, 9),
		members: make([]Handle, 0, 64),
	}
}

// flock applies coherence, separation and alignment against every agent in
// the 3×3 window around a. Agents outside ViewDistance are ignored, and so are
// agents behind a (outside the view half-angle) unless they share a's cell.
func (w *World) flock(a *Agent, vel Vec, s *scratch) Vec {
	cfg := &w.cfg
	pos := a.pos
	viewSq := cfg.ViewDistance * cfg.ViewDistance

	s.cells = w.grid.Neighbors(a.cell, s.cells[:0])
	for _, c := range s.cells {
		filterAngle := c != a.cell || cfg.ViewAngleSameCell
		s.members = w.grid.AppendMembers(c, s.members[:0])
		for _, h := range s.members {
			if h == a.id {
				continue
			}
			other, ok := w.resolve(h)
			if !ok {
				continue
			}
			opos, ovel, _ := other.kinematics()
			delta := opos.Sub(pos)
			distSq := delta.LenSq()
			if distSq > viewSq {
				continue
			}
			dist := math.Sqrt(distSq)

			bearing := delta.Unit()
			if bearing.IsZero() {
				// Stacked agents: split them along a fixed diagonal by handle order.
				bearing = Vec{X: math.Sqrt2 / 2, Y: math.Sqrt2 / 2}
				if a.id.Index > h.Index {
					bearing = bearing.Scale(-1)
				}
			}
			if filterAngle && !inView(vel, bearing, cfg.ViewAngle) {
				continue
			}

			// Coherence
			vel = vel.Add(bearing.Scale(cfg.Coherence))

			// Separation: strongest when touching, zero at the optimal distance.
			if dist < cfg.OptimalDistance {
				push := cfg.Separation - (cfg.Separation/cfg.OptimalDistance)*dist
				vel = vel.Sub(bearing.Scale(push))
			}

			// Alignment: weakest at the optimal distance.
			if cfg.Alignment != 0 {
				k := dist/cfg.OptimalDistance - 1
				wt := math.Min(math.Max(cfg.Alignment*k*k, 0), 1)
				vel = vel.Scale(1 - wt).Add(ovel.Scale(wt))
			}
		}
	}
	return vel
}

// inView reports whether bearing lies within half radians of the heading
// given by vel. A stationary agent sees in every direction.
func inView(vel, bearing Vec, half float64) bool {
	heading := vel.Unit()
	if heading.IsZero() {
		return true
	}
	cos := math.Min(math.Max(bearing.Dot(heading), -1), 1)
	return math.Acos(cos) <= half
}

// avoidWalls pushes vel away from every blocked tile in the square scan
// around pos. Tiles off the map are left to the position clamp.
func (w *World) avoidWalls(pos, vel Vec) Vec {
	r := w.cfg.WallCheckRange
	for dx := -r / 2; dx < r/2; dx++ {
		for dy := -r / 2; dy < r/2; dy++ {
			at := pos.Add(Vec{X: float64(dx), Y: float64(dy)})
			tx, ty := at.Tile()
			if tx < 0 || ty < 0 || tx >= w.width || ty >= w.height {
				continue
			}
			if w.terrain.Walkable(tx, ty) {
				continue
			}
			push := pos.Sub(at)
			if push.LenSq() > 0.1 {
				vel = vel.Add(push.Unit().Scale(w.cfg.WallAvoidance))
			}
		}
	}
	return vel
}

// settle finishes a steered velocity: unfreeze, jitter, then bound the speed.
func (w *World) settle(a *Agent, vel Vec, limit float64) Vec {
	cfg := &w.cfg
	if vel.IsZero() {
		vel = Vec{X: cfg.ZeroVelocitySeed, Y: cfg.ZeroVelocitySeed}
	}
	if cfg.Jitter > 0 {
		vel = vel.Rotate((a.rng.Float64()*2 - 1) * cfg.Jitter)
	}
	if vel.LenSq() > limit*limit {
		vel = clampSpeed(vel, limit)
	} else if vel.LenSq() < cfg.StallThreshold {
		vel = vel.Scale(cfg.StallBoost)
	}
	return vel
}
