package sim

import "math"

// Vec is a 2D vector in world units (one unit = one terrain tile).
type Vec struct {
	X, Y float64
}

func V(x, y float64) Vec { return Vec{X: x, Y: y} }

func (v Vec) Add(o Vec) Vec           { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec           { return Vec{v.X - o.X, v.Y - o.Y} }
func (v Vec) Scale(s float64) Vec     { return Vec{v.X * s, v.Y * s} }
func (v Vec) Dot(o Vec) float64       { return v.X*o.X + v.Y*o.Y }
func (v Vec) LenSq() float64          { return v.X*v.X + v.Y*v.Y }
func (v Vec) Len() float64            { return math.Sqrt(v.LenSq()) }
func (v Vec) IsZero() bool            { return v.X == 0 && v.Y == 0 }
func (v Vec) DistSq(o Vec) float64    { return v.Sub(o).LenSq() }
func (v Vec) Manhattan(o Vec) float64 { return math.Abs(v.X-o.X) + math.Abs(v.Y-o.Y) }

// Unit returns v scaled to length 1, or the zero vector when v has no length.
func (v Vec) Unit() Vec {
	l := v.Len()
	if l < 1e-12 {
		return Vec{}
	}
	return Vec{v.X / l, v.Y / l}
}

// Rotate turns v by angle radians (counter-clockwise in a y-up frame).
func (v Vec) Rotate(angle float64) Vec {
	s, c := math.Sincos(angle)
	return Vec{v.X*c - v.Y*s, v.X*s + v.Y*c}
}

// Finite reports whether both components are real numbers.
func (v Vec) Finite() bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// Tile returns the terrain tile containing v.
func (v Vec) Tile() (int, int) {
	return int(math.Floor(v.X)), int(math.Floor(v.Y))
}

// clampSpeed rescales v down to limit when it exceeds it.
func clampSpeed(v Vec, limit float64) Vec {
	if v.LenSq() > limit*limit {
		return v.Unit().Scale(limit)
	}
	return v
}
