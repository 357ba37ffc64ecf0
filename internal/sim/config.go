package sim

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Config holds every tunable of the agent engine. Distances are in tiles,
// speeds in tiles per second.
type Config struct {
	// Spatial partition.
	CellSize int // side of a spatial cell in tiles

	// Dynamic leader allocation.
	DensityMin        int           // promote when fewer leaders than this are nearby
	DensityMax        int           // demote when more leaders than this are nearby
	MinLeaderLifespan time.Duration // a leader keeps its role at least this long

	// Leader movement and planning.
	LeaderSpeed          float64
	WaypointTolerance    float64 // distance at which a waypoint counts as reached
	PathCacheMax         int     // routes kept per spatial cell
	IntraCellSearchRatio float64 // fraction of CellSize searched to reach a cached route
	MaxSearchDistance    int     // Chebyshev bound on fresh path searches
	MaxExpansions        int     // node expansion bound per search, 0 = unbounded

	// Follower pursuit.
	FollowerSpeed        float64
	FollowerAcceleration float64
	LeaderAlignment      float64 // fraction of the leader's velocity blended in per second
	LeaderFollowTimeout  time.Duration
	ChargeRange          float64 // Manhattan distance from the destination where followers charge
	FlockWithoutLeader   bool    // run flocking rules when no leader is in range instead of idling

	// Flocking rules.
	ViewDistance      float64
	ViewAngle         float64 // half-angle in radians
	ViewAngleSameCell bool    // apply the view-angle filter inside the agent's own cell too
	Coherence         float64
	Separation        float64
	OptimalDistance   float64
	Alignment         float64
	WallCheckRange    int
	WallAvoidance     float64
	ZeroVelocitySeed  float64
	Jitter            float64 // max random rotation per tick, radians
	StallThreshold    float64 // squared speed below which StallBoost applies
	StallBoost        float64

	// Lifecycle.
	DestroyRadius float64
}

// DefaultConfig returns the tuning the simulation ships with.
func DefaultConfig() Config {
	return Config{
		CellSize: 48,

		DensityMin:        1,
		DensityMax:        2,
		MinLeaderLifespan: 3 * time.Second,

		LeaderSpeed:          20,
		WaypointTolerance:    0.5,
		PathCacheMax:         5,
		IntraCellSearchRatio: 0.4,
		MaxSearchDistance:    1000,
		MaxExpansions:        200_000,

		FollowerSpeed:        22,
		FollowerAcceleration: 30,
		LeaderAlignment:      0.2,
		LeaderFollowTimeout:  3 * time.Second,
		ChargeRange:          50,
		FlockWithoutLeader:   false,

		ViewDistance:      48,
		ViewAngle:         1.5,
		ViewAngleSameCell: false,
		Coherence:         0.03,
		Separation:        0.1,
		OptimalDistance:   6,
		Alignment:         0,
		WallCheckRange:    4,
		WallAvoidance:     1,
		ZeroVelocitySeed:  0.1,
		Jitter:            0.05,
		StallThreshold:    0.5,
		StallBoost:        1.2,

		DestroyRadius: 10,
	}
}

var errConfig = errors.New("invalid config")

// Validate reports the first inconsistency found in c.
func (c Config) Validate() error {
	switch {
	case c.CellSize <= 0:
		return fmt.Errorf("%w: cell size %d must be positive", errConfig, c.CellSize)
	case c.DensityMin >= c.DensityMax:
		return fmt.Errorf("%w: density min %d must be below density max %d", errConfig, c.DensityMin, c.DensityMax)
	case c.MinLeaderLifespan < 0:
		return fmt.Errorf("%w: negative leader lifespan", errConfig)
	case c.LeaderSpeed <= 0 || c.FollowerSpeed <= 0:
		return fmt.Errorf("%w: speeds must be positive", errConfig)
	case c.WaypointTolerance <= 0:
		return fmt.Errorf("%w: waypoint tolerance must be positive", errConfig)
	case c.PathCacheMax < 0:
		return fmt.Errorf("%w: negative path cache capacity", errConfig)
	case c.MaxSearchDistance <= 0:
		return fmt.Errorf("%w: search distance must be positive", errConfig)
	case c.OptimalDistance <= 0:
		return fmt.Errorf("%w: optimal distance must be positive", errConfig)
	case c.StallThreshold*c.StallBoost*c.StallBoost >= c.FollowerSpeed*c.FollowerSpeed:
		return fmt.Errorf("%w: stall boost would exceed follower speed", errConfig)
	case math.IsNaN(c.ViewAngle) || c.ViewAngle < 0:
		return fmt.Errorf("%w: view angle %v", errConfig, c.ViewAngle)
	case c.ViewDistance <= 0 || c.ViewDistance > float64(c.CellSize):
		return fmt.Errorf("%w: view distance %v must be in (0, cell size %d]", errConfig, c.ViewDistance, c.CellSize)
	case !(c.DestroyRadius >= math.Sqrt2):
		// Below this a leader can stand on the destination tile without
		// arriving, and every plan from there is empty.
		return fmt.Errorf("%w: destroy radius %v must cover the destination tile", errConfig, c.DestroyRadius)
	}
	return nil
}

// intraCellDistance is the search bound used to join a cached route.
func (c Config) intraCellDistance() int {
	d := int(c.IntraCellSearchRatio * float64(c.CellSize))
	if d < 1 {
		d = 1
	}
	return d
}
