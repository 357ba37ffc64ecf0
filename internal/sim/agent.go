package sim

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"
)

// Role is the tag that selects an agent's behaviour each tick.
type Role uint8

const (
	RoleFollower Role = iota // flocks and pursues the nearest leader
	RoleLeader               // plans and walks a route to the destination
)

func (r Role) String() string {
	switch r {
	case RoleFollower:
		return "follower"
	case RoleLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// Handle identifies an agent slot in the world. The generation changes every
// time a slot is reused, so a handle to a destroyed agent never resolves to
// its successor. The zero Handle is never issued.
type Handle struct {
	Index uint32
	Gen   uint32
}

// Valid reports whether h was issued by a world.
func (h Handle) Valid() bool { return h.Gen != 0 }

func (h Handle) String() string { return fmt.Sprintf("#%d.%d", h.Index, h.Gen) }

// Agent is one boid. Position, velocity and role may be read from any
// goroutine; everything else belongs to the goroutine stepping the agent.
type Agent struct {
	id Handle

	mu   sync.RWMutex // guards pos, vel, role
	pos  Vec
	vel  Vec
	role Role

	cell       Cell
	path       []Vec // waypoint queue, front is next
	leader     Handle
	boundAt    time.Duration // clock when leader was acquired
	promotedAt time.Duration
	rng        *rand.Rand
}

func newAgent(id Handle, pos Vec, cell Cell, seed int64) *Agent {
	return &Agent{
		id:   id,
		pos:  pos,
		cell: cell,
		rng:  rand.New(rand.NewSource(seed)), // #nosec G404 -- simulation jitter
	}
}

// Handle returns the agent's identity.
func (a *Agent) Handle() Handle { return a.id }

// Position returns the agent's current position.
func (a *Agent) Position() Vec {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pos
}

// Velocity returns the agent's current velocity in tiles per second.
func (a *Agent) Velocity() Vec {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.vel
}

// Role returns the agent's current role.
func (a *Agent) Role() Role {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.role
}

// Cell returns the spatial cell the agent is indexed under. Only meaningful
// between ticks.
func (a *Agent) Cell() Cell { return a.cell }

// Path returns a copy of the remaining waypoints. Only meaningful between ticks.
func (a *Agent) Path() []Vec { return slices.Clone(a.path) }

// Leader returns the handle of the leader the agent last bound to.
func (a *Agent) Leader() Handle { return a.leader }

func (a *Agent) kinematics() (Vec, Vec, Role) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pos, a.vel, a.role
}

func (a *Agent) setKinematics(pos, vel Vec) {
	a.mu.Lock()
	a.pos, a.vel = pos, vel
	a.mu.Unlock()
}

func (a *Agent) setRole(r Role, vel Vec) {
	a.mu.Lock()
	a.role, a.vel = r, vel
	a.mu.Unlock()
}
