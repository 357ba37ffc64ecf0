package sim

import (
	"container/heap"
	"math"
)

// leaderCandidate is a leader seen from a follower, ranked by Manhattan distance.
type leaderCandidate struct {
	h    Handle
	pos  Vec
	vel  Vec
	dist float64
}

// leaderQueue is a min-heap of leader candidates. Equal distances fall back to
// slot order so sequential runs bind deterministically.
type leaderQueue []leaderCandidate

func (q leaderQueue) Len() int { return len(q) }
func (q leaderQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].h.Index < q[j].h.Index
}
func (q leaderQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *leaderQueue) Push(x any)   { *q = append(*q, x.(leaderCandidate)) }
func (q *leaderQueue) Pop() any {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}

// followerStep moves a follower for one tick: charge the destination when it
// is close, otherwise flock after the bound leader.
func (w *World) followerStep(a *Agent, dt float64, s *scratch) {
	cfg := &w.cfg
	pos := a.pos

	if pos.Manhattan(w.dest) <= cfg.ChargeRange {
		vel := w.dest.Sub(pos).Unit().Scale(cfg.FollowerSpeed)
		a.setKinematics(pos.Add(vel.Scale(dt)), vel)
		return
	}

	lead, ok := w.currentLeader(a, s)
	if !ok && !cfg.FlockWithoutLeader {
		a.setKinematics(pos, Vec{})
		return
	}

	vel := w.flock(a, a.vel, s)
	if ok {
		vel = vel.Add(lead.pos.Sub(pos).Unit().Scale(cfg.FollowerAcceleration * dt))
		k := math.Min(cfg.LeaderAlignment*dt, 1)
		vel = vel.Scale(1 - k).Add(lead.vel.Scale(k))
	}
	vel = w.avoidWalls(pos, vel)
	vel = w.settle(a, vel, cfg.FollowerSpeed)
	a.setKinematics(pos.Add(vel.Scale(dt)), vel)
}

// currentLeader resolves the follower's bound leader, re-acquiring the nearest
// one in the 3×3 leader-index window when the binding is unset, dead, demoted
// or older than LeaderFollowTimeout.
func (w *World) currentLeader(a *Agent, s *scratch) (leaderCandidate, bool) {
	if a.leader.Valid() && w.clock-a.boundAt < w.cfg.LeaderFollowTimeout {
		if l, ok := w.resolve(a.leader); ok {
			lpos, lvel, role := l.kinematics()
			if role == RoleLeader {
				return leaderCandidate{h: a.leader, pos: lpos, vel: lvel, dist: lpos.Manhattan(a.pos)}, true
			}
		}
	}
	a.leader = Handle{}

	s.queue = s.queue[:0]
	s.cells = w.leaders.Neighbors(a.cell, s.cells[:0])
	for _, c := range s.cells {
		s.members = w.leaders.AppendMembers(c, s.members[:0])
		for _, h := range s.members {
			l, ok := w.resolve(h)
			if !ok {
				continue
			}
			lpos, lvel, role := l.kinematics()
			if role != RoleLeader {
				continue
			}
			s.queue = append(s.queue, leaderCandidate{h: h, pos: lpos, vel: lvel, dist: lpos.Manhattan(a.pos)})
		}
	}
	if len(s.queue) == 0 {
		return leaderCandidate{}, false
	}
	heap.Init(&s.queue)
	best := heap.Pop(&s.queue).(leaderCandidate)
	a.leader = best.h
	a.boundAt = w.clock
	return best, true
}
