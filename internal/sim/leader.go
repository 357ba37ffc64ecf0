package sim

import (
	"fmt"
)

// electRole applies dynamic leader allocation at the start of an agent's
// tick. Followers promote when too few leaders are nearby; leaders demote when
// too many are nearby, but only after holding the role for the minimum
// lifespan, which keeps agents on the density threshold from flapping.
func (w *World) electRole(a *Agent) {
	nearby := w.leaders.CountNear(a.cell, a.id)
	switch {
	case a.role == RoleFollower && nearby < w.cfg.DensityMin:
		w.promote(a, nearby)
	case a.role == RoleLeader && nearby > w.cfg.DensityMax &&
		w.clock-a.promotedAt >= w.cfg.MinLeaderLifespan:
		w.demote(a, nearby)
	}
}

func (w *World) promote(a *Agent, nearby int) {
	a.setRole(RoleLeader, Vec{})
	a.promotedAt = w.clock
	a.leader = Handle{}
	a.path = nil
	w.leaders.Insert(a.id, a.cell)
	w.stats.promotions.Add(1)
	w.events.Add(w.tick, a.id.String(), CatRole, "promote", fmt.Sprintf("leaders=%d", nearby), float64(nearby))
}

func (w *World) demote(a *Agent, nearby int) {
	a.setRole(RoleFollower, a.vel)
	// A follower never continues a leader's route.
	a.path = nil
	if !w.leaders.Remove(a.id, a.cell) {
		w.staleRemove(a, "leaders", a.cell)
	}
	w.stats.demotions.Add(1)
	w.events.Add(w.tick, a.id.String(), CatRole, "demote", fmt.Sprintf("leaders=%d", nearby), float64(nearby))
}

// leaderStep walks the leader along its route, planning one first when it has
// none. It returns false when the leader could not plan and was destroyed.
func (w *World) leaderStep(a *Agent, dt float64) bool {
	if len(a.path) == 0 {
		if !w.plan(a) {
			w.stats.unreachable.Add(1)
			w.destroy(a, "unreachable")
			return false
		}
		if len(a.path) == 0 {
			a.setKinematics(a.pos, Vec{})
			return true
		}
	}

	pos := a.pos
	next := a.path[0]
	tol := w.cfg.WaypointTolerance
	if pos.DistSq(next) < tol*tol {
		a.path = a.path[1:]
		a.setKinematics(pos, Vec{})
		return true
	}

	delta := next.Sub(pos)
	dist := delta.Len()
	dir := delta.Scale(1 / dist)
	stride := w.cfg.LeaderSpeed * dt
	if stride >= dist {
		pos = next
	} else {
		pos = pos.Add(dir.Scale(stride))
	}
	a.setKinematics(pos, dir.Scale(w.cfg.LeaderSpeed))
	return true
}

// plan gives a leader a route, preferring a cached route from its cell and
// falling back to a fresh search. It returns false when no route exists.
func (w *World) plan(a *Agent) bool {
	tx, ty := a.pos.Tile()

	path, evicted, ok := w.cache.Reuse(a.cell, w.walkableAt, func(route []Vec) ([]Vec, bool) {
		rx, ry := route[0].Tile()
		lead, err := w.intra.Find(tx, ty, rx, ry)
		if err != nil {
			return nil, false
		}
		// The search ends on the route's first tile; keep the route's own waypoint.
		if n := len(lead); n > 0 {
			lead = lead[:n-1]
		}
		return append(lead, route...), true
	})
	if evicted > 0 {
		w.stats.cacheEvictions.Add(int64(evicted))
		w.events.Add(w.tick, a.id.String(), CatPath, "cache_evict",
			fmt.Sprintf("cell (%d,%d) evicted=%d", a.cell.X, a.cell.Y, evicted), float64(evicted))
	}
	if ok {
		a.path = path
		w.stats.cacheHits.Add(1)
		w.events.Add(w.tick, a.id.String(), CatPath, "cache_hit", fmt.Sprintf("len=%d", len(path)), float64(len(path)))
		return true
	}

	w.stats.freshPlans.Add(1)
	path, err := w.pather.Find(tx, ty, w.destTile[0], w.destTile[1])
	if err != nil {
		w.stats.noPath.Add(1)
		w.events.Add(w.tick, a.id.String(), CatPath, "no_path", fmt.Sprintf("from (%d,%d)", tx, ty), 0)
		w.log.Debug("leader cannot reach destination", "agent", a.id.String(), "tile_x", tx, "tile_y", ty, "error", err)
		return false
	}
	a.path = path
	w.events.Add(w.tick, a.id.String(), CatPath, "fresh", fmt.Sprintf("len=%d", len(path)), float64(len(path)))
	if w.cache.Add(a.cell, path) {
		w.events.Add(w.tick, a.id.String(), CatPath, "cached", fmt.Sprintf("cell (%d,%d)", a.cell.X, a.cell.Y), 0)
	}
	return true
}
