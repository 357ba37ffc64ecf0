package sim

import "sync/atomic"

// counters are the running totals a world keeps. They are atomic because
// parallel ticks bump them from many goroutines.
type counters struct {
	spawned        atomic.Int64
	arrived        atomic.Int64
	unreachable    atomic.Int64
	promotions     atomic.Int64
	demotions      atomic.Int64
	cacheHits      atomic.Int64
	cacheEvictions atomic.Int64
	freshPlans     atomic.Int64
	noPath         atomic.Int64
	staleRemovals  atomic.Int64
}

// Stats is a point-in-time copy of a world's counters.
type Stats struct {
	Spawned        int64
	Arrived        int64 // agents destroyed inside the destination radius
	Unreachable    int64 // leaders destroyed because no route existed
	Promotions     int64
	Demotions      int64
	CacheHits      int64
	CacheEvictions int64
	FreshPlans     int64
	NoPath         int64
	StaleRemovals  int64
}

// Stats returns the current counter totals.
func (w *World) Stats() Stats {
	return Stats{
		Spawned:        w.stats.spawned.Load(),
		Arrived:        w.stats.arrived.Load(),
		Unreachable:    w.stats.unreachable.Load(),
		Promotions:     w.stats.promotions.Load(),
		Demotions:      w.stats.demotions.Load(),
		CacheHits:      w.stats.cacheHits.Load(),
		CacheEvictions: w.stats.cacheEvictions.Load(),
		FreshPlans:     w.stats.freshPlans.Load(),
		NoPath:         w.stats.noPath.Load(),
		StaleRemovals:  w.stats.staleRemovals.Load(),
	}
}

// CacheHitRate is the share of plans served from the path cache.
func (s Stats) CacheHitRate() float64 {
	total := s.CacheHits + s.FreshPlans
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// Sub returns the counter growth from prev to s.
func (s Stats) Sub(prev Stats) Stats {
	return Stats{
		Spawned:        s.Spawned - prev.Spawned,
		Arrived:        s.Arrived - prev.Arrived,
		Unreachable:    s.Unreachable - prev.Unreachable,
		Promotions:     s.Promotions - prev.Promotions,
		Demotions:      s.Demotions - prev.Demotions,
		CacheHits:      s.CacheHits - prev.CacheHits,
		CacheEvictions: s.CacheEvictions - prev.CacheEvictions,
		FreshPlans:     s.FreshPlans - prev.FreshPlans,
		NoPath:         s.NoPath - prev.NoPath,
		StaleRemovals:  s.StaleRemovals - prev.StaleRemovals,
	}
}
