package sim

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// TickParallel advances every live agent once across workers goroutines,
// then advances the clock. Agents are split into contiguous chunks of the
// handle snapshot; shared indices are safe through their per-cell locks.
// workers <= 0 uses GOMAXPROCS. ctx is only checked between agents, so a
// cancelled tick leaves some agents unstepped and does not advance the clock.
func (w *World) TickParallel(ctx context.Context, dt float64, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	w.order = w.appendHandles(w.order[:0])
	n := len(w.order)
	if n == 0 {
		w.Advance(dt)
		return nil
	}
	workers = min(workers, n)
	chunk := (n + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < n; start += chunk {
		part := w.order[start:min(start+chunk, n)]
		g.Go(func() error {
			s := newScratch()
			for _, h := range part {
				if err := ctx.Err(); err != nil {
					return err
				}
				w.stepHandle(h, dt, s)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	w.Advance(dt)
	return nil
}
