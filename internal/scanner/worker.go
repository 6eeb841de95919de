package scanner

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Prober performs one probe against one absolute URL.
type Prober interface {
	Probe(ctx context.Context, targetURL string) Outcome
}

// WorkerConfig holds options for the worker pool.
type WorkerConfig struct {
	Threads int
	Pacer   *Pacer
}

// NewQueue returns a closed channel pre-filled with every unit. A receive
// hands each unit to exactly one worker.
func NewQueue(units []TargetUnit) <-chan TargetUnit {
	q := make(chan TargetUnit, len(units))
	for _, u := range units {
		q <- u
	}
	close(q)
	return q
}

// RunWorkerPool drains queue with cfg.Threads workers and calls record for
// every probe that ran to completion. Workers check stop before popping,
// after popping and after pacing, so a stop request halts new probes quickly.
// Probes already in flight use ctx and are not interrupted by stop; they are
// only aborted when ctx itself is cancelled, in which case the context error
// is returned and the aborted probe is not recorded.
func RunWorkerPool(
	ctx context.Context,
	stop context.Context,
	prober Prober,
	queue <-chan TargetUnit,
	cfg WorkerConfig,
	record func(TargetUnit, Outcome),
) error {
	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}

	var g errgroup.Group
	for i := 0; i < threads; i++ {
		lim := cfg.Pacer.ForWorker()
		g.Go(func() error {
			for {
				if stop.Err() != nil {
					return nil
				}

				var unit TargetUnit
				select {
				case u, ok := <-queue:
					if !ok {
						return nil
					}
					unit = u
				case <-stop.Done():
					return nil
				}

				if stop.Err() != nil {
					return nil
				}
				if err := wait(stop, lim); err != nil {
					return nil
				}
				if stop.Err() != nil {
					return nil
				}

				out := prober.Probe(ctx, unit.URL)
				if out.Kind == OutcomeFailed && ctx.Err() != nil {
					return ctx.Err()
				}
				record(unit, out)
			}
		})
	}
	return g.Wait()
}
