package scanner

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/maxvaer/dirscan/internal/config"
)

// Pacer enforces a fixed delay between requests. With worker scope every
// worker gets its own spacing; with global scope all workers of a session
// share one.
type Pacer struct {
	delay  time.Duration
	global *rate.Limiter
}

// NewPacer creates a pacer. A zero delay disables pacing entirely.
func NewPacer(delay time.Duration, scope string) *Pacer {
	p := &Pacer{delay: delay}
	if delay > 0 && scope == config.DelayScopeGlobal {
		p.global = newLimiter(delay)
	}
	return p
}

// ForWorker returns the limiter a single worker should wait on, or nil when
// pacing is disabled.
func (p *Pacer) ForWorker() *rate.Limiter {
	if p == nil || p.delay <= 0 {
		return nil
	}
	if p.global != nil {
		return p.global
	}
	return newLimiter(p.delay)
}

// Delay returns the configured spacing.
func (p *Pacer) Delay() time.Duration {
	if p == nil {
		return 0
	}
	return p.delay
}

func newLimiter(delay time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(delay), 1)
}

// wait blocks on lim until the next request may go out or ctx is done.
func wait(ctx context.Context, lim *rate.Limiter) error {
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}
