package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Status is the lifecycle state of a scan session.
type Status int32

const (
	StatusIdle Status = iota
	StatusScanning
	StatusCompleted
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusScanning:
		return "scanning"
	case StatusCompleted:
		return "completed"
	case StatusStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped
}

// MarshalText makes Status render as its name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Observer is notified of every recorded probe. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveProbe(Outcome)
}

// SessionConfig holds everything a session needs to run.
type SessionConfig struct {
	ID            string
	BaseURL       string
	Units         []TargetUnit
	Threads       int
	Pacer         *Pacer
	Prober        Prober
	RecentResults int
	Observer      Observer
	Logger        zerolog.Logger
}

// Snapshot is a point-in-time view of a session. Fields are read
// independently; completed and status never regress between snapshots.
type Snapshot struct {
	ID          string
	BaseURL     string
	Status      Status
	Completed   int64
	Total       int64
	ResultCount int
	Recent      []Finding
	Threads     int
	CreatedAt   time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Progress returns completion as a percentage.
func (s Snapshot) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total) * 100
}

// Session owns the queue, worker pool, findings, counters and cancellation
// flag of one scan run.
type Session struct {
	id       string
	baseURL  string
	units    []TargetUnit
	threads  int
	pacer    *Pacer
	prober   Prober
	recent   int
	observer Observer
	log      zerolog.Logger

	status    atomic.Int32
	completed atomic.Int64
	total     int64

	mu       sync.Mutex
	findings []Finding

	createdAt  time.Time
	startedAt  atomic.Int64
	finishedAt atomic.Int64

	// stopCtx is the set-once cancellation flag.
	stopCtx context.Context
	stopFn  context.CancelFunc
	done    chan struct{}
}

// NewSession creates an idle session. Call Start to begin probing.
func NewSession(cfg SessionConfig) *Session {
	recent := cfg.RecentResults
	if recent <= 0 {
		recent = 10
	}
	stopCtx, stopFn := context.WithCancel(context.Background())
	return &Session{
		id:        cfg.ID,
		baseURL:   cfg.BaseURL,
		units:     cfg.Units,
		threads:   cfg.Threads,
		pacer:     cfg.Pacer,
		prober:    cfg.Prober,
		recent:    recent,
		observer:  cfg.Observer,
		log:       cfg.Logger.With().Str("session_id", cfg.ID).Logger(),
		total:     int64(len(cfg.Units)),
		createdAt: time.Now(),
		stopCtx:   stopCtx,
		stopFn:    stopFn,
		done:      make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Status returns the current lifecycle state.
func (s *Session) Status() Status { return Status(s.status.Load()) }

// Done is closed once every worker has exited and the status is terminal.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start moves the session from idle to scanning and launches the worker pool
// in the background. ctx bounds the in-flight HTTP requests; cancelling it
// aborts them and ends the session as stopped. Calling Start twice is a no-op.
func (s *Session) Start(ctx context.Context) {
	if !s.status.CompareAndSwap(int32(StatusIdle), int32(StatusScanning)) {
		return
	}
	s.startedAt.Store(time.Now().UnixNano())
	s.log.Info().
		Str("target", s.baseURL).
		Int64("total", s.total).
		Int("threads", s.threads).
		Dur("delay", s.pacer.Delay()).
		Msg("scan started")

	go s.run(ctx)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	err := RunWorkerPool(ctx, s.stopCtx, s.prober, NewQueue(s.units), WorkerConfig{
		Threads: s.threads,
		Pacer:   s.pacer,
	}, s.record)
	if err != nil {
		s.log.Warn().Err(err).Msg("scan aborted")
		s.stopFn()
	}

	if s.stopCtx.Err() != nil {
		s.status.CompareAndSwap(int32(StatusScanning), int32(StatusStopped))
	} else {
		s.status.CompareAndSwap(int32(StatusScanning), int32(StatusCompleted))
	}
	s.finishedAt.Store(time.Now().UnixNano())

	if c, ok := s.prober.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}

	snap := s.Snapshot()
	s.log.Info().
		Str("status", snap.Status.String()).
		Int64("completed", snap.Completed).
		Int64("total", snap.Total).
		Int("found", snap.ResultCount).
		Msg("scan finished")
}

func (s *Session) record(unit TargetUnit, out Outcome) {
	switch out.Kind {
	case OutcomeFound:
		s.mu.Lock()
		s.findings = append(s.findings, Finding{
			URL:        out.URL,
			Path:       unit.Path,
			StatusCode: out.StatusCode,
			Method:     out.Method,
			FoundAt:    out.FoundAt,
		})
		s.mu.Unlock()
		s.log.Debug().Str("url", out.URL).Int("status", out.StatusCode).Msg("found")
	case OutcomeFailed:
		s.log.Debug().Str("url", out.URL).Err(out.Err).Msg("probe failed")
	}
	s.completed.Add(1)

	if s.observer != nil {
		s.observer.ObserveProbe(out)
	}
}

// Stop sets the cancellation flag. Workers stop issuing new probes; probes
// already in flight finish on their own. It is idempotent and has no effect
// on a session that already completed. It reports whether this call moved
// the session to stopped.
func (s *Session) Stop() bool {
	s.stopFn()
	return s.status.CompareAndSwap(int32(StatusScanning), int32(StatusStopped))
}

// Stopped reports whether cancellation has been requested.
func (s *Session) Stopped() bool {
	return s.stopCtx.Err() != nil
}

// Snapshot returns the current status view with the most recent findings.
func (s *Session) Snapshot() Snapshot {
	// Status is read before the counter so a terminal "completed" status is
	// always paired with the final count.
	status := s.Status()
	completed := s.completed.Load()

	s.mu.Lock()
	count := len(s.findings)
	from := count - s.recent
	if from < 0 {
		from = 0
	}
	recent := make([]Finding, count-from)
	copy(recent, s.findings[from:])
	s.mu.Unlock()

	return Snapshot{
		ID:          s.id,
		BaseURL:     s.baseURL,
		Status:      status,
		Completed:   completed,
		Total:       s.total,
		ResultCount: count,
		Recent:      recent,
		Threads:     s.threads,
		CreatedAt:   s.createdAt,
		StartedAt:   unixTime(s.startedAt.Load()),
		FinishedAt:  unixTime(s.finishedAt.Load()),
	}
}

// Results returns a copy of every finding in discovery order.
func (s *Session) Results() []Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Finding, len(s.findings))
	copy(out, s.findings)
	return out
}

func unixTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
