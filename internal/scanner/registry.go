package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/maxvaer/dirscan/internal/config"
)

// Request describes one scan to start.
type Request struct {
	BaseURL    string
	Paths      []string
	Extensions []string
	Threads    int
}

// LifecycleObserver receives session level events on top of per-probe ones.
type LifecycleObserver interface {
	Observer
	SessionStarted()
	SessionFinished(Snapshot)
}

// FinishFunc is called once for every session that reaches a terminal state.
type FinishFunc func(ctx context.Context, snap Snapshot, findings []Finding)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Options supplies the probe settings shared by every session.
	Options         *config.Options
	TTL             time.Duration
	JanitorInterval time.Duration
	MaxSessions     int
	RecentResults   int
	Observer        LifecycleObserver
	OnFinish        FinishFunc
	Logger          zerolog.Logger
}

// Registry maps session ids to sessions. Terminal sessions stay queryable
// until they are deleted or their TTL expires.
type Registry struct {
	cfg RegistryConfig
	log zerolog.Logger

	// ctx bounds in-flight probes of every session; it is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
	wg       sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Options == nil {
		opts := config.Defaults()
		cfg.Options = &opts
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = config.DefaultJanitorInterval
	}
	if cfg.RecentResults <= 0 {
		cfg.RecentResults = config.DefaultRecentResults
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		cfg:      cfg,
		log:      cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Start validates req, registers a new session and starts it in the
// background. Validation failures are returned before any session exists.
// ctx only guards the call itself; the scan outlives it.
func (r *Registry) Start(ctx context.Context, req Request) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	units, err := BuildTargets(req.BaseURL, req.Paths, req.Extensions)
	if err != nil {
		return nil, err
	}
	base, _ := NormalizeBaseURL(req.BaseURL)
	threads := config.ClampThreads(req.Threads)

	requester, err := NewRequester(r.cfg.Options, threads)
	if err != nil {
		return nil, fmt.Errorf("create requester: %w", err)
	}

	var observer Observer
	if r.cfg.Observer != nil {
		observer = r.cfg.Observer
	}
	sess := NewSession(SessionConfig{
		ID:            uuid.NewString(),
		BaseURL:       base,
		Units:         units,
		Threads:       threads,
		Pacer:         NewPacer(r.cfg.Options.Delay, r.cfg.Options.DelayScope),
		Prober:        requester,
		RecentResults: r.cfg.RecentResults,
		Observer:      observer,
		Logger:        r.log,
	})

	r.mu.Lock()
	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		r.evictLocked(time.Now())
	}
	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		r.mu.Unlock()
		return nil, ErrTooManySessions
	}
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	r.sessions[sess.ID()] = sess
	r.wg.Add(1)
	r.mu.Unlock()

	if r.cfg.Observer != nil {
		r.cfg.Observer.SessionStarted()
	}
	sess.Start(r.ctx)
	go r.watch(sess)

	return sess, nil
}

// watch runs the terminal hooks once sess is done.
func (r *Registry) watch(sess *Session) {
	defer r.wg.Done()
	<-sess.Done()

	snap := sess.Snapshot()
	if r.cfg.Observer != nil {
		r.cfg.Observer.SessionFinished(snap)
	}
	if r.cfg.OnFinish != nil {
		// The archive write must survive registry shutdown.
		r.cfg.OnFinish(context.WithoutCancel(r.ctx), snap, sess.Results())
	}
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Status returns a snapshot of the session registered under id.
func (r *Registry) Status(id string) (Snapshot, error) {
	sess, err := r.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Stop requests cancellation of the session registered under id. Stopping a
// finished session is not an error.
func (r *Registry) Stop(id string) error {
	sess, err := r.Get(id)
	if err != nil {
		return err
	}
	if sess.Stop() {
		r.log.Info().Str("session_id", id).Msg("scan stop requested")
	}
	return nil
}

// Results returns every finding of the session registered under id.
func (r *Registry) Results(id string) ([]Finding, error) {
	sess, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Results(), nil
}

// Delete stops the session registered under id and removes it. Its workers
// keep draining in the background and terminal hooks still run.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.Stop()
	r.log.Info().Str("session_id", id).Msg("session deleted")
	return nil
}

// List returns snapshots of every registered session, oldest first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Run evicts expired sessions every JanitorInterval until ctx is done. It
// returns immediately when the TTL is zero.
func (r *Registry) Run(ctx context.Context) {
	if r.cfg.TTL <= 0 {
		return
	}
	ticker := time.NewTicker(r.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Evict(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// Evict removes terminal sessions that finished more than TTL before now and
// returns how many were removed.
func (r *Registry) Evict(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictLocked(now)
}

func (r *Registry) evictLocked(now time.Time) int {
	if r.cfg.TTL <= 0 {
		return 0
	}
	n := 0
	for id, sess := range r.sessions {
		if !sess.Status().Terminal() {
			continue
		}
		snap := sess.Snapshot()
		if snap.FinishedAt.IsZero() || now.Sub(snap.FinishedAt) < r.cfg.TTL {
			continue
		}
		delete(r.sessions, id)
		n++
	}
	if n > 0 {
		r.log.Debug().Int("evicted", n).Msg("expired sessions evicted")
	}
	return n
}

// Close stops every session and waits for their workers and terminal hooks.
// If ctx expires first, in-flight probes are aborted and Close waits for the
// now-short drain before returning ctx's error.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	for _, sess := range r.sessions {
		sess.Stop()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
