package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/dirscan/internal/config"
)

func TestNewQueue(t *testing.T) {
	units := makeUnits(3)
	q := NewQueue(units)

	var got []TargetUnit
	for u := range q {
		got = append(got, u)
	}
	assert.Equal(t, units, got)
}

func TestRunWorkerPoolRecordsEveryUnit(t *testing.T) {
	var mu sync.Mutex
	var recorded []string

	err := RunWorkerPool(context.Background(), context.Background(), slowProber(0), NewQueue(makeUnits(100)),
		WorkerConfig{Threads: 7}, func(u TargetUnit, out Outcome) {
			mu.Lock()
			recorded = append(recorded, u.URL)
			mu.Unlock()
		})
	require.NoError(t, err)
	assert.Len(t, recorded, 100)
}

func TestRunWorkerPoolRespectsThreads(t *testing.T) {
	var inFlight, peak atomic.Int32
	p := proberFunc(func(ctx context.Context, url string) Outcome {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return Outcome{Kind: OutcomeNotFound, URL: url}
	})

	err := RunWorkerPool(context.Background(), context.Background(), p, NewQueue(makeUnits(60)),
		WorkerConfig{Threads: 3}, func(TargetUnit, Outcome) {})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRunWorkerPoolStopBeforeStart(t *testing.T) {
	stop, cancel := context.WithCancel(context.Background())
	cancel()

	var n atomic.Int32
	err := RunWorkerPool(context.Background(), stop, slowProber(0), NewQueue(makeUnits(10)),
		WorkerConfig{Threads: 2}, func(TargetUnit, Outcome) { n.Add(1) })
	require.NoError(t, err)
	assert.Zero(t, n.Load())
}

func TestRunWorkerPoolGlobalPacing(t *testing.T) {
	delay := 25 * time.Millisecond
	cfg := WorkerConfig{Threads: 4, Pacer: NewPacer(delay, config.DelayScopeGlobal)}

	start := time.Now()
	err := RunWorkerPool(context.Background(), context.Background(), slowProber(0), NewQueue(makeUnits(5)),
		cfg, func(TargetUnit, Outcome) {})
	require.NoError(t, err)

	// Five requests share one limiter: the first is free, four wait.
	assert.GreaterOrEqual(t, time.Since(start), 4*delay-5*time.Millisecond)
}

func TestRunWorkerPoolStopInterruptsPacing(t *testing.T) {
	stop, cancel := context.WithCancel(context.Background())
	cfg := WorkerConfig{Threads: 1, Pacer: NewPacer(time.Hour, config.DelayScopeWorker)}

	var n atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- RunWorkerPool(context.Background(), stop, slowProber(0), NewQueue(makeUnits(3)),
			cfg, func(TargetUnit, Outcome) { n.Add(1) })
	}()

	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pool kept waiting on the pacer after stop")
	}
	assert.EqualValues(t, 1, n.Load())
}
