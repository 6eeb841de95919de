package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/dirscan/internal/scanner"
)

type memArchive struct {
	saved []*ScanRecord
	err   error
}

func (m *memArchive) SaveScan(_ context.Context, rec *ScanRecord) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, rec)
	return nil
}

func (m *memArchive) GetScan(context.Context, string) (*ScanRecord, error) { return nil, ErrNotFound }
func (m *memArchive) ListScans(context.Context, ListScansParams) ([]ScanRecord, error) {
	return nil, nil
}
func (m *memArchive) Close() error { return nil }

func TestNewScanRecord(t *testing.T) {
	now := time.Now()
	snap := scanner.Snapshot{
		ID:         "abc",
		BaseURL:    "http://example.com",
		Status:     scanner.StatusStopped,
		Total:      10,
		Completed:  4,
		Threads:    3,
		CreatedAt:  now,
		StartedAt:  now,
		FinishedAt: now.Add(time.Second),
	}
	findings := []scanner.Finding{{URL: "http://example.com/a", Path: "a", StatusCode: 200, Method: "HEAD"}}

	rec := NewScanRecord(snap, findings)
	assert.Equal(t, "stopped", rec.Status)
	assert.Equal(t, 1, rec.ResultCount)
	assert.EqualValues(t, 4, rec.Completed)
	assert.Equal(t, 3, rec.Threads)
	assert.Equal(t, findings, rec.Findings)
}

func TestSaveOnFinish(t *testing.T) {
	assert.Nil(t, SaveOnFinish(nil, zerolog.Nop()))

	arch := &memArchive{}
	hook := SaveOnFinish(arch, zerolog.Nop())
	require.NotNil(t, hook)
	hook(context.Background(), scanner.Snapshot{ID: "s1", Status: scanner.StatusCompleted}, nil)
	require.Len(t, arch.saved, 1)
	assert.Equal(t, "s1", arch.saved[0].ID)

	// Save errors are logged, not propagated.
	arch.err = errors.New("disk full")
	hook(context.Background(), scanner.Snapshot{ID: "s2"}, nil)
	assert.Len(t, arch.saved, 1)
}
