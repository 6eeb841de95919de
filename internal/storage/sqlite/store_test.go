package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/dirscan/internal/scanner"
	"github.com/maxvaer/dirscan/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "dirscan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string, finished time.Time) *storage.ScanRecord {
	found := finished.Add(-time.Second)
	return storage.NewScanRecord(scanner.Snapshot{
		ID:         id,
		BaseURL:    "http://example.com",
		Status:     scanner.StatusCompleted,
		Total:      4,
		Completed:  4,
		Threads:    10,
		CreatedAt:  finished.Add(-time.Minute),
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
	}, []scanner.Finding{
		{URL: "http://example.com/admin", Path: "admin", StatusCode: 200, Method: "HEAD", FoundAt: found},
		{URL: "http://example.com/login.php", Path: "login.php", StatusCode: 403, Method: "GET", FoundAt: found},
	})
}

func TestSaveAndGetScan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	finished := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveScan(ctx, sampleRecord("a", finished)))

	got, err := s.GetScan(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", got.BaseURL)
	assert.Equal(t, "completed", got.Status)
	assert.EqualValues(t, 4, got.Total)
	assert.Equal(t, 2, got.ResultCount)
	assert.Equal(t, 10, got.Threads)
	assert.True(t, got.FinishedAt.Equal(finished))

	require.Len(t, got.Findings, 2)
	assert.Equal(t, "admin", got.Findings[0].Path)
	assert.Equal(t, "GET", got.Findings[1].Method)
	assert.Equal(t, 403, got.Findings[1].StatusCode)
	assert.True(t, got.Findings[0].FoundAt.Equal(finished.Add(-time.Second)))
}

func TestSaveScanReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := sampleRecord("a", time.Now())
	require.NoError(t, s.SaveScan(ctx, rec))

	rec.Status = "stopped"
	rec.Findings = rec.Findings[:1]
	require.NoError(t, s.SaveScan(ctx, rec))

	got, err := s.GetScan(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "stopped", got.Status)
	assert.Equal(t, 1, got.ResultCount)
	assert.Len(t, got.Findings, 1)
}

func TestGetScanNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetScan(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListScans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.SaveScan(ctx, sampleRecord(id, base.Add(time.Duration(i)*time.Hour))))
	}

	scans, err := s.ListScans(ctx, storage.ListScansParams{})
	require.NoError(t, err)
	require.Len(t, scans, 3)
	assert.Equal(t, "new", scans[0].ID)
	assert.Equal(t, "old", scans[2].ID)
	assert.Nil(t, scans[0].Findings)

	scans, err = s.ListScans(ctx, storage.ListScansParams{Limit: 1})
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "new", scans[0].ID)
}

func TestListScansEmpty(t *testing.T) {
	s := newTestStore(t)
	scans, err := s.ListScans(context.Background(), storage.ListScansParams{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, scans)
}
