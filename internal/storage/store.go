package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/maxvaer/dirscan/internal/scanner"
)

// ErrNotFound is returned when a requested scan is not archived.
var ErrNotFound = errors.New("not found")

// ScanRecord is a finished scan session as persisted in the archive.
type ScanRecord struct {
	ID          string
	BaseURL     string
	Status      string
	Total       int64
	Completed   int64
	ResultCount int
	Threads     int
	CreatedAt   time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
	// Findings is only populated by GetScan.
	Findings []scanner.Finding
}

// ListScansParams controls history listing.
type ListScansParams struct {
	Limit int
}

// Archive defines the persistence operations for finished scans.
type Archive interface {
	SaveScan(ctx context.Context, rec *ScanRecord) error
	GetScan(ctx context.Context, id string) (*ScanRecord, error)
	ListScans(ctx context.Context, params ListScansParams) ([]ScanRecord, error)
	Close() error
}

// NewScanRecord builds the archive record of a session snapshot and its
// complete finding list.
func NewScanRecord(snap scanner.Snapshot, findings []scanner.Finding) *ScanRecord {
	return &ScanRecord{
		ID:          snap.ID,
		BaseURL:     snap.BaseURL,
		Status:      snap.Status.String(),
		Total:       snap.Total,
		Completed:   snap.Completed,
		ResultCount: len(findings),
		Threads:     snap.Threads,
		CreatedAt:   snap.CreatedAt,
		StartedAt:   snap.StartedAt,
		FinishedAt:  snap.FinishedAt,
		Findings:    findings,
	}
}

// SaveOnFinish returns a registry finish hook that archives every terminal
// session. It returns nil when archive is nil.
func SaveOnFinish(archive Archive, log zerolog.Logger) scanner.FinishFunc {
	if archive == nil {
		return nil
	}
	return func(ctx context.Context, snap scanner.Snapshot, findings []scanner.Finding) {
		if err := archive.SaveScan(ctx, NewScanRecord(snap, findings)); err != nil {
			log.Error().Err(err).Str("session_id", snap.ID).Msg("archiving scan failed")
			return
		}
		log.Debug().Str("session_id", snap.ID).Int("findings", len(findings)).Msg("scan archived")
	}
}
