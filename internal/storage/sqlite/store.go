package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/maxvaer/dirscan/internal/scanner"
	"github.com/maxvaer/dirscan/internal/storage"
)

const defaultListLimit = 50

var _ storage.Archive = (*Store)(nil)

// Store implements storage.Archive on a SQLite file.
type Store struct {
	db *sql.DB
}

// New opens the database at dataSourceName and runs migrations.
func New(ctx context.Context, dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between archive goroutines.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS scans (
	id           TEXT PRIMARY KEY,
	base_url     TEXT NOT NULL,
	status       TEXT NOT NULL,
	total        INTEGER NOT NULL,
	completed    INTEGER NOT NULL,
	result_count INTEGER NOT NULL,
	threads      INTEGER NOT NULL,
	created_at   TEXT NOT NULL,
	started_at   TEXT,
	finished_at  TEXT
);
CREATE INDEX IF NOT EXISTS idx_scans_finished_at ON scans (finished_at DESC);

CREATE TABLE IF NOT EXISTS findings (
	scan_id     TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	url         TEXT NOT NULL,
	path        TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	method      TEXT NOT NULL,
	found_at    TEXT NOT NULL,
	PRIMARY KEY (scan_id, seq),
	FOREIGN KEY(scan_id) REFERENCES scans(id) ON DELETE CASCADE
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, ns.String)
	return t
}

// SaveScan inserts or replaces a scan together with its findings.
func (s *Store) SaveScan(ctx context.Context, rec *storage.ScanRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
INSERT INTO scans (id, base_url, status, total, completed, result_count, threads, created_at, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status = excluded.status,
	completed = excluded.completed,
	result_count = excluded.result_count,
	finished_at = excluded.finished_at`
	if _, err := tx.ExecContext(ctx, query,
		rec.ID, rec.BaseURL, rec.Status, rec.Total, rec.Completed, len(rec.Findings), rec.Threads,
		formatTime(rec.CreatedAt), formatTime(rec.StartedAt), formatTime(rec.FinishedAt),
	); err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE scan_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("failed to clear findings: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO findings (scan_id, seq, url, path, status_code, method, found_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare finding insert: %w", err)
	}
	defer stmt.Close()
	for i, f := range rec.Findings {
		if _, err := stmt.ExecContext(ctx, rec.ID, i, f.URL, f.Path, f.StatusCode, f.Method, formatTime(f.FoundAt)); err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetScan returns a scan with all of its findings in discovery order.
func (s *Store) GetScan(ctx context.Context, id string) (*storage.ScanRecord, error) {
	query := `SELECT id, base_url, status, total, completed, result_count, threads, created_at, started_at, finished_at FROM scans WHERE id = ?`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan by id: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT url, path, status_code, method, found_at FROM findings WHERE scan_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()
	rec.Findings = []scanner.Finding{}
	for rows.Next() {
		var f scanner.Finding
		var foundAt sql.NullString
		if err := rows.Scan(&f.URL, &f.Path, &f.StatusCode, &f.Method, &foundAt); err != nil {
			return nil, fmt.Errorf("failed to scan finding row: %w", err)
		}
		f.FoundAt = parseTime(foundAt)
		rec.Findings = append(rec.Findings, f)
	}
	return rec, rows.Err()
}

// ListScans returns the most recently finished scans first, without findings.
func (s *Store) ListScans(ctx context.Context, params storage.ListScansParams) ([]storage.ScanRecord, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT id, base_url, status, total, completed, result_count, threads, created_at, started_at, finished_at
FROM scans ORDER BY finished_at DESC, id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	scans := []storage.ScanRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scan row: %w", err)
		}
		scans = append(scans, *rec)
	}
	return scans, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*storage.ScanRecord, error) {
	var rec storage.ScanRecord
	var createdAt, startedAt, finishedAt sql.NullString
	if err := row.Scan(&rec.ID, &rec.BaseURL, &rec.Status, &rec.Total, &rec.Completed, &rec.ResultCount, &rec.Threads,
		&createdAt, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.StartedAt = parseTime(startedAt)
	rec.FinishedAt = parseTime(finishedAt)
	return &rec, nil
}
