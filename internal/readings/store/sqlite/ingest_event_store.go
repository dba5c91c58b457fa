package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/readings/internal/db"
	"github.com/BrandonDHaskell/readings/internal/readings/store"
)

// IngestEventStore writes the ingest journal to SQLite through the
// single-writer worker.
type IngestEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewIngestEventStore(db *sql.DB, writer *dbpkg.Worker) *IngestEventStore {
	return &IngestEventStore{db: db, writer: writer}
}

func (s *IngestEventStore) RecordEvent(ctx context.Context, rec store.IngestEventRecord) error {
	deviceID := strings.TrimSpace(rec.DeviceID)
	if deviceID == "" {
		return nil
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}

	var dupMs any
	if rec.DuplicateInstant != nil {
		dupMs = *rec.DuplicateInstant
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO ingest_events(
  device_id, received_at_ms, submitted, stored, outcome, duplicate_instant_ms
) VALUES (?, ?, ?, ?, ?, ?);
`, deviceID, rec.ReceivedAt.UTC().UnixMilli(), rec.Submitted, rec.Stored, rec.Outcome, dupMs); err != nil {
			return fmt.Errorf("RecordEvent insert: %w", err)
		}
		return nil
	})
}

// PruneOlderThan deletes journal rows received before cutoff and returns
// how many were removed. Uses idx_ingest_events_time.
func (s *IngestEventStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM ingest_events WHERE received_at_ms < ?;`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

// CountForDevice reports how many journal rows exist for deviceID.
func (s *IngestEventStore) CountForDevice(ctx context.Context, deviceID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ingest_events WHERE device_id = ?;`, deviceID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountForDevice: %w", err)
	}
	return n, nil
}
