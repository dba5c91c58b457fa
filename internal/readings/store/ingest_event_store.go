package store

import (
	"context"
	"time"
)

const (
	OutcomeStored             = "stored"
	OutcomeDuplicateTimestamp = "duplicate_timestamp"
)

// IngestEventRecord captures one ingest attempt that reached the
// aggregation store.
type IngestEventRecord struct {
	DeviceID         string
	ReceivedAt       time.Time
	Submitted        int
	Stored           int
	Outcome          string
	DuplicateInstant *int64 // epoch ms; set only for duplicate_timestamp
}

// IngestEventStore persists ingest attempts as an append-only journal.
type IngestEventStore interface {
	RecordEvent(ctx context.Context, rec IngestEventRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
