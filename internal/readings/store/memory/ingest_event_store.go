package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/readings/internal/readings/store"
)

// IngestEventStore is an in-memory append-only ingest journal.
// It is intended for use in tests and dev environments.
type IngestEventStore struct {
	mu     sync.Mutex
	events []store.IngestEventRecord
}

func NewIngestEventStore() *IngestEventStore {
	return &IngestEventStore{}
}

func (s *IngestEventStore) RecordEvent(_ context.Context, rec store.IngestEventRecord) error {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, rec)
	return nil
}

// PruneOlderThan drops events received before cutoff and reports how many
// were removed.
func (s *IngestEventStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, ev := range s.events {
		if ev.ReceivedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return deleted, nil
}

// Events returns a copy of all recorded events.  Test-only helper.
func (s *IngestEventStore) Events() []store.IngestEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.IngestEventRecord, len(s.events))
	copy(out, s.events)
	return out
}
