package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/BrandonDHaskell/readings/internal/metrics"
	"github.com/BrandonDHaskell/readings/internal/readings/store"
	"github.com/BrandonDHaskell/readings/internal/readings/types"
	"github.com/BrandonDHaskell/readings/internal/validation"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
)

type ReadingService struct {
	aggregates store.AggregateStore
	journal    store.IngestEventStore
	logger     zerolog.Logger
}

func NewReadingService(agg store.AggregateStore, journal store.IngestEventStore, logger zerolog.Logger) *ReadingService {
	return &ReadingService{aggregates: agg, journal: journal, logger: logger}
}

// Ingest validates the batch and hands it to the aggregation store.
// Errors match validation.ErrSchemaInvalid or store.ErrDuplicateTimestamp
// for client mistakes; anything else is unexpected.
func (s *ReadingService) Ingest(ctx context.Context, p *types.BatchPayload) (types.IngestResponse, error) {
	deviceID, readings, err := validation.Batch(p)
	if err != nil {
		return types.IngestResponse{}, err
	}

	receivedAt := time.Now().UTC()
	stored, err := s.aggregates.AddReadings(deviceID, readings)

	var dupErr *store.DuplicateTimestampError
	switch {
	case errors.As(err, &dupErr):
		instant := dupErr.Instant
		s.record(ctx, store.IngestEventRecord{
			DeviceID:         deviceID,
			ReceivedAt:       receivedAt,
			Submitted:        len(readings),
			Stored:           dupErr.Committed,
			Outcome:          store.OutcomeDuplicateTimestamp,
			DuplicateInstant: &instant,
		})
		metrics.RecordIngest(store.OutcomeDuplicateTimestamp, len(readings), dupErr.Committed, s.aggregates.DeviceCount())
		s.logger.Warn().
			Str("device_id", deviceID).
			Str("instant", store.FormatInstant(instant)).
			Int("committed", dupErr.Committed).
			Msg("duplicate timestamp in payload")
		return types.IngestResponse{}, err
	case err != nil:
		return types.IngestResponse{}, err
	}

	s.record(ctx, store.IngestEventRecord{
		DeviceID:   deviceID,
		ReceivedAt: receivedAt,
		Submitted:  len(readings),
		Stored:     stored,
		Outcome:    store.OutcomeStored,
	})
	metrics.RecordIngest(store.OutcomeStored, len(readings), stored, s.aggregates.DeviceCount())
	s.logger.Debug().
		Str("device_id", deviceID).
		Int("submitted", len(readings)).
		Int("stored", stored).
		Msg("readings ingested")

	return types.IngestResponse{Stored: stored}, nil
}

func (s *ReadingService) Latest(_ context.Context, deviceID string) (types.LatestResponse, error) {
	latest, ok := s.aggregates.LatestTimestamp(deviceID)
	if !ok {
		return types.LatestResponse{}, ErrDeviceNotFound
	}
	return types.LatestResponse{LatestTimestamp: latest}, nil
}

func (s *ReadingService) Cumulative(_ context.Context, deviceID string) (types.CumulativeResponse, error) {
	total, ok := s.aggregates.CumulativeCount(deviceID)
	if !ok {
		return types.CumulativeResponse{}, ErrDeviceNotFound
	}
	return types.CumulativeResponse{CumulativeCount: total}, nil
}

// record appends to the ingest journal. A failed journal write is logged
// and counted but never changes the ingest result.
func (s *ReadingService) record(ctx context.Context, rec store.IngestEventRecord) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordEvent(ctx, rec); err != nil {
		metrics.JournalWriteErrors.Inc()
		s.logger.Error().Err(err).Str("device_id", rec.DeviceID).Msg("ingest journal write failed")
	}
}
