package memory

import (
	"math"
	"sync"

	"github.com/BrandonDHaskell/readings/internal/readings/store"
	"github.com/BrandonDHaskell/readings/internal/readings/types"
)

// deviceAggregate holds the running state for one device. An aggregate is
// only ever visible in the store with at least one committed reading.
type deviceAggregate struct {
	mu        sync.RWMutex
	byInstant map[int64]int64
	total     int64
	latest    int64
	latestISO string
}

// AggregateStore is the in-process aggregation store. The device map has its
// own lock; each aggregate is guarded separately so ingests for different
// devices never wait on each other.
type AggregateStore struct {
	mu      sync.RWMutex
	devices map[string]*deviceAggregate
}

func NewAggregateStore() *AggregateStore {
	return &AggregateStore{
		devices: make(map[string]*deviceAggregate),
	}
}

// AddReadings records readings for deviceID in input order and returns how
// many were newly stored. Unparseable timestamps and instants already known
// from earlier calls are skipped. Two readings in the same call with the
// same instant abort the call with *store.DuplicateTimestampError; readings
// committed before that point are kept.
func (s *AggregateStore) AddReadings(deviceID string, readings []types.Reading) (int, error) {
	var dev *deviceAggregate
	defer func() {
		if dev != nil {
			dev.mu.Unlock()
		}
	}()

	stored := 0
	batch := make(map[int64]struct{}, len(readings))

	for _, r := range readings {
		instant, ok := store.NormalizeTimestamp(r.Timestamp)
		if !ok {
			continue
		}

		if _, dup := batch[instant]; dup {
			return 0, &store.DuplicateTimestampError{Instant: instant, Committed: stored}
		}
		batch[instant] = struct{}{}

		if dev == nil {
			dev = s.lockDevice(deviceID)
		}

		if _, seen := dev.byInstant[instant]; seen {
			continue
		}

		dev.byInstant[instant] = r.Count
		dev.total = addSaturating(dev.total, r.Count)
		stored++

		if len(dev.byInstant) == 1 || instant > dev.latest {
			dev.latest = instant
			dev.latestISO = store.FormatInstant(instant)
		}
	}

	return stored, nil
}

// addSaturating adds a non-negative count to total, pinning the result at
// math.MaxInt64 instead of wrapping.
func addSaturating(total, count int64) int64 {
	if count > math.MaxInt64-total {
		return math.MaxInt64
	}
	return total + count
}

// lockDevice returns the aggregate for deviceID with its write lock held,
// creating it if needed. New aggregates are locked before they are published
// so readers never see one without readings.
func (s *AggregateStore) lockDevice(deviceID string) *deviceAggregate {
	s.mu.RLock()
	dev, ok := s.devices[deviceID]
	s.mu.RUnlock()
	if ok {
		dev.mu.Lock()
		return dev
	}

	s.mu.Lock()
	if dev, ok = s.devices[deviceID]; ok {
		s.mu.Unlock()
		dev.mu.Lock()
		return dev
	}
	dev = &deviceAggregate{byInstant: make(map[int64]int64)}
	dev.mu.Lock()
	s.devices[deviceID] = dev
	s.mu.Unlock()
	return dev
}

func (s *AggregateStore) device(deviceID string) (*deviceAggregate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devices[deviceID]
	return dev, ok
}

func (s *AggregateStore) LatestTimestamp(deviceID string) (string, bool) {
	snap, ok := s.Snapshot(deviceID)
	if !ok {
		return "", false
	}
	return snap.LatestTimestamp, true
}

func (s *AggregateStore) CumulativeCount(deviceID string) (int64, bool) {
	snap, ok := s.Snapshot(deviceID)
	if !ok {
		return 0, false
	}
	return snap.TotalCount, true
}

// Snapshot returns the device's total and latest instant read under one
// lock acquisition.
func (s *AggregateStore) Snapshot(deviceID string) (store.DeviceSnapshot, bool) {
	dev, ok := s.device(deviceID)
	if !ok {
		return store.DeviceSnapshot{}, false
	}

	dev.mu.RLock()
	defer dev.mu.RUnlock()

	if len(dev.byInstant) == 0 {
		return store.DeviceSnapshot{}, false
	}
	return store.DeviceSnapshot{
		DeviceID:        deviceID,
		TotalCount:      dev.total,
		LatestInstant:   dev.latest,
		LatestTimestamp: dev.latestISO,
		Readings:        len(dev.byInstant),
	}, true
}

// DeviceCount returns the number of devices with at least one reading.
func (s *AggregateStore) DeviceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}
