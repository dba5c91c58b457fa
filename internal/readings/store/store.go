package store

import "github.com/BrandonDHaskell/readings/internal/readings/types"

// DeviceSnapshot is a consistent view of one device aggregate: the total
// and the latest instant always describe the same set of readings.
type DeviceSnapshot struct {
	DeviceID        string
	TotalCount      int64
	LatestInstant   int64 // epoch milliseconds, UTC
	LatestTimestamp string
	Readings        int
}

// AggregateStore owns per-device running totals and latest instants.
// Implementations must be safe for concurrent use.
type AggregateStore interface {
	AddReadings(deviceID string, readings []types.Reading) (int, error)
	LatestTimestamp(deviceID string) (string, bool)
	CumulativeCount(deviceID string) (int64, bool)
	Snapshot(deviceID string) (DeviceSnapshot, bool)
	DeviceCount() int
}
