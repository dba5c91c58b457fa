package types

// Reading is a single validated reading handed to the aggregation store.
type Reading struct {
	Timestamp string
	Count     int64
}

// ReadingPayload is the wire form of one reading. Pointers let the
// validator tell a missing field apart from a zero value.
type ReadingPayload struct {
	Timestamp *string  `json:"timestamp" validate:"required,rfc3339offset"`
	Count     *float64 `json:"count" validate:"required,integer,min=0,max=9007199254740991"`
}

// BatchPayload is the body of POST /readings.
type BatchPayload struct {
	ID       *string          `json:"id" validate:"required,uuid_rfc4122"`
	Readings []ReadingPayload `json:"readings" validate:"required,min=1,dive"`
}

type IngestResponse struct {
	Stored int `json:"stored"`
}

type LatestResponse struct {
	LatestTimestamp string `json:"latest_timestamp"`
}

type CumulativeResponse struct {
	CumulativeCount int64 `json:"cumulative_count"`
}
