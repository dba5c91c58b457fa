package store

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateTimestamp = errors.New("duplicate timestamp in payload")
)

// DuplicateTimestampError reports two readings in one batch that normalize
// to the same instant. Readings accepted before the duplicate was reached
// stay committed; Committed says how many.
type DuplicateTimestampError struct {
	Instant   int64
	Committed int
}

func (e *DuplicateTimestampError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDuplicateTimestamp, FormatInstant(e.Instant))
}

func (e *DuplicateTimestampError) Is(target error) bool {
	return target == ErrDuplicateTimestamp
}
