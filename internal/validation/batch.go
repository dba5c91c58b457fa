package validation

import (
	"github.com/BrandonDHaskell/readings/internal/readings/types"
)

// Batch validates p and converts it into the device id and typed readings
// handed to the aggregation store.
func Batch(p *types.BatchPayload) (string, []types.Reading, error) {
	if p == nil {
		return "", nil, &SchemaError{Fields: []FieldError{{Message: "Required"}}}
	}
	if err := ValidateStruct(p); err != nil {
		return "", nil, err
	}

	readings := make([]types.Reading, 0, len(p.Readings))
	for _, r := range p.Readings {
		readings = append(readings, types.Reading{
			Timestamp: *r.Timestamp,
			Count:     int64(*r.Count),
		})
	}
	return *p.ID, readings, nil
}
