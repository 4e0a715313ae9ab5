package stats

import (
	"bytes"
	"encoding/json"

	"github.com/R3E-Network/statsgate/internal/errors"
)

// ParseBatch decodes the raw "matrices" value of a request and validates its
// shape. Numbers are kept as json.Number so that values outside the float64
// range reach Coerce instead of failing the decode.
//
//	missing, null, non-array or empty batch -> EmptyBatch
//	matrix that is not an array             -> skipped, contributes no cells
//	row that is not an array                -> JaggedMatrix
//	rows of differing length                -> JaggedMatrix
//
// Errors are reported for the first offending row, scanning matrices then rows
// in order.
func ParseBatch(raw json.RawMessage) (Batch, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.EmptyBatch()
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Internal("", err)
	}

	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil, errors.EmptyBatch()
	}

	batch := make(Batch, len(items))
	for mi, item := range items {
		rows, ok := item.([]any)
		if !ok {
			continue
		}

		m := make(Matrix, 0, len(rows))
		for ri, row := range rows {
			cells, ok := row.([]any)
			if !ok {
				// A length mismatch earlier in the scan still wins.
				batch[mi] = m
				if err := Validate(batch[:mi+1]); err != nil {
					return nil, err
				}
				return nil, errors.JaggedMatrix(mi, ri, m.Cols(), 0).
					WithDetails("reason", "row is not an array")
			}
			m = append(m, cells)
		}
		batch[mi] = m
	}

	return batch, Validate(batch)
}
