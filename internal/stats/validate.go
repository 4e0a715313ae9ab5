package stats

import (
	"github.com/R3E-Network/statsgate/internal/errors"
)

// Validate checks that the batch is non-empty and every matrix is rectangular.
// The first offending row, scanning matrices then rows in order, fails the whole
// batch. Cell values are not inspected.
func Validate(batch Batch) error {
	if len(batch) == 0 {
		return errors.EmptyBatch()
	}

	for mi, m := range batch {
		if len(m) == 0 {
			continue
		}
		cols := len(m[0])
		for ri := 1; ri < len(m); ri++ {
			if got := len(m[ri]); got != cols {
				return errors.JaggedMatrix(mi, ri, cols, got)
			}
		}
	}

	return nil
}
