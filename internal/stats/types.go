// Package stats validates batches of matrices and computes aggregate statistics
// over their cells.
package stats

import (
	"encoding/json"
	"math"
)

// Matrix is an ordered list of rows. Cells keep whatever type the request
// decoded them as; they are only interpreted numerically during aggregation.
type Matrix [][]any

// Rows returns the number of rows.
func (m Matrix) Rows() int { return len(m) }

// Cols returns the length of the first row, or 0 for a matrix without rows.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Batch is the ordered list of matrices submitted in one request.
type Batch []Matrix

// Result holds the aggregate over every cell of a batch.
type Result struct {
	Max         float64 `json:"max"`
	Min         float64 `json:"min"`
	Sum         float64 `json:"sum"`
	Average     float64 `json:"average"`
	AnyDiagonal bool    `json:"anyDiagonal"`

	// Count is the number of flattened cells. It is not part of the wire format.
	Count int `json:"-"`
}

// Poisoned reports whether the sum is not a finite number: a non-numeric cell
// propagated into it, or it overflowed.
func (r Result) Poisoned() bool {
	return math.IsNaN(r.Sum) || math.IsInf(r.Sum, 0)
}

// resultJSON is the wire form of Result. JSON has no representation for
// non-finite numbers, so they travel as null.
type resultJSON struct {
	Max         *float64 `json:"max"`
	Min         *float64 `json:"min"`
	Sum         *float64 `json:"sum"`
	Average     *float64 `json:"average"`
	AnyDiagonal bool     `json:"anyDiagonal"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// MarshalJSON encodes non-finite values as null.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Max:         finite(r.Max),
		Min:         finite(r.Min),
		Sum:         finite(r.Sum),
		Average:     finite(r.Average),
		AnyDiagonal: r.AnyDiagonal,
	})
}

// UnmarshalJSON restores the empty-batch infinities from null min/max.
func (r *Result) UnmarshalJSON(data []byte) error {
	var w resultJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Result{
		Max:         orDefault(w.Max, math.Inf(-1)),
		Min:         orDefault(w.Min, math.Inf(1)),
		Sum:         orDefault(w.Sum, 0),
		Average:     orDefault(w.Average, 0),
		AnyDiagonal: w.AnyDiagonal,
	}
	return nil
}
