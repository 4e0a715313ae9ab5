package stats

import "math"

// Aggregate computes min, max, sum and average over every cell of a validated
// batch, plus whether any matrix is diagonal. It is pure: the same batch always
// yields a bit-identical Result.
//
// NaN cells never become min or max (comparisons with NaN are false) but they
// do poison the sum and therefore the average. Callers decide what a poisoned
// result means; see Result.Poisoned.
func Aggregate(batch Batch) Result {
	values := Flatten(batch)

	res := Result{
		Min:   math.Inf(1),
		Max:   math.Inf(-1),
		Count: len(values),
	}
	for _, v := range values {
		if v < res.Min {
			res.Min = v
		}
		if v > res.Max {
			res.Max = v
		}
		res.Sum += v
	}
	if res.Count > 0 {
		res.Average = res.Sum / float64(res.Count)
	}

	for _, m := range batch {
		if IsDiagonal(m) {
			res.AnyDiagonal = true
			break
		}
	}

	return res
}

// Flatten coerces every cell to float64 in batch order, rows top to bottom and
// cells left to right.
func Flatten(batch Batch) []float64 {
	n := 0
	for _, m := range batch {
		for _, row := range m {
			n += len(row)
		}
	}

	out := make([]float64, 0, n)
	for _, m := range batch {
		for _, row := range m {
			for _, cell := range row {
				out = append(out, Coerce(cell))
			}
		}
	}
	return out
}

// IsDiagonal reports whether m is square and every off-diagonal cell coerces
// to exactly zero. A matrix without rows is not considered diagonal.
func IsDiagonal(m Matrix) bool {
	n := m.Rows()
	if n == 0 || m.Cols() != n {
		return false
	}
	for i, row := range m {
		if len(row) != n {
			return false
		}
		for j, cell := range row {
			if i != j && Coerce(cell) != 0 {
				return false
			}
		}
	}
	return true
}
