package stats

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/statsgate/internal/errors"
)

func decodeBatch(t *testing.T, raw string) Batch {
	t.Helper()
	var b Batch
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	return b
}

// =============================================================================
// Coerce
// =============================================================================

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"float", 2.5, 2.5},
		{"negative zero", math.Copysign(0, -1), 0},
		{"json number", json.Number("1e3"), 1000},
		{"overflow json number", json.Number("-1e400"), math.Inf(-1)},
		{"hex float string", "0x1p3", 8},
		{"numeric string", "42", 42},
		{"padded string", "  -1.5\t", -1.5},
		{"empty string", "", 0},
		{"blank string", "   ", 0},
		{"infinity string", "Infinity", math.Inf(1)},
		{"overflow string", "1e400", math.Inf(1)},
		{"null", nil, 0},
		{"true", true, 1},
		{"false", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Coerce(tt.in))
		})
	}
}

func TestCoerce_Poison(t *testing.T) {
	for _, in := range []any{"a", "1,5", "12px", "nan", 7, []any{1.0}, map[string]any{"x": 1.0}, struct{}{}} {
		assert.True(t, math.IsNaN(Coerce(in)), "Coerce(%#v) should be NaN", in)
	}
}

// =============================================================================
// Validate
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		batch   Batch
		code    errors.ErrorCode
		wantErr bool
	}{
		{"nil batch", nil, errors.ErrCodeEmptyBatch, true},
		{"empty batch", Batch{}, errors.ErrCodeEmptyBatch, true},
		{"zero-row matrix", Batch{{}}, "", false},
		{"rectangular", decodeBatch(t, `[[[1,2],[3,4]],[[1,2,3]]]`), "", false},
		{"single empty row", Batch{{{}}}, "", false},
		{"jagged", decodeBatch(t, `[[[1,2],[3]]]`), errors.ErrCodeJaggedMatrix, true},
		{"jagged longer", decodeBatch(t, `[[[1],[2,3]]]`), errors.ErrCodeJaggedMatrix, true},
		{"non-numeric cells pass", decodeBatch(t, `[[["a","b"],["c","d"]]]`), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.batch)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
			assert.True(t, errors.IsValidationError(err))
		})
	}
}

func TestValidate_ReportsFirstJaggedRow(t *testing.T) {
	batch := decodeBatch(t, `[[[1,2],[3,4]], [[1,2,3],[4,5,6],[7]], [[1],[2,3]]]`)

	err := Validate(batch)
	se := errors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, "jagged matrix", se.Message)
	assert.Equal(t, 1, se.Details["matrix"])
	assert.Equal(t, 2, se.Details["row"])
	assert.Equal(t, 3, se.Details["expected_columns"])
	assert.Equal(t, 1, se.Details["actual_columns"])
}

// =============================================================================
// Aggregate
// =============================================================================

func TestAggregate_DiagonalScenario(t *testing.T) {
	res := Aggregate(decodeBatch(t, `[[[1,0],[0,2]], [[3,4],[5,6]]]`))

	assert.Equal(t, 0.0, res.Min)
	assert.Equal(t, 6.0, res.Max)
	assert.Equal(t, 21.0, res.Sum)
	assert.InDelta(t, 21.0/8.0, res.Average, 1e-12)
	assert.Equal(t, 8, res.Count)
	assert.True(t, res.AnyDiagonal)
	assert.False(t, res.Poisoned())
}

func TestAggregate_OnlyEmptyMatrices(t *testing.T) {
	res := Aggregate(Batch{{}, {}})

	assert.Equal(t, math.Inf(1), res.Min)
	assert.Equal(t, math.Inf(-1), res.Max)
	assert.Equal(t, 0.0, res.Sum)
	assert.Equal(t, 0.0, res.Average)
	assert.Equal(t, 0, res.Count)
	assert.False(t, res.AnyDiagonal, "zero-row matrices are not diagonal")
}

func TestAggregate_PoisonPropagates(t *testing.T) {
	res := Aggregate(decodeBatch(t, `[[["a","b"],["c","d"]]]`))
	assert.True(t, res.Poisoned())
	assert.True(t, math.IsNaN(res.Average))
	assert.Equal(t, math.Inf(1), res.Min)
	assert.Equal(t, math.Inf(-1), res.Max)

	// One bad cell among many still poisons the sum, while min/max skip it.
	res = Aggregate(decodeBatch(t, `[[[1,2,3]], [["x", 10]]]`))
	assert.True(t, res.Poisoned())
	assert.Equal(t, 1.0, res.Min)
	assert.Equal(t, 10.0, res.Max)

	// An overflowing cell leaves no NaN but the sum is still not finite.
	res = Aggregate(decodeBatch(t, `[[["1e400", 1]]]`))
	assert.False(t, math.IsNaN(res.Sum))
	assert.True(t, res.Poisoned())
}

func TestAggregate_StringsAndNulls(t *testing.T) {
	res := Aggregate(decodeBatch(t, `[[["1", null], ["", true]], [[" 2 "]]]`))
	assert.Equal(t, 4.0, res.Sum)
	assert.Equal(t, 0.0, res.Min)
	assert.Equal(t, 2.0, res.Max)
	assert.Equal(t, 5, res.Count)
	assert.True(t, res.AnyDiagonal, "null and blank cells coerce to zero")
}

func TestAggregate_AverageTimesCount(t *testing.T) {
	batches := []string{
		`[[[1.5, -2.25, 3e10]]]`,
		`[[[0.1, 0.2], [0.3, 0.4]], [[1e-9]], []]`,
		`[[[-5]], [[7, 8, 9], [10, 11, 12]]]`,
	}
	for _, raw := range batches {
		res := Aggregate(decodeBatch(t, raw))
		require.Greater(t, res.Count, 0)
		assert.InEpsilon(t, res.Sum, res.Average*float64(res.Count), 1e-12, raw)
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	batch := decodeBatch(t, `[[[0.1, 0.2, 0.3]], [[1e16, 1, -1e16]], [["2.5", null]]]`)

	first := Aggregate(batch)
	second := Aggregate(batch)

	assert.Equal(t, math.Float64bits(first.Sum), math.Float64bits(second.Sum))
	assert.Equal(t, math.Float64bits(first.Average), math.Float64bits(second.Average))
	assert.Equal(t, math.Float64bits(first.Min), math.Float64bits(second.Min))
	assert.Equal(t, math.Float64bits(first.Max), math.Float64bits(second.Max))
	assert.Equal(t, first.AnyDiagonal, second.AnyDiagonal)
}

func TestFlatten_Order(t *testing.T) {
	got := Flatten(decodeBatch(t, `[[[1,2],[3,4]], [], [[5,6,7]]]`))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7}, got)
}

func TestIsDiagonal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"identity", `[[1,0],[0,1]]`, true},
		{"1x1", `[[5]]`, true},
		{"zero matrix", `[[0,0],[0,0]]`, true},
		{"off diagonal", `[[1,0.0001],[0,1]]`, false},
		{"not square", `[[1,0,0],[0,1,0]]`, false},
		{"single empty row", `[[]]`, false},
		{"string zero", `[[1,"0"],["0",1]]`, true},
		{"poison off diagonal", `[[1,"x"],[0,1]]`, false},
		{"poison on diagonal", `[["x",0],[0,1]]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Matrix
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &m))
			assert.Equal(t, tt.want, IsDiagonal(m))
		})
	}

	assert.False(t, IsDiagonal(Matrix{}), "zero-row matrix")
	assert.False(t, IsDiagonal(Matrix{{1.0, 0.0}, {0.0}}), "jagged input")
}

// =============================================================================
// JSON
// =============================================================================

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(Result{Max: 6, Min: 0, Sum: 21, Average: 2.625, AnyDiagonal: true, Count: 8})
	require.NoError(t, err)
	assert.JSONEq(t, `{"max":6,"min":0,"sum":21,"average":2.625,"anyDiagonal":true}`, string(data))

	data, err = json.Marshal(Aggregate(Batch{{}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"max":null,"min":null,"sum":0,"average":0,"anyDiagonal":false}`, string(data))

	var back Result
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, math.Inf(1), back.Min)
	assert.Equal(t, math.Inf(-1), back.Max)
}
