package stats

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/statsgate/internal/errors"
)

func TestParseBatch_EmptyBatch(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", `"x"`, `{}`, `5`, `true`, `[]`} {
		_, err := ParseBatch(json.RawMessage(raw))
		assert.True(t, errors.HasCode(err, errors.ErrCodeEmptyBatch), "raw %q: got %v", raw, err)
	}
}

func TestParseBatch_RowNotArray(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		matrix   int
		row      int
		expected int
	}{
		{"batch of rows", `[[1,2]]`, 0, 0, 0},
		{"scalar after first row", `[[[1,2],5,[3,4]]]`, 0, 1, 2},
		{"in a later matrix", `[[[1]], [[1,2],"x"]]`, 1, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBatch(json.RawMessage(tt.raw))
			se := errors.GetServiceError(err)
			require.NotNil(t, se, "got %v", err)
			assert.Equal(t, errors.ErrCodeJaggedMatrix, se.Code)
			assert.Equal(t, tt.matrix, se.Details["matrix"])
			assert.Equal(t, tt.row, se.Details["row"])
			assert.Equal(t, tt.expected, se.Details["expected_columns"])
			assert.Equal(t, "row is not an array", se.Details["reason"])
		})
	}
}

func TestParseBatch_EarlierMismatchWins(t *testing.T) {
	_, err := ParseBatch(json.RawMessage(`[[[1,2],[3]], [[1],5]]`))
	se := errors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, 0, se.Details["matrix"])
	assert.Equal(t, 1, se.Details["row"])
	assert.Nil(t, se.Details["reason"])

	_, err = ParseBatch(json.RawMessage(`[[[1,2],[3,4],7,[5]]]`))
	se = errors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, 2, se.Details["row"])
	assert.Equal(t, "row is not an array", se.Details["reason"])
}

func TestParseBatch_SkipsNonArrayMatrices(t *testing.T) {
	batch, err := ParseBatch(json.RawMessage(`["x", 7, null, [[1,0],[0,2]]]`))
	require.NoError(t, err)
	require.Len(t, batch, 4)
	assert.Empty(t, batch[0])

	res := Aggregate(batch)
	assert.Equal(t, 3.0, res.Sum)
	assert.Equal(t, 4, res.Count)
	assert.True(t, res.AnyDiagonal)
}

func TestParseBatch_KeepsNumbersExact(t *testing.T) {
	batch, err := ParseBatch(json.RawMessage(`[[[1e400, 1]]]`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("1e400"), batch[0][0][0])

	res := Aggregate(batch)
	assert.True(t, math.IsInf(res.Sum, 1))
	assert.True(t, res.Poisoned())
}

func TestParseBatch_MatchesValidate(t *testing.T) {
	raw := `[[[1,2],[3,4]], [[1,2,3],[4,5,6],[7]]]`
	_, parseErr := ParseBatch(json.RawMessage(raw))
	assert.Equal(t, Validate(decodeBatch(t, raw)), parseErr)
}

func TestParseBatch_Malformed(t *testing.T) {
	_, err := ParseBatch(json.RawMessage(`[[`))
	assert.True(t, errors.HasCode(err, errors.ErrCodeInternal), "got %v", err)
}
