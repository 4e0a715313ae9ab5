package stats

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Coerce converts one cell to a float64. Values that cannot be read as a
// number become NaN, which later poisons the batch sum.
//
// The accepted types are the ones a JSON decode produces:
//
//	numbers          -> value (out of range -> signed infinity)
//	numeric strings  -> parsed value ("" and blanks -> 0)
//	null             -> 0
//	true / false     -> 1 / 0
//	anything else    -> NaN
//
// Strings go through strconv.ParseFloat, so "inf", "nan" and hex floats such
// as "0x1p3" are read as numbers. Infinities and NaN reject the batch anyway.
func Coerce(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	case json.Number:
		return parseNumber(string(x))
	case string:
		return parseNumber(x)
	default:
		return math.NaN()
	}
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Overflow still yields a signed infinity.
		if errors.Is(err, strconv.ErrRange) {
			return f
		}
		return math.NaN()
	}
	return f
}
