package fieldtype

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// coerceToInt64 accepts any Go integer, or a float/json.Number with an
// integral value.
func coerceToInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return 0, errOutOfRange
		}
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return 0, errOutOfRange
		}
		return int64(t), nil
	case json.Number:
		if iv, err := t.Int64(); err == nil {
			return iv, nil
		}
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return 0, errWrongType
		}
		return floatToInt64(f)
	case float32:
		return floatToInt64(float64(t))
	case float64:
		return floatToInt64(t)
	default:
		return 0, errWrongType
	}
}

func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errWrongType
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, errOutOfRange
	}
	return int64(f), nil
}

// coerceToUint64 is the unsigned counterpart of coerceToInt64. Negative
// values are range errors, not type errors.
func coerceToUint64(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case uint:
		return uint64(t), nil
	case uint8:
		return uint64(t), nil
	case uint16:
		return uint64(t), nil
	case uint32:
		return uint64(t), nil
	case uint64:
		return t, nil
	case json.Number:
		if uv, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return uv, nil
		}
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return 0, errWrongType
		}
		return floatToUint64(f)
	case float32:
		return floatToUint64(float64(t))
	case float64:
		return floatToUint64(t)
	default:
		iv, err := coerceToInt64(v)
		if err != nil {
			return 0, err
		}
		if iv < 0 {
			return 0, errOutOfRange
		}
		return uint64(iv), nil
	}
}

func floatToUint64(f float64) (uint64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errWrongType
	}
	if f < 0 || f >= math.MaxUint64 {
		return 0, errOutOfRange
	}
	return uint64(f), nil
}

// coerceToFloat64 accepts any Go number.
func coerceToFloat64(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, errWrongType
		}
		return f, nil
	case uint:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	default:
		iv, err := coerceToInt64(v)
		if err != nil {
			return 0, err
		}
		return float64(iv), nil
	}
}

func describe(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%v of type %T", v, v)
}
