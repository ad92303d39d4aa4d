// Package fieldtype validates Go values against protobuf field types and maps
// every field type onto its wire-level codec.
//
// Values stored in dynamic messages use one canonical Go type per field type:
//
//	int32, sint32, sfixed32, enum  int32
//	int64, sint64, sfixed64        int64
//	uint32, fixed32                uint32
//	uint64, fixed64                uint64
//	float                          float32
//	double                         float64
//	bool                           bool
//	string                         string
//	bytes                          []byte
package fieldtype

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/protolite/dynpb/schema"
)

var (
	// ErrWrongType means the Go type of a value cannot represent the field type.
	ErrWrongType = errors.New("wrong value type")
	// ErrOutOfRange means the value does not fit the field type.
	ErrOutOfRange = errors.New("value out of range")
	// ErrUnknownEnumValue means a closed enum does not declare the number.
	ErrUnknownEnumValue = errors.New("unknown enum value")
	// ErrInvalidUTF8 means a string field was given bytes that are not UTF-8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8")

	errWrongType  = ErrWrongType
	errOutOfRange = ErrOutOfRange
)

// ValueError reports a value rejected for a field.
type ValueError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("field %s: %v: %s", e.Field, e.Err, describe(e.Value))
}

// Unwrap returns the sentinel cause.
func (e *ValueError) Unwrap() error { return e.Err }

// CheckValue validates v for a singular value of field and converts it to the
// canonical Go type. enum must be the resolved enum for enum fields.
func CheckValue(field *schema.Field, enum *schema.Enum, v interface{}) (interface{}, error) {
	return CheckType(field.Name, &field.Type, enum, v)
}

// CheckType is CheckValue for a bare field type, e.g. a map key or value.
func CheckType(name string, ft *schema.FieldType, enum *schema.Enum, v interface{}) (interface{}, error) {
	out, err := check(ft, enum, v)
	if err != nil {
		return nil, &ValueError{Field: name, Value: v, Err: err}
	}
	return out, nil
}

func check(ft *schema.FieldType, enum *schema.Enum, v interface{}) (interface{}, error) {
	switch ft.Kind {
	case schema.KindEnum:
		return checkEnum(enum, v)
	case schema.KindPrimitive:
		return checkPrimitive(ft.PrimitiveType, v)
	default:
		return nil, fmt.Errorf("%w: %s fields hold messages, not scalars", errWrongType, ft.Kind)
	}
}

func checkEnum(enum *schema.Enum, v interface{}) (interface{}, error) {
	n, err := coerceToInt64(v)
	if err != nil {
		return nil, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, errOutOfRange
	}
	if enum != nil && enum.Closed && enum.Value(int32(n)) == nil {
		return nil, fmt.Errorf("%w %d for %s", ErrUnknownEnumValue, n, enum.DisplayName())
	}
	return int32(n), nil
}

func checkPrimitive(pt schema.PrimitiveType, v interface{}) (interface{}, error) {
	switch pt {
	case schema.TypeInt32, schema.TypeSint32, schema.TypeSfixed32:
		n, err := coerceToInt64(v)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, errOutOfRange
		}
		return int32(n), nil
	case schema.TypeInt64, schema.TypeSint64, schema.TypeSfixed64:
		return coerceToInt64(v)
	case schema.TypeUint32, schema.TypeFixed32:
		n, err := coerceToUint64(v)
		if err != nil {
			return nil, err
		}
		if n > math.MaxUint32 {
			return nil, errOutOfRange
		}
		return uint32(n), nil
	case schema.TypeUint64, schema.TypeFixed64:
		return coerceToUint64(v)
	case schema.TypeFloat:
		f, err := coerceToFloat64(v)
		if err != nil {
			return nil, err
		}
		return toFloat32(f), nil
	case schema.TypeDouble:
		return coerceToFloat64(v)
	case schema.TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, errWrongType
		}
		return b, nil
	case schema.TypeString:
		switch s := v.(type) {
		case string:
			if !utf8.ValidString(s) {
				return nil, ErrInvalidUTF8
			}
			return s, nil
		case []byte:
			if !utf8.Valid(s) {
				return nil, ErrInvalidUTF8
			}
			return string(s), nil
		default:
			return nil, errWrongType
		}
	case schema.TypeBytes:
		switch b := v.(type) {
		case []byte:
			out := make([]byte, len(b))
			copy(out, b)
			return out, nil
		case string:
			return []byte(b), nil
		default:
			return nil, errWrongType
		}
	default:
		return nil, fmt.Errorf("%w: unsupported primitive type %q", errWrongType, pt)
	}
}

// toFloat32 narrows f, saturating finite values beyond the float32 range to
// infinity instead of wrapping.
func toFloat32(f float64) float32 {
	switch {
	case f > math.MaxFloat32:
		return float32(math.Inf(1))
	case f < -math.MaxFloat32:
		return float32(math.Inf(-1))
	default:
		return float32(f)
	}
}
