package fieldtype

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/protolite/dynpb/schema"
)

// DefaultValue returns the value a singular scalar field reports when unset:
// the declared [default = ...] if any, otherwise the zero value. For enums
// without a declared default this is the first declared value.
func DefaultValue(field *schema.Field, enum *schema.Enum) (interface{}, error) {
	v, err := parseDefault(&field.Type, enum, field.DefaultValue)
	if err != nil {
		return nil, fmt.Errorf("invalid default %q for field %s: %w", field.DefaultValue, field.Name, err)
	}
	return v, nil
}

// ZeroValue returns the canonical zero value of a scalar field type.
func ZeroValue(ft *schema.FieldType, enum *schema.Enum) interface{} {
	v, _ := parseDefault(ft, enum, "")
	return v
}

func parseDefault(ft *schema.FieldType, enum *schema.Enum, s string) (interface{}, error) {
	if ft.Kind == schema.KindEnum {
		if s == "" {
			if enum != nil && len(enum.Values) > 0 {
				return enum.Values[0].Number, nil
			}
			return int32(0), nil
		}
		if enum == nil {
			return nil, fmt.Errorf("enum type %s not resolved", ft.EnumType)
		}
		ev := enum.ValueByName(s)
		if ev == nil {
			return nil, fmt.Errorf("%w %q for %s", ErrUnknownEnumValue, s, enum.DisplayName())
		}
		return ev.Number, nil
	}
	if ft.Kind != schema.KindPrimitive {
		return nil, fmt.Errorf("%s fields have no scalar default", ft.Kind)
	}

	switch ft.PrimitiveType {
	case schema.TypeInt32, schema.TypeSint32, schema.TypeSfixed32:
		if s == "" {
			return int32(0), nil
		}
		n, err := strconv.ParseInt(s, 0, 32)
		return int32(n), err
	case schema.TypeInt64, schema.TypeSint64, schema.TypeSfixed64:
		if s == "" {
			return int64(0), nil
		}
		return strconv.ParseInt(s, 0, 64)
	case schema.TypeUint32, schema.TypeFixed32:
		if s == "" {
			return uint32(0), nil
		}
		n, err := strconv.ParseUint(s, 0, 32)
		return uint32(n), err
	case schema.TypeUint64, schema.TypeFixed64:
		if s == "" {
			return uint64(0), nil
		}
		return strconv.ParseUint(s, 0, 64)
	case schema.TypeFloat:
		if s == "" {
			return float32(0), nil
		}
		f, err := parseFloat(s)
		return toFloat32(f), err
	case schema.TypeDouble:
		if s == "" {
			return float64(0), nil
		}
		return parseFloat(s)
	case schema.TypeBool:
		if s == "" {
			return false, nil
		}
		return strconv.ParseBool(s)
	case schema.TypeString:
		return s, nil
	case schema.TypeBytes:
		if s == "" {
			return []byte{}, nil
		}
		return unescapeBytes(s), nil
	default:
		return nil, fmt.Errorf("unsupported primitive type %q", ft.PrimitiveType)
	}
}

// parseFloat also accepts the inf/-inf/nan spellings used by .proto defaults.
func parseFloat(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// unescapeBytes decodes C-style escapes in a bytes default. Strings that do
// not parse as escapes are taken literally.
func unescapeBytes(s string) []byte {
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return []byte(u)
	}
	return []byte(s)
}
