package dynamic

import (
	"bytes"
	"sort"

	"github.com/protolite/dynpb/wire"
)

// Equal reports whether a and b have the same type, the same set fields with
// equal values, and the same unknown fields in any order.
func Equal(a, b *Message) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.sameType(b) != nil {
		return false
	}
	af, bf := a.ListFields(), b.ListFields()
	if len(af) != len(bf) {
		return false
	}
	for i := range af {
		if af[i].Field.Number != bf[i].Field.Number || !equalValue(af[i].Value, bf[i].Value) {
			return false
		}
	}
	return equalUnknown(a.unknown, b.unknown)
}

func equalValue(x, y interface{}) bool {
	switch xv := x.(type) {
	case *Message:
		yv, ok := y.(*Message)
		return ok && Equal(xv, yv)
	case *List:
		yv, ok := y.(*List)
		if !ok || xv.Len() != yv.Len() {
			return false
		}
		for i := range xv.values {
			if !equalValue(xv.values[i], yv.values[i]) {
				return false
			}
		}
		return true
	case *Map:
		yv, ok := y.(*Map)
		if !ok || xv.Len() != yv.Len() {
			return false
		}
		for k, v := range xv.entries {
			w, ok := yv.entries[k]
			if !ok || !equalValue(v, w) {
				return false
			}
		}
		return true
	case []byte:
		yv, ok := y.([]byte)
		return ok && bytes.Equal(xv, yv)
	default:
		return x == y
	}
}

func equalUnknown(a, b []wire.UnknownField) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := unknownKeys(a), unknownKeys(b)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func unknownKeys(fields []wire.UnknownField) []string {
	keys := make([]string, len(fields))
	for i, u := range fields {
		keys[i] = string(u.Tag) + string(u.Value)
	}
	sort.Strings(keys)
	return keys
}
