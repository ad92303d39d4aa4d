package dynamic

import (
	"strings"

	"github.com/protolite/dynpb/fieldtype"
	"github.com/protolite/dynpb/schema"
	"github.com/protolite/dynpb/wire"
)

// UnmarshalOptions configures parsing.
type UnmarshalOptions struct {
	// DiscardUnknown drops fields the schema does not declare instead of
	// keeping them for re-serialization.
	DiscardUnknown bool
	// AllowPartial skips the check for unset required fields.
	AllowPartial bool
	// RecursionLimit bounds sub-message and group nesting. Zero means
	// wire.DefaultRecursionLimit.
	RecursionLimit int
}

func (o UnmarshalOptions) recursionLimit() int {
	if o.RecursionLimit > 0 {
		return o.RecursionLimit
	}
	return wire.DefaultRecursionLimit
}

// Unmarshal replaces the contents of m with the message parsed from b.
func (m *Message) Unmarshal(b []byte) error {
	return UnmarshalOptions{}.Unmarshal(b, m)
}

// Unmarshal clears m and parses b into it.
func (o UnmarshalOptions) Unmarshal(b []byte, m *Message) error {
	m.Clear()
	return o.Merge(b, m)
}

// Merge parses b into m on top of its current contents. Repeated fields
// are appended and singular fields overwritten, as if b were concatenated
// to the serialization of m.
func (o UnmarshalOptions) Merge(b []byte, m *Message) error {
	n, err := m.mergeFromBytes(b, o, 0)
	if err != nil {
		return err
	}
	if n != len(b) {
		return wire.NewDecodeError(wire.ErrUnexpectedEndGroup, "Unexpected end-group tag.")
	}
	if !o.AllowPartial {
		if missing := m.FindInitializationErrors(); len(missing) > 0 {
			return wire.NewDecodeError(wire.ErrMissingRequired,
				"Message %s is missing required fields: %s", m.desc.DisplayName(), strings.Join(missing, ","))
		}
	}
	return nil
}

// MergeFromBytes parses b into m and returns the number of bytes consumed.
// Parsing stops before an END_GROUP tag, which lets m serve as a group body.
// Required fields are not checked.
func (m *Message) MergeFromBytes(b []byte) (int, error) {
	return m.mergeFromBytes(b, UnmarshalOptions{}, 0)
}

func (m *Message) mergeFromBytes(b []byte, opts UnmarshalOptions, depth int) (int, error) {
	limit := opts.recursionLimit()
	if depth > limit {
		return 0, wire.NewDecodeError(wire.ErrRecursionLimit,
			"Message %s nested deeper than recursion limit %d", m.desc.DisplayName(), limit)
	}

	d := wire.NewDecoder(b).WithRecursionLimit(limit)
	defer m.modified()
	var lastKnown wire.FieldNumber
	for !d.EndOfStream() {
		start := d.Position()
		rawTag, fn, wt, err := d.ReadRawTag()
		if err != nil {
			return 0, err
		}
		if wt == wire.WireEndGroup {
			return start, nil
		}
		if fn == 0 {
			return 0, wire.NewDecodeError(wire.ErrInvalidFieldNumber, "Field number 0 is illegal.")
		}

		if f := m.desc.FieldByNumber(int32(fn)); f != nil {
			kept := len(m.unknown)
			handled, err := m.parseField(d, f, fn, wt, rawTag, opts, depth)
			if err != nil {
				return 0, wire.WrapField(err, f.Name)
			}
			if handled {
				// Rejected closed-enum values stay where they were on the wire.
				for i := kept; i < len(m.unknown); i++ {
					m.unknown[i].After = lastKnown
				}
				lastKnown = fn
				continue
			}
		}

		value, err := d.SkipField(fn, wt)
		if err != nil {
			return 0, err
		}
		if !opts.DiscardUnknown {
			m.unknown = append(m.unknown, copyUnknown(wire.UnknownField{Tag: rawTag, Value: value, After: lastKnown}))
		}
	}
	return d.Position(), nil
}

// parseField decodes one occurrence of a declared field. It reports false,
// consuming nothing, when the wire type does not fit the field; the caller
// then keeps the field as unknown.
func (m *Message) parseField(d *wire.Decoder, f *schema.Field, fn wire.FieldNumber, wt wire.WireType,
	rawTag []byte, opts UnmarshalOptions, depth int) (bool, error) {
	switch {
	case f.IsMap():
		if wt != wire.WireBytes {
			return false, nil
		}
		v, err := m.get(f)
		if err != nil {
			return false, err
		}
		raw, err := d.ReadRawBytes()
		if err != nil {
			return false, err
		}
		if err := v.(*Map).decodeEntry(raw, opts, depth+1); err != nil {
			return false, err
		}
		m.modified()
		return true, nil

	case f.IsMessage():
		group := f.Type.Kind == schema.KindGroup
		if (group && wt != wire.WireStartGroup) || (!group && wt != wire.WireBytes) {
			return false, nil
		}
		var child *Message
		if f.IsRepeated() {
			v, err := m.get(f)
			if err != nil {
				return false, err
			}
			child = v.(*List).addNew()
		} else {
			var err error
			if child, err = m.mutableChild(f); err != nil {
				return false, err
			}
		}
		merger := wire.MergerFunc(func(sub []byte) (int, error) {
			return child.mergeFromBytes(sub, opts, depth+1)
		})
		if group {
			return true, d.ReadGroupInto(fn, merger)
		}
		return true, d.ReadMessageInto(merger)
	}

	codec, err := fieldtype.Dispatch(&f.Type)
	if err != nil {
		return false, err
	}
	enum, err := m.enumDesc(&f.Type)
	if err != nil {
		return false, err
	}

	if f.IsRepeated() {
		v, err := m.get(f)
		if err != nil {
			return false, err
		}
		l := v.(*List)
		if wt == wire.WireBytes && codec.Packable {
			raw, err := d.ReadRawBytes()
			if err != nil {
				return false, err
			}
			packed := wire.NewDecoder(raw)
			for !packed.EndOfStream() {
				ev, err := codec.Decode(packed)
				if err != nil {
					return false, err
				}
				if m.rejectEnum(enum, ev, fn, opts) {
					continue
				}
				l.values = append(l.values, ev)
			}
			m.modified()
			return true, nil
		}
		if wt != codec.WireType {
			return false, nil
		}
		ev, err := codec.Decode(d)
		if err != nil {
			return false, err
		}
		if !m.rejectEnum(enum, ev, fn, opts) {
			l.values = append(l.values, ev)
			m.modified()
		}
		return true, nil
	}

	if wt != codec.WireType {
		return false, nil
	}
	v, err := codec.Decode(d)
	if err != nil {
		return false, err
	}
	if m.rejectEnum(enum, v, fn, opts) {
		return true, nil
	}
	m.setScalar(f, v)
	return true, nil
}

// rejectEnum diverts values a closed enum does not declare into the unknown
// fields, re-encoded as a plain varint field.
func (m *Message) rejectEnum(enum *schema.Enum, v interface{}, fn wire.FieldNumber, opts UnmarshalOptions) bool {
	if enum == nil || !enum.Closed {
		return false
	}
	n := v.(int32)
	if enum.Value(n) != nil {
		return false
	}
	if !opts.DiscardUnknown {
		tag, _ := wire.PackTag(fn, wire.WireVarint)
		m.unknown = append(m.unknown, wire.UnknownField{
			Tag:   wire.AppendVarint(nil, uint64(tag)),
			Value: wire.AppendVarint(nil, uint64(int64(n))),
		})
	}
	return true
}
