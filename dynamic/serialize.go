package dynamic

import (
	"fmt"
	"strings"

	"github.com/protolite/dynpb/fieldtype"
	"github.com/protolite/dynpb/schema"
	"github.com/protolite/dynpb/wire"
)

// MarshalOptions configures serialization.
type MarshalOptions struct {
	// AllowPartial skips the check for unset required fields.
	AllowPartial bool
}

// Marshal serializes m, failing if required fields are unset.
func (m *Message) Marshal() ([]byte, error) {
	return MarshalOptions{}.Marshal(m)
}

// MarshalPartial serializes m without checking required fields.
func (m *Message) MarshalPartial() ([]byte, error) {
	return MarshalOptions{AllowPartial: true}.Marshal(m)
}

// Marshal serializes m according to o.
func (o MarshalOptions) Marshal(m *Message) ([]byte, error) {
	if !o.AllowPartial {
		if missing := m.FindInitializationErrors(); len(missing) > 0 {
			return nil, wire.NewEncodeError(wire.ErrMissingRequired,
				"Message %s is missing required fields: %s", m.desc.DisplayName(), strings.Join(missing, ","))
		}
	}
	e := wire.NewEncoderSize(m.ByteSize())
	if err := m.SerializeTo(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// ByteSize returns the serialized size of m. The result is cached until m or
// one of its sub-messages is modified.
func (m *Message) ByteSize() int {
	if !m.sizeDirty {
		return m.cachedSize
	}
	size := 0
	for _, fv := range m.ListFields() {
		size += m.fieldSize(fv.Field, fv.Value)
	}
	for _, u := range m.unknown {
		size += len(u.Tag) + len(u.Value)
	}
	m.cachedSize = size
	m.sizeDirty = false
	return size
}

func (m *Message) fieldSize(f *schema.Field, v interface{}) int {
	fn := wire.FieldNumber(f.Number)
	switch t := v.(type) {
	case *Map:
		size := 0
		for _, k := range t.Keys() {
			size += wire.MessageByteSize(fn, t.entryFor(k))
		}
		return size
	case *List:
		codec, err := fieldtype.Dispatch(&f.Type)
		if err != nil {
			return 0
		}
		if f.IsPacked(m.desc) {
			payload := packedSize(codec, t.values)
			return wire.TagByteSize(fn) + wire.LengthDelimitedSizeNoTag(payload)
		}
		size := 0
		for _, e := range t.values {
			size += codec.Size(fn, e)
		}
		return size
	default:
		codec, err := fieldtype.Dispatch(&f.Type)
		if err != nil {
			return 0
		}
		return codec.Size(fn, v)
	}
}

func packedSize(codec fieldtype.Codec, values []interface{}) int {
	n := 0
	for _, e := range values {
		n += codec.SizeNoTag(e)
	}
	return n
}

// SerializeTo appends the fields of m in field-number order. Unknown fields
// keep their relative order; each is written before the first known field
// numbered above the one it followed on the wire.
func (m *Message) SerializeTo(e *wire.Encoder) error {
	next := 0
	for _, fv := range m.ListFields() {
		for ; next < len(m.unknown) && m.unknown[next].After < wire.FieldNumber(fv.Field.Number); next++ {
			e.AppendRawBytes(m.unknown[next].Tag)
			e.AppendRawBytes(m.unknown[next].Value)
		}
		if err := m.serializeField(e, fv.Field, fv.Value); err != nil {
			return err
		}
	}
	for _, u := range m.unknown[next:] {
		e.AppendRawBytes(u.Tag)
		e.AppendRawBytes(u.Value)
	}
	return nil
}

func (m *Message) serializeField(e *wire.Encoder, f *schema.Field, v interface{}) error {
	fn := wire.FieldNumber(f.Number)
	switch t := v.(type) {
	case *Map:
		for _, k := range t.Keys() {
			if err := e.AppendMessage(fn, t.entryFor(k)); err != nil {
				return wire.WrapField(err, f.Name)
			}
		}
		return nil
	case *List:
		codec, err := fieldtype.Dispatch(&f.Type)
		if err != nil {
			return wire.WrapField(err, f.Name)
		}
		if f.IsPacked(m.desc) {
			err := e.AppendPacked(fn, packedSize(codec, t.values), func(out *wire.OutputStream) error {
				for _, el := range t.values {
					if err := codec.EncodeNoTag(out, el); err != nil {
						return err
					}
				}
				return nil
			})
			return wire.WrapField(err, f.Name)
		}
		for i, el := range t.values {
			if err := codec.Encode(e, fn, el); err != nil {
				return wire.WrapField(err, fmt.Sprintf("%s[%d]", f.Name, i))
			}
		}
		return nil
	default:
		codec, err := fieldtype.Dispatch(&f.Type)
		if err != nil {
			return wire.WrapField(err, f.Name)
		}
		return wire.WrapField(codec.Encode(e, fn, v), f.Name)
	}
}
