package dynamic

import (
	"errors"
	"fmt"

	"github.com/protolite/dynpb/wire"
)

var errSelfMerge = errors.New("cannot merge a message into itself")

func (m *Message) sameType(other *Message) error {
	if m.desc == other.desc || m.desc.DisplayName() == other.desc.DisplayName() {
		return nil
	}
	return fmt.Errorf("%w: %s vs %s", ErrDescriptorMismatch, m.desc.DisplayName(), other.desc.DisplayName())
}

// MergeFrom merges the set fields of other into m. Singular scalars are
// overwritten, sub-messages merged recursively, repeated fields appended and
// map entries replaced by key. Unknown fields are appended. Nothing of other
// is shared with m afterwards.
func (m *Message) MergeFrom(other *Message) error {
	if other == m {
		return errSelfMerge
	}
	if err := m.sameType(other); err != nil {
		return err
	}
	return m.mergeFrom(other)
}

func (m *Message) mergeFrom(other *Message) error {
	for _, fv := range other.ListFields() {
		f := fv.Field
		switch src := fv.Value.(type) {
		case *Message:
			child, err := m.mutableChild(f)
			if err != nil {
				return err
			}
			if err := child.mergeFrom(src); err != nil {
				return wire.WrapField(err, f.Name)
			}
		case *List:
			v, err := m.get(f)
			if err != nil {
				return err
			}
			if err := v.(*List).mergeFrom(src); err != nil {
				return wire.WrapField(err, f.Name)
			}
		case *Map:
			v, err := m.get(f)
			if err != nil {
				return err
			}
			if err := v.(*Map).mergeFrom(src); err != nil {
				return wire.WrapField(err, f.Name)
			}
		default:
			m.setScalar(f, copyScalar(src))
		}
	}
	for _, u := range other.unknown {
		m.unknown = append(m.unknown, copyUnknown(u))
	}
	m.modified()
	return nil
}

// CopyFrom replaces the contents of m with a deep copy of other.
// Copying a message onto itself does nothing.
func (m *Message) CopyFrom(other *Message) error {
	if other == m {
		return nil
	}
	if err := m.sameType(other); err != nil {
		return err
	}
	m.Clear()
	return m.mergeFrom(other)
}

// Clear resets every field and drops unknown fields. A cleared sub-message
// still counts as set in its parent.
func (m *Message) Clear() {
	for number := range m.fields {
		m.dropField(number)
	}
	m.oneofs = make(map[string]int32)
	m.unknown = nil
	m.modified()
}

func copyUnknown(u wire.UnknownField) wire.UnknownField {
	out := wire.UnknownField{
		Tag:   make([]byte, len(u.Tag)),
		Value: make([]byte, len(u.Value)),
		After: u.After,
	}
	copy(out.Tag, u.Tag)
	copy(out.Value, u.Value)
	return out
}
