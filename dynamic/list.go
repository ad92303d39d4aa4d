package dynamic

import (
	"fmt"

	"github.com/protolite/dynpb/fieldtype"
	"github.com/protolite/dynpb/schema"
)

// List holds the values of a repeated field. Scalar elements are stored in
// their canonical type; message elements are *Message owned by the list.
type List struct {
	owner  *Message
	field  *schema.Field
	enum   *schema.Enum
	elem   *schema.Message // element descriptor for message lists
	values []interface{}
}

func newList(owner *Message, f *schema.Field) (*List, error) {
	l := &List{owner: owner, field: f}
	var err error
	if f.IsMessage() {
		if l.elem, err = owner.messageDesc(f); err != nil {
			return nil, err
		}
	} else if l.enum, err = owner.enumDesc(&f.Type); err != nil {
		return nil, err
	}
	return l, nil
}

// Field returns the descriptor of the repeated field.
func (l *List) Field() *schema.Field { return l.field }

// Len returns the number of elements.
func (l *List) Len() int { return len(l.values) }

// Get returns element i.
func (l *List) Get(i int) interface{} { return l.values[i] }

// Values returns a copy of the element slice.
func (l *List) Values() []interface{} {
	out := make([]interface{}, len(l.values))
	copy(out, l.values)
	return out
}

func (l *List) check(v interface{}) (interface{}, error) {
	if l.elem != nil {
		return nil, fmt.Errorf("%w: use Add to append to message list %s", ErrWrongKind, l.field.Name)
	}
	return fieldtype.CheckValue(l.field, l.enum, v)
}

// Append checks and appends a scalar element.
func (l *List) Append(v interface{}) error {
	cv, err := l.check(v)
	if err != nil {
		return err
	}
	l.values = append(l.values, cv)
	l.owner.modified()
	return nil
}

// Extend appends several scalar elements. Nothing is appended if any fails the check.
func (l *List) Extend(vs ...interface{}) error {
	checked := make([]interface{}, 0, len(vs))
	for _, v := range vs {
		cv, err := l.check(v)
		if err != nil {
			return err
		}
		checked = append(checked, cv)
	}
	if len(checked) == 0 {
		return nil
	}
	l.values = append(l.values, checked...)
	l.owner.modified()
	return nil
}

// Set replaces scalar element i.
func (l *List) Set(i int, v interface{}) error {
	if i < 0 || i >= len(l.values) {
		return fmt.Errorf("index %d out of range for %s (len %d)", i, l.field.Name, len(l.values))
	}
	cv, err := l.check(v)
	if err != nil {
		return err
	}
	l.values[i] = cv
	l.owner.modified()
	return nil
}

// Insert places a scalar element before index i.
func (l *List) Insert(i int, v interface{}) error {
	if i < 0 || i > len(l.values) {
		return fmt.Errorf("index %d out of range for %s (len %d)", i, l.field.Name, len(l.values))
	}
	cv, err := l.check(v)
	if err != nil {
		return err
	}
	l.values = append(l.values, nil)
	copy(l.values[i+1:], l.values[i:])
	l.values[i] = cv
	l.owner.modified()
	return nil
}

// Add appends a new empty element to a message list and returns it.
func (l *List) Add() (*Message, error) {
	if l.elem == nil {
		return nil, fmt.Errorf("%w: %s is not a message list", ErrWrongKind, l.field.Name)
	}
	child := l.addNew()
	l.owner.modified()
	return child, nil
}

func (l *List) addNew() *Message {
	child := New(l.elem, l.owner.resolver)
	l.owner.adopt(child, l.field, true)
	l.values = append(l.values, child)
	return child
}

// Delete removes element i.
func (l *List) Delete(i int) error {
	if i < 0 || i >= len(l.values) {
		return fmt.Errorf("index %d out of range for %s (len %d)", i, l.field.Name, len(l.values))
	}
	if child, ok := l.values[i].(*Message); ok {
		child.detach()
	}
	l.values = append(l.values[:i], l.values[i+1:]...)
	l.owner.modified()
	return nil
}

// Clear removes all elements.
func (l *List) Clear() {
	for _, v := range l.values {
		if child, ok := v.(*Message); ok {
			child.detach()
		}
	}
	l.values = nil
	l.owner.modified()
}

// mergeFrom appends deep copies of other's elements.
func (l *List) mergeFrom(other *List) error {
	for _, v := range other.values {
		if src, ok := v.(*Message); ok {
			if err := l.addNew().mergeFrom(src); err != nil {
				return err
			}
			continue
		}
		l.values = append(l.values, copyScalar(v))
	}
	return nil
}

// copyScalar copies byte slices so that messages never share storage.
func copyScalar(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}
	return v
}
