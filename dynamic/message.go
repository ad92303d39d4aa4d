// Package dynamic implements protobuf messages driven by schema descriptors
// instead of generated code.
package dynamic

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/protolite/dynpb/fieldtype"
	"github.com/protolite/dynpb/schema"
	"github.com/protolite/dynpb/wire"
)

var (
	// ErrUnknownField is returned when a field or oneof name is not declared.
	ErrUnknownField = errors.New("unknown field")
	// ErrNoPresence is returned by Has for fields that do not track presence.
	ErrNoPresence = errors.New("field does not track presence")
	// ErrWrongKind is returned when an accessor does not match the field kind.
	ErrWrongKind = errors.New("wrong field kind")
	// ErrDescriptorMismatch is returned when two messages of different types are combined.
	ErrDescriptorMismatch = errors.New("descriptor mismatch")
)

// Resolver looks up message and enum descriptors by fully qualified name.
type Resolver interface {
	GetMessage(name string) (*schema.Message, error)
	GetEnum(name string) (*schema.Enum, error)
}

// Message is a protobuf message whose layout comes from a schema.Message.
//
// Field values are stored by number: scalars in their canonical Go type (see
// package fieldtype), sub-messages as *Message, repeated fields as *List and
// map fields as *Map. A Message is not safe for concurrent mutation.
type Message struct {
	desc     *schema.Message
	resolver Resolver

	fields  map[int32]interface{}
	oneofs  map[string]int32 // oneof name -> number of the member that is set
	unknown []wire.UnknownField

	cachedSize int
	sizeDirty  bool

	// parent links a sub-message to the message holding it.
	parent      *Message
	parentField *schema.Field
	present     bool
}

// New creates an empty message for desc. resolver is used to look up the
// descriptors of nested message and enum types.
func New(desc *schema.Message, resolver Resolver) *Message {
	return &Message{
		desc:     desc,
		resolver: resolver,
		fields:   make(map[int32]interface{}),
		oneofs:   make(map[string]int32),
	}
}

// Descriptor returns the schema of the message.
func (m *Message) Descriptor() *schema.Message {
	return m.desc
}

// Resolver returns the resolver the message was created with.
func (m *Message) Resolver() Resolver {
	return m.resolver
}

// FieldValue pairs a set field with its value.
type FieldValue struct {
	Field *schema.Field
	Value interface{}
}

// modified marks the cached size stale and, the first time after the size was
// computed, propagates to the parent. A sub-message becomes present in its
// parent on its first modification.
func (m *Message) modified() {
	for cur := m; cur != nil && !cur.sizeDirty; cur = cur.parent {
		cur.sizeDirty = true
		if cur.parent != nil && !cur.present {
			cur.present = true
			cur.parent.onFieldSet(cur.parentField)
		}
	}
}

// onFieldSet records field as the set member of its oneof, clearing the
// previous member.
func (m *Message) onFieldSet(field *schema.Field) {
	o := m.desc.OneofOf(field)
	if o == nil {
		return
	}
	if prev, ok := m.oneofs[o.Name]; ok && prev != field.Number {
		m.dropField(prev)
	}
	m.oneofs[o.Name] = field.Number
}

// dropField removes the value stored for number, detaching sub-messages.
func (m *Message) dropField(number int32) {
	if child, ok := m.fields[number].(*Message); ok {
		child.detach()
	}
	delete(m.fields, number)
}

func (m *Message) detach() {
	m.parent = nil
	m.parentField = nil
	m.present = false
}

func (m *Message) adopt(child *Message, field *schema.Field, present bool) {
	child.parent = m
	child.parentField = field
	child.present = present
}

func (m *Message) field(name string) (*schema.Field, error) {
	f := m.desc.FieldByName(name)
	if f == nil {
		return nil, fmt.Errorf("%w: message %s has no field %q", ErrUnknownField, m.desc.DisplayName(), name)
	}
	return f, nil
}

func (m *Message) messageDesc(f *schema.Field) (*schema.Message, error) {
	ft := &f.Type
	if ft.Kind == schema.KindMap {
		ft = ft.MapValue
	}
	if m.resolver == nil {
		return nil, fmt.Errorf("no resolver for message type %s", ft.MessageType)
	}
	return m.resolver.GetMessage(ft.MessageType)
}

func (m *Message) enumDesc(ft *schema.FieldType) (*schema.Enum, error) {
	if ft.Kind != schema.KindEnum {
		return nil, nil
	}
	if m.resolver == nil {
		return nil, fmt.Errorf("no resolver for enum type %s", ft.EnumType)
	}
	return m.resolver.GetEnum(ft.EnumType)
}

// isSet reports whether a stored value counts as set.
func isSet(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case *Message:
		return t.present
	case *List:
		return t.Len() > 0
	case *Map:
		return t.Len() > 0
	default:
		return true
	}
}

// Get returns the value of the named field. Unset scalars report their
// default; unset sub-messages, lists and maps are created empty, and a
// sub-message only becomes set once it is modified.
func (m *Message) Get(name string) (interface{}, error) {
	f, err := m.field(name)
	if err != nil {
		return nil, err
	}
	return m.get(f)
}

func (m *Message) get(f *schema.Field) (interface{}, error) {
	if v, ok := m.fields[f.Number]; ok {
		return v, nil
	}
	switch {
	case f.IsMap():
		mp, err := newMap(m, f)
		if err != nil {
			return nil, err
		}
		m.fields[f.Number] = mp
		return mp, nil
	case f.IsRepeated():
		l, err := newList(m, f)
		if err != nil {
			return nil, err
		}
		m.fields[f.Number] = l
		return l, nil
	case f.IsMessage():
		desc, err := m.messageDesc(f)
		if err != nil {
			return nil, err
		}
		child := New(desc, m.resolver)
		m.adopt(child, f, false)
		m.fields[f.Number] = child
		return child, nil
	default:
		enum, err := m.enumDesc(&f.Type)
		if err != nil {
			return nil, err
		}
		return fieldtype.DefaultValue(f, enum)
	}
}

// Mutable returns the named sub-message, marking it as set.
func (m *Message) Mutable(name string) (*Message, error) {
	f, err := m.field(name)
	if err != nil {
		return nil, err
	}
	if !f.IsMessage() || f.IsRepeated() {
		return nil, fmt.Errorf("%w: %s is not a singular message field", ErrWrongKind, name)
	}
	return m.mutableChild(f)
}

func (m *Message) mutableChild(f *schema.Field) (*Message, error) {
	v, err := m.get(f)
	if err != nil {
		return nil, err
	}
	child := v.(*Message)
	if !child.present {
		child.present = true
		m.onFieldSet(f)
		m.modified()
	}
	return child, nil
}

// List returns the named repeated field.
func (m *Message) List(name string) (*List, error) {
	f, err := m.field(name)
	if err != nil {
		return nil, err
	}
	if f.Label != schema.LabelRepeated || f.IsMap() {
		return nil, fmt.Errorf("%w: %s is not a repeated field", ErrWrongKind, name)
	}
	v, err := m.get(f)
	if err != nil {
		return nil, err
	}
	return v.(*List), nil
}

// Map returns the named map field.
func (m *Message) Map(name string) (*Map, error) {
	f, err := m.field(name)
	if err != nil {
		return nil, err
	}
	if !f.IsMap() {
		return nil, fmt.Errorf("%w: %s is not a map field", ErrWrongKind, name)
	}
	v, err := m.get(f)
	if err != nil {
		return nil, err
	}
	return v.(*Map), nil
}

// Set assigns a singular field. Scalars are checked and converted to their
// canonical type; a *Message value is copied into the sub-message field.
func (m *Message) Set(name string, value interface{}) error {
	f, err := m.field(name)
	if err != nil {
		return err
	}
	if f.IsRepeated() {
		return fmt.Errorf("%w: cannot assign to repeated field %s, use List or Map", ErrWrongKind, name)
	}
	if f.IsMessage() {
		src, ok := value.(*Message)
		if !ok {
			return fmt.Errorf("%w: field %s expects *dynamic.Message, got %T", ErrWrongKind, name, value)
		}
		child, err := m.mutableChild(f)
		if err != nil {
			return err
		}
		return child.CopyFrom(src)
	}
	enum, err := m.enumDesc(&f.Type)
	if err != nil {
		return err
	}
	v, err := fieldtype.CheckValue(f, enum, value)
	if err != nil {
		return err
	}
	m.setScalar(f, v)
	return nil
}

// setScalar stores a checked value. Fields without presence do not keep
// zero values, so the field reads as unset and is not serialized.
func (m *Message) setScalar(f *schema.Field, v interface{}) {
	if !f.HasPresence(m.desc) && isZero(v) {
		delete(m.fields, f.Number)
	} else {
		m.fields[f.Number] = v
		m.onFieldSet(f)
	}
	m.modified()
}

func isZero(v interface{}) bool {
	switch t := v.(type) {
	case int32:
		return t == 0
	case int64:
		return t == 0
	case uint32:
		return t == 0
	case uint64:
		return t == 0
	case float32:
		return t == 0 && !math.Signbit(float64(t))
	case float64:
		return t == 0 && !math.Signbit(t)
	case bool:
		return !t
	case string:
		return t == ""
	case []byte:
		return len(t) == 0
	}
	return false
}

// Has reports whether a field with presence is set. Repeated fields and
// proto3 scalars outside a oneof have no presence.
func (m *Message) Has(name string) (bool, error) {
	f, err := m.field(name)
	if err != nil {
		return false, err
	}
	if !f.HasPresence(m.desc) {
		return false, fmt.Errorf("%w: %s", ErrNoPresence, name)
	}
	return isSet(m.fields[f.Number]), nil
}

// ClearField resets a field, or whichever member of the named oneof is set.
func (m *Message) ClearField(name string) error {
	if o := m.desc.OneofByName(name); o != nil {
		if number, ok := m.oneofs[name]; ok {
			m.dropField(number)
			delete(m.oneofs, name)
		}
		m.modified()
		return nil
	}
	f, err := m.field(name)
	if err != nil {
		return err
	}
	m.dropField(f.Number)
	if o := m.desc.OneofOf(f); o != nil && m.oneofs[o.Name] == f.Number {
		delete(m.oneofs, o.Name)
	}
	m.modified()
	return nil
}

// WhichOneof returns the name of the set member of the named oneof, or "".
func (m *Message) WhichOneof(name string) (string, error) {
	o := m.desc.OneofByName(name)
	if o == nil {
		return "", fmt.Errorf("%w: message %s has no oneof %q", ErrUnknownField, m.desc.DisplayName(), name)
	}
	number, ok := m.oneofs[name]
	if !ok {
		return "", nil
	}
	f := m.desc.FieldByNumber(number)
	if f == nil || !isSet(m.fields[number]) {
		return "", nil
	}
	return f.Name, nil
}

// ListFields returns the set fields ordered by field number.
func (m *Message) ListFields() []FieldValue {
	numbers := make([]int32, 0, len(m.fields))
	for n, v := range m.fields {
		if isSet(v) {
			numbers = append(numbers, n)
		}
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	out := make([]FieldValue, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, FieldValue{Field: m.desc.FieldByNumber(n), Value: m.fields[n]})
	}
	return out
}

// UnknownFields returns the fields that were parsed but are not declared,
// in the order they were read.
func (m *Message) UnknownFields() []wire.UnknownField {
	out := make([]wire.UnknownField, len(m.unknown))
	copy(out, m.unknown)
	return out
}

// DiscardUnknown drops unknown fields from m and all its sub-messages.
func (m *Message) DiscardUnknown() {
	if len(m.unknown) > 0 {
		m.unknown = nil
		m.modified()
	}
	for _, fv := range m.ListFields() {
		switch v := fv.Value.(type) {
		case *Message:
			v.DiscardUnknown()
		case *List:
			for _, e := range v.values {
				if sub, ok := e.(*Message); ok {
					sub.DiscardUnknown()
				}
			}
		case *Map:
			for _, e := range v.entries {
				if sub, ok := e.(*Message); ok {
					sub.DiscardUnknown()
				}
			}
		}
	}
}

func (m *Message) String() string {
	return fmt.Sprintf("%s{%d fields, %d unknown}", m.desc.DisplayName(), len(m.ListFields()), len(m.unknown))
}
