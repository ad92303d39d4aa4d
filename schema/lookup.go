package schema

// fieldIndex maps numbers and names to fields and oneofs of one message.
type fieldIndex struct {
	byNumber    map[int32]*Field
	byName      map[string]*Field
	oneofOf     map[*Field]*Oneof
	oneofByName map[string]*Oneof
}

// lookups returns the message's index, building it on first use. Fields and
// OneofGroups must not change once the message has been looked into.
func (m *Message) lookups() *fieldIndex {
	if idx := m.index.Load(); idx != nil {
		return idx
	}
	idx := &fieldIndex{
		byNumber:    make(map[int32]*Field, len(m.Fields)),
		byName:      make(map[string]*Field, len(m.Fields)),
		oneofOf:     make(map[*Field]*Oneof),
		oneofByName: make(map[string]*Oneof, len(m.OneofGroups)),
	}
	for _, f := range m.Fields {
		idx.add(f)
	}
	for _, o := range m.OneofGroups {
		if _, dup := idx.oneofByName[o.Name]; !dup {
			idx.oneofByName[o.Name] = o
		}
		for _, f := range o.Fields {
			idx.add(f)
			idx.oneofOf[f] = o
		}
	}
	m.index.Store(idx)
	return idx
}

// add keeps the first field seen for a number or name.
func (idx *fieldIndex) add(f *Field) {
	if _, dup := idx.byNumber[f.Number]; !dup {
		idx.byNumber[f.Number] = f
	}
	if _, dup := idx.byName[f.Name]; !dup {
		idx.byName[f.Name] = f
	}
}

// FieldByNumber returns the field (including oneof members) with the given number.
func (m *Message) FieldByNumber(number int32) *Field {
	return m.lookups().byNumber[number]
}

// FieldByName returns the field (including oneof members) with the given name.
func (m *Message) FieldByName(name string) *Field {
	return m.lookups().byName[name]
}

// AllFields returns the regular fields followed by the oneof members.
func (m *Message) AllFields() []*Field {
	all := make([]*Field, 0, len(m.Fields))
	all = append(all, m.Fields...)
	for _, o := range m.OneofGroups {
		all = append(all, o.Fields...)
	}
	return all
}

// OneofOf returns the oneof group containing f, or nil.
func (m *Message) OneofOf(f *Field) *Oneof {
	return m.lookups().oneofOf[f]
}

// OneofByName returns the oneof group with the given name, or nil.
func (m *Message) OneofByName(name string) *Oneof {
	return m.lookups().oneofByName[name]
}

// IsProto3 reports whether the message was declared with proto3 syntax.
func (m *Message) IsProto3() bool {
	return m.Syntax == SyntaxProto3
}

// InExtensionRange reports whether number falls into a declared extension range.
func (m *Message) InExtensionRange(number int32) bool {
	for _, r := range m.ExtensionRanges {
		if number >= r.Start && number < r.End {
			return true
		}
	}
	return false
}

// DisplayName is the full name when known, otherwise the short name.
func (m *Message) DisplayName() string {
	if m.FullName != "" {
		return m.FullName
	}
	return m.Name
}

// IsRepeated reports whether the field holds a list or a map.
func (f *Field) IsRepeated() bool {
	return f.Label == LabelRepeated || f.Type.Kind == KindMap
}

// IsMap reports whether the field is a map field.
func (f *Field) IsMap() bool {
	return f.Type.Kind == KindMap
}

// IsMessage reports whether values of the field are sub-messages (message or group).
func (f *Field) IsMessage() bool {
	return f.Type.Kind == KindMessage || f.Type.Kind == KindGroup
}

// IsRequired reports whether the field is a proto2 required field.
func (f *Field) IsRequired() bool {
	return f.Label == LabelRequired
}

// Packable reports whether repeated values of this type may use packed encoding.
func (f *Field) Packable() bool {
	switch f.Type.Kind {
	case KindEnum:
		return true
	case KindPrimitive:
		return IsPackedType(f.Type.PrimitiveType)
	}
	return false
}

// IsPacked reports whether a repeated field is serialized in packed form inside m.
// Explicit options win; otherwise proto3 packs by default.
func (f *Field) IsPacked(m *Message) bool {
	if f.Label != LabelRepeated || !f.Packable() {
		return false
	}
	if f.Packed != nil {
		return *f.Packed
	}
	return m.IsProto3()
}

// HasPresence reports whether the field tracks explicit presence inside m.
func (f *Field) HasPresence(m *Message) bool {
	if f.IsRepeated() {
		return false
	}
	if !m.IsProto3() || f.IsMessage() || f.Proto3Optional {
		return true
	}
	return m.OneofOf(f) != nil
}

// Value returns the enum value with the given number, or nil.
func (e *Enum) Value(number int32) *EnumValue {
	for _, v := range e.Values {
		if v.Number == number {
			return v
		}
	}
	return nil
}

// ValueByName returns the enum value with the given name, or nil.
func (e *Enum) ValueByName(name string) *EnumValue {
	for _, v := range e.Values {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// DisplayName is the full name when known, otherwise the short name.
func (e *Enum) DisplayName() string {
	if e.FullName != "" {
		return e.FullName
	}
	return e.Name
}
