package dynamic

import (
	"fmt"
	"sort"

	"github.com/protolite/dynpb/fieldtype"
	"github.com/protolite/dynpb/schema"
	"github.com/protolite/dynpb/wire"
)

// Map entry field numbers.
const (
	mapKeyNumber   wire.FieldNumber = 1
	mapValueNumber wire.FieldNumber = 2
)

// Map holds the entries of a map field. Keys are stored in their canonical
// scalar type; message values are *Message owned by the map.
type Map struct {
	owner     *Message
	field     *schema.Field
	keyType   *schema.FieldType
	valueType *schema.FieldType
	valueEnum *schema.Enum
	valueDesc *schema.Message
	entries   map[interface{}]interface{}
}

func newMap(owner *Message, f *schema.Field) (*Map, error) {
	if f.Type.MapKey == nil || f.Type.MapValue == nil {
		return nil, fmt.Errorf("map field %s has no key or value type", f.Name)
	}
	mp := &Map{
		owner:     owner,
		field:     f,
		keyType:   f.Type.MapKey,
		valueType: f.Type.MapValue,
		entries:   make(map[interface{}]interface{}),
	}
	var err error
	switch mp.valueType.Kind {
	case schema.KindMessage:
		if mp.valueDesc, err = owner.messageDesc(f); err != nil {
			return nil, err
		}
	case schema.KindEnum:
		if mp.valueEnum, err = owner.enumDesc(mp.valueType); err != nil {
			return nil, err
		}
	}
	return mp, nil
}

// Field returns the descriptor of the map field.
func (mp *Map) Field() *schema.Field { return mp.field }

// Len returns the number of entries.
func (mp *Map) Len() int { return len(mp.entries) }

func (mp *Map) checkKey(key interface{}) (interface{}, error) {
	return fieldtype.CheckType(mp.field.Name+".key", mp.keyType, nil, key)
}

// Get returns the value stored under key.
func (mp *Map) Get(key interface{}) (interface{}, bool, error) {
	k, err := mp.checkKey(key)
	if err != nil {
		return nil, false, err
	}
	v, ok := mp.entries[k]
	return v, ok, nil
}

// Set stores a scalar value under key.
func (mp *Map) Set(key, value interface{}) error {
	if mp.valueDesc != nil {
		return fmt.Errorf("%w: use Mutable to set message values of %s", ErrWrongKind, mp.field.Name)
	}
	k, err := mp.checkKey(key)
	if err != nil {
		return err
	}
	v, err := fieldtype.CheckType(mp.field.Name+".value", mp.valueType, mp.valueEnum, value)
	if err != nil {
		return err
	}
	mp.entries[k] = v
	mp.owner.modified()
	return nil
}

// Mutable returns the message stored under key, creating it if absent.
func (mp *Map) Mutable(key interface{}) (*Message, error) {
	if mp.valueDesc == nil {
		return nil, fmt.Errorf("%w: %s does not hold message values", ErrWrongKind, mp.field.Name)
	}
	k, err := mp.checkKey(key)
	if err != nil {
		return nil, err
	}
	if v, ok := mp.entries[k]; ok {
		return v.(*Message), nil
	}
	child := mp.newValue()
	mp.entries[k] = child
	mp.owner.modified()
	return child, nil
}

func (mp *Map) newValue() *Message {
	child := New(mp.valueDesc, mp.owner.resolver)
	mp.owner.adopt(child, mp.field, true)
	return child
}

// Delete removes the entry for key, if any.
func (mp *Map) Delete(key interface{}) error {
	k, err := mp.checkKey(key)
	if err != nil {
		return err
	}
	if v, ok := mp.entries[k]; ok {
		if child, ok := v.(*Message); ok {
			child.detach()
		}
		delete(mp.entries, k)
		mp.owner.modified()
	}
	return nil
}

// Clear removes all entries.
func (mp *Map) Clear() {
	for _, v := range mp.entries {
		if child, ok := v.(*Message); ok {
			child.detach()
		}
	}
	mp.entries = make(map[interface{}]interface{})
	mp.owner.modified()
}

// Keys returns the keys in ascending order.
func (mp *Map) Keys() []interface{} {
	keys := make([]interface{}, 0, len(mp.entries))
	for k := range mp.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
	return keys
}

// Range calls fn for each entry in key order until fn returns false.
func (mp *Map) Range(fn func(key, value interface{}) bool) {
	for _, k := range mp.Keys() {
		if !fn(k, mp.entries[k]) {
			return
		}
	}
}

func lessKey(a, b interface{}) bool {
	switch x := a.(type) {
	case int32:
		return x < b.(int32)
	case int64:
		return x < b.(int64)
	case uint32:
		return x < b.(uint32)
	case uint64:
		return x < b.(uint64)
	case bool:
		return !x && b.(bool)
	case string:
		return x < b.(string)
	}
	return false
}

// mergeFrom overwrites entries by key with copies of other's entries.
func (mp *Map) mergeFrom(other *Map) error {
	for k, v := range other.entries {
		if src, ok := v.(*Message); ok {
			if old, ok := mp.entries[k].(*Message); ok {
				old.detach()
			}
			child := mp.newValue()
			if err := child.mergeFrom(src); err != nil {
				return err
			}
			mp.entries[k] = child
			continue
		}
		mp.entries[k] = copyScalar(v)
	}
	return nil
}

// mapEntry is the synthetic key/value message a map entry is encoded as.
type mapEntry struct {
	mp    *Map
	key   interface{}
	value interface{}
}

func (e mapEntry) codecs() (fieldtype.Codec, fieldtype.Codec) {
	kc, _ := fieldtype.Dispatch(e.mp.keyType)
	vc, _ := fieldtype.Dispatch(e.mp.valueType)
	return kc, vc
}

func (e mapEntry) ByteSize() int {
	kc, vc := e.codecs()
	return kc.Size(mapKeyNumber, e.key) + vc.Size(mapValueNumber, e.value)
}

func (e mapEntry) SerializeTo(enc *wire.Encoder) error {
	kc, vc := e.codecs()
	if err := kc.Encode(enc, mapKeyNumber, e.key); err != nil {
		return wire.WrapField(err, "key")
	}
	if err := vc.Encode(enc, mapValueNumber, e.value); err != nil {
		return wire.WrapField(err, "value")
	}
	return nil
}

// decodeEntry parses one serialized entry and stores it, replacing any
// existing value for the key. Absent keys and values take their zero value;
// other fields inside the entry are skipped.
func (mp *Map) decodeEntry(b []byte, opts UnmarshalOptions, depth int) error {
	kc, err := fieldtype.Dispatch(mp.keyType)
	if err != nil {
		return err
	}
	vc, err := fieldtype.Dispatch(mp.valueType)
	if err != nil {
		return err
	}

	key := fieldtype.ZeroValue(mp.keyType, nil)
	var value interface{}
	var valueMsg *Message
	if mp.valueDesc != nil {
		valueMsg = mp.newValue()
	} else {
		value = fieldtype.ZeroValue(mp.valueType, mp.valueEnum)
	}

	d := wire.NewDecoder(b).WithRecursionLimit(opts.recursionLimit())
	for !d.EndOfStream() {
		fn, wt, err := d.ReadFieldNumberAndWireType()
		if err != nil {
			return err
		}
		switch {
		case fn == mapKeyNumber && wt == kc.WireType:
			if key, err = kc.Decode(d); err != nil {
				return wire.WrapField(err, "key")
			}
		case fn == mapValueNumber && valueMsg != nil && wt == wire.WireBytes:
			err = d.ReadMessageInto(wire.MergerFunc(func(sub []byte) (int, error) {
				return valueMsg.mergeFromBytes(sub, opts, depth+1)
			}))
			if err != nil {
				return wire.WrapField(err, "value")
			}
		case fn == mapValueNumber && valueMsg == nil && wt == vc.WireType:
			if value, err = vc.Decode(d); err != nil {
				return wire.WrapField(err, "value")
			}
		default:
			if _, err := d.SkipField(fn, wt); err != nil {
				return err
			}
		}
	}

	if valueMsg != nil {
		value = valueMsg
	}
	if old, ok := mp.entries[key].(*Message); ok {
		old.detach()
	}
	mp.entries[key] = value
	return nil
}

// entryFor builds the wire.Message for one entry.
func (mp *Map) entryFor(key interface{}) mapEntry {
	return mapEntry{mp: mp, key: key, value: mp.entries[key]}
}
