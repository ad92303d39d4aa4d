// Package dynpb reads and writes protobuf messages described by .proto
// sources or descriptor sets, without generated code.
package dynpb

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/op/go-logging"

	"github.com/protolite/dynpb/dynamic"
	"github.com/protolite/dynpb/registry"
	"github.com/protolite/dynpb/schema"
)

var log = logging.MustGetLogger("dynpb")

// ===== SCHEMA-AWARE API =====

// Protolite provides schema-aware protobuf operations without generated code
type Protolite struct {
	cfg      Config
	registry *registry.Registry
}

// New creates a Protolite instance and loads the schemas named by cfg.
func New(cfg Config) (*Protolite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Protolite{
		cfg:      cfg,
		registry: registry.NewRegistry(cfg.ProtoPaths...),
	}
	if cfg.WellKnownTypes {
		if err := p.registry.RegisterWellKnownTypes(); err != nil {
			return nil, err
		}
	}
	for _, set := range cfg.DescriptorSets {
		if err := p.LoadDescriptorSet(set); err != nil {
			return nil, err
		}
	}
	if len(cfg.Files) == 0 {
		return p, nil
	}
	if cfg.Compile {
		if err := p.Compile(context.Background(), cfg.Files...); err != nil {
			return nil, err
		}
		return p, nil
	}
	for _, f := range cfg.Files {
		if err := p.registry.LoadFile(f); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// LoadRepo registers a hand-built protobuf repository (collection of files).
func (p *Protolite) LoadRepo(repo *schema.ProtoRepo) error {
	return p.registry.LoadRepo(repo)
}

// LoadSchemaFromFile loads a .proto file, or every .proto file below a
// directory, together with their imports.
func (p *Protolite) LoadSchemaFromFile(path string) error {
	return p.registry.LoadSchema(path)
}

// LoadDescriptorSet loads a serialized FileDescriptorSet.
func (p *Protolite) LoadDescriptorSet(path string) error {
	return p.registry.LoadDescriptorSet(path)
}

// Compile loads files (relative to the configured proto paths) with the
// protocompile front end.
func (p *Protolite) Compile(ctx context.Context, files ...string) error {
	return p.registry.Compile(ctx, files...)
}

// NewMessage creates an empty message of the named type.
func (p *Protolite) NewMessage(messageType string) (*dynamic.Message, error) {
	desc, err := p.registry.GetMessage(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %s: %w", messageType, err)
	}
	return dynamic.New(desc, p.registry), nil
}

func (p *Protolite) unmarshalOptions() dynamic.UnmarshalOptions {
	return dynamic.UnmarshalOptions{
		DiscardUnknown: p.cfg.DiscardUnknown,
		AllowPartial:   p.cfg.AllowPartial,
		RecursionLimit: p.cfg.RecursionLimit,
	}
}

// Parse decodes protobuf bytes into a new message of the named type.
func (p *Protolite) Parse(data []byte, messageType string) (*dynamic.Message, error) {
	msg, err := p.NewMessage(messageType)
	if err != nil {
		return nil, err
	}
	if err := p.unmarshalOptions().Unmarshal(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Marshal encodes msg to protobuf bytes.
func (p *Protolite) Marshal(msg *dynamic.Message) ([]byte, error) {
	return dynamic.MarshalOptions{AllowPartial: p.cfg.AllowPartial}.Marshal(msg)
}

// Unmarshal decodes protobuf bytes of the named type into the struct v
// points to. Struct fields are matched to message fields by their json tag,
// or else by name ignoring case and underscores. Nested messages fill
// nested structs or struct pointers.
func (p *Protolite) Unmarshal(data []byte, messageType string, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("unmarshal target must be a pointer to struct")
	}

	msg, err := p.Parse(data, messageType)
	if err != nil {
		return err
	}
	return p.mapToStruct(ToMap(msg), rv.Elem())
}

// ToMap converts a message into plain Go values keyed by field name.
// Sub-messages become nested maps, repeated fields []interface{} and map
// fields map[interface{}]interface{}. Unset fields are omitted.
func ToMap(msg *dynamic.Message) map[string]interface{} {
	out := make(map[string]interface{})
	for _, fv := range msg.ListFields() {
		out[fv.Field.Name] = plainValue(fv.Value)
	}
	return out
}

func plainValue(v interface{}) interface{} {
	switch x := v.(type) {
	case *dynamic.Message:
		return ToMap(x)
	case *dynamic.List:
		values := x.Values()
		out := make([]interface{}, len(values))
		for i, e := range values {
			out[i] = plainValue(e)
		}
		return out
	case *dynamic.Map:
		out := make(map[interface{}]interface{}, x.Len())
		x.Range(func(key, value interface{}) bool {
			out[key] = plainValue(value)
			return true
		})
		return out
	default:
		return v
	}
}

// mapToStruct maps parsed result to struct fields
func (p *Protolite) mapToStruct(data map[string]interface{}, rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fieldValue := rv.Field(i)

		if !fieldValue.CanSet() {
			continue
		}

		value, ok := lookupField(data, field)
		if !ok {
			continue
		}
		if err := p.setFieldValue(fieldValue, value); err != nil {
			return fmt.Errorf("failed to set field %s: %v", field.Name, err)
		}
	}
	return nil
}

func lookupField(data map[string]interface{}, field reflect.StructField) (interface{}, bool) {
	if tag := strings.Split(field.Tag.Get("json"), ",")[0]; tag != "" && tag != "-" {
		if v, ok := data[tag]; ok {
			return v, true
		}
	}
	want := normalizeName(field.Name)
	for name, v := range data {
		if normalizeName(name) == want {
			return v, true
		}
	}
	return nil, false
}

func normalizeName(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

// setFieldValue sets a struct field with type conversion
func (p *Protolite) setFieldValue(fieldValue reflect.Value, value interface{}) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case map[string]interface{}:
		switch {
		case fieldValue.Kind() == reflect.Struct:
			return p.mapToStruct(v, fieldValue)
		case fieldValue.Kind() == reflect.Ptr && fieldValue.Type().Elem().Kind() == reflect.Struct:
			nested := reflect.New(fieldValue.Type().Elem())
			if err := p.mapToStruct(v, nested.Elem()); err != nil {
				return err
			}
			fieldValue.Set(nested)
			return nil
		}
	case []interface{}:
		if fieldValue.Kind() == reflect.Slice {
			out := reflect.MakeSlice(fieldValue.Type(), len(v), len(v))
			for i, e := range v {
				if err := p.setFieldValue(out.Index(i), e); err != nil {
					return fmt.Errorf("index %d: %v", i, err)
				}
			}
			fieldValue.Set(out)
			return nil
		}
	case map[interface{}]interface{}:
		if fieldValue.Kind() == reflect.Map {
			out := reflect.MakeMapWithSize(fieldValue.Type(), len(v))
			for k, e := range v {
				key := reflect.New(fieldValue.Type().Key()).Elem()
				if err := p.setFieldValue(key, k); err != nil {
					return fmt.Errorf("key %v: %v", k, err)
				}
				elem := reflect.New(fieldValue.Type().Elem()).Elem()
				if err := p.setFieldValue(elem, e); err != nil {
					return fmt.Errorf("key %v: %v", k, err)
				}
				out.SetMapIndex(key, elem)
			}
			fieldValue.Set(out)
			return nil
		}
	}

	sourceValue := reflect.ValueOf(value)
	if sourceValue.Type().AssignableTo(fieldValue.Type()) {
		fieldValue.Set(sourceValue)
		return nil
	}

	if sourceValue.Type().ConvertibleTo(fieldValue.Type()) {
		if err := checkConversion(sourceValue, fieldValue.Type()); err != nil {
			return err
		}
		fieldValue.Set(sourceValue.Convert(fieldValue.Type()))
		return nil
	}

	return fmt.Errorf("cannot convert %T to %s", value, fieldValue.Type())
}

// checkConversion rejects conversions reflect allows but that would change
// the value. Numbers must fit the target type; integers never become strings.
func checkConversion(src reflect.Value, dst reflect.Type) error {
	zero := reflect.New(dst).Elem()
	switch {
	case isInt(src.Kind()):
		n := src.Int()
		switch {
		case dst.Kind() == reflect.String:
			return fmt.Errorf("cannot convert %s to %s", src.Type(), dst)
		case isInt(dst.Kind()) && zero.OverflowInt(n):
			return fmt.Errorf("value %d overflows %s", n, dst)
		case isUint(dst.Kind()) && (n < 0 || zero.OverflowUint(uint64(n))):
			return fmt.Errorf("value %d overflows %s", n, dst)
		}
	case isUint(src.Kind()):
		n := src.Uint()
		switch {
		case dst.Kind() == reflect.String:
			return fmt.Errorf("cannot convert %s to %s", src.Type(), dst)
		case isInt(dst.Kind()) && (n > math.MaxInt64 || zero.OverflowInt(int64(n))):
			return fmt.Errorf("value %d overflows %s", n, dst)
		case isUint(dst.Kind()) && zero.OverflowUint(n):
			return fmt.Errorf("value %d overflows %s", n, dst)
		}
	case src.Kind() == reflect.Float32 || src.Kind() == reflect.Float64:
		f := src.Float()
		switch {
		case isInt(dst.Kind()) || isUint(dst.Kind()):
			if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
				return fmt.Errorf("value %v is not an integer", f)
			}
			if isInt(dst.Kind()) && (f < math.MinInt64 || f >= math.MaxInt64 || zero.OverflowInt(int64(f))) {
				return fmt.Errorf("value %v overflows %s", f, dst)
			}
			if isUint(dst.Kind()) && (f < 0 || f >= math.MaxUint64 || zero.OverflowUint(uint64(f))) {
				return fmt.Errorf("value %v overflows %s", f, dst)
			}
		case dst.Kind() == reflect.Float32 && zero.OverflowFloat(f):
			return fmt.Errorf("value %v overflows %s", f, dst)
		}
	}
	return nil
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

// ===== REGISTRY ACCESS =====

func (p *Protolite) GetRegistry() *registry.Registry { return p.registry }
func (p *Protolite) ListMessages() []string          { return p.registry.ListMessages() }
func (p *Protolite) ListEnums() []string             { return p.registry.ListEnums() }
func (p *Protolite) ListServices() []string          { return p.registry.ListServices() }
