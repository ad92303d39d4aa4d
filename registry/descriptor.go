package registry

import (
	"fmt"
	"os"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/protolite/dynpb/schema"
)

// RegisterFile registers a linked file descriptor and, first, the files it
// imports. Files already present are skipped.
func (r *Registry) RegisterFile(fd protoreflect.FileDescriptor) error {
	if fd.IsPlaceholder() || r.hasFile(fd.Path()) {
		return nil
	}
	imports := fd.Imports()
	for i := 0; i < imports.Len(); i++ {
		if err := r.RegisterFile(imports.Get(i).FileDescriptor); err != nil {
			return err
		}
	}
	return r.addFile(fileFromDescriptor(fd))
}

// RegisterDescriptorSet links and registers every file of a
// FileDescriptorSet, as produced by protoc --descriptor_set_out.
func (r *Registry) RegisterDescriptorSet(set *descriptorpb.FileDescriptorSet) error {
	files, err := protodesc.NewFiles(set)
	if err != nil {
		return fmt.Errorf("invalid descriptor set: %w", err)
	}
	var rangeErr error
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		rangeErr = r.RegisterFile(fd)
		return rangeErr == nil
	})
	return rangeErr
}

// LoadDescriptorSet reads a serialized FileDescriptorSet from path.
func (r *Registry) LoadDescriptorSet(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read descriptor set: %w", err)
	}
	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(b, set); err != nil {
		return fmt.Errorf("failed to decode descriptor set %s: %w", path, err)
	}
	return r.RegisterDescriptorSet(set)
}

// RegisterWellKnownTypes registers the google/protobuf types compiled into
// the binary (Any, Duration, Empty, FieldMask, Struct, Timestamp, wrappers
// and descriptor.proto).
func (r *Registry) RegisterWellKnownTypes() error {
	for _, fd := range []protoreflect.FileDescriptor{
		anypb.File_google_protobuf_any_proto,
		durationpb.File_google_protobuf_duration_proto,
		emptypb.File_google_protobuf_empty_proto,
		fieldmaskpb.File_google_protobuf_field_mask_proto,
		structpb.File_google_protobuf_struct_proto,
		timestamppb.File_google_protobuf_timestamp_proto,
		wrapperspb.File_google_protobuf_wrappers_proto,
		descriptorpb.File_google_protobuf_descriptor_proto,
	} {
		if err := r.RegisterFile(fd); err != nil {
			return err
		}
	}
	return nil
}

func syntaxOf(fd protoreflect.FileDescriptor) string {
	switch fd.Syntax() {
	case protoreflect.Proto3:
		return schema.SyntaxProto3
	case protoreflect.Editions:
		return schema.SyntaxEditions
	default:
		return schema.SyntaxProto2
	}
}

func fileFromDescriptor(fd protoreflect.FileDescriptor) *schema.ProtoFile {
	syntax := syntaxOf(fd)
	file := &schema.ProtoFile{
		Name:    fd.Path(),
		Package: string(fd.Package()),
		Syntax:  syntax,
	}
	imports := fd.Imports()
	for i := 0; i < imports.Len(); i++ {
		imp := imports.Get(i)
		file.Imports = append(file.Imports, &schema.Import{Path: imp.Path(), Public: imp.IsPublic, Weak: imp.IsWeak})
	}
	msgs := fd.Messages()
	for i := 0; i < msgs.Len(); i++ {
		file.Messages = append(file.Messages, messageFromDescriptor(msgs.Get(i), syntax))
	}
	enums := fd.Enums()
	for i := 0; i < enums.Len(); i++ {
		file.Enums = append(file.Enums, enumFromDescriptor(enums.Get(i)))
	}
	services := fd.Services()
	for i := 0; i < services.Len(); i++ {
		file.Services = append(file.Services, serviceFromDescriptor(services.Get(i)))
	}
	return file
}

func messageFromDescriptor(md protoreflect.MessageDescriptor, syntax string) *schema.Message {
	m := &schema.Message{
		Name:     string(md.Name()),
		FullName: string(md.FullName()),
		Syntax:   syntax,
		MapEntry: md.IsMapEntry(),
	}
	if opts, ok := md.Options().(*descriptorpb.MessageOptions); ok {
		m.MessageSetWireFormat = opts.GetMessageSetWireFormat()
	}

	oneofs := md.Oneofs()
	oneofIndex := make(map[protoreflect.FullName]int32)
	for i := 0; i < oneofs.Len(); i++ {
		od := oneofs.Get(i)
		if od.IsSynthetic() {
			continue
		}
		oneofIndex[od.FullName()] = int32(len(m.OneofGroups))
		m.OneofGroups = append(m.OneofGroups, &schema.Oneof{Name: string(od.Name())})
	}

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fdesc := fields.Get(i)
		f := fieldFromDescriptor(fdesc)
		if od := fdesc.ContainingOneof(); od != nil && !od.IsSynthetic() {
			idx := oneofIndex[od.FullName()]
			f.OneofIndex = idx
			m.OneofGroups[idx].Fields = append(m.OneofGroups[idx].Fields, f)
			continue
		}
		m.Fields = append(m.Fields, f)
	}

	ranges := md.ExtensionRanges()
	for i := 0; i < ranges.Len(); i++ {
		rg := ranges.Get(i)
		m.ExtensionRanges = append(m.ExtensionRanges, schema.ExtensionRange{Start: int32(rg[0]), End: int32(rg[1])})
	}

	nested := md.Messages()
	for i := 0; i < nested.Len(); i++ {
		m.NestedTypes = append(m.NestedTypes, messageFromDescriptor(nested.Get(i), syntax))
	}
	enums := md.Enums()
	for i := 0; i < enums.Len(); i++ {
		m.NestedEnums = append(m.NestedEnums, enumFromDescriptor(enums.Get(i)))
	}
	return m
}

func fieldFromDescriptor(fd protoreflect.FieldDescriptor) *schema.Field {
	f := &schema.Field{
		Name:           string(fd.Name()),
		Number:         int32(fd.Number()),
		JsonName:       fd.JSONName(),
		OneofIndex:     -1,
		Proto3Optional: fd.HasOptionalKeyword() && fd.ParentFile().Syntax() == protoreflect.Proto3,
	}
	switch fd.Cardinality() {
	case protoreflect.Repeated:
		f.Label = schema.LabelRepeated
	case protoreflect.Required:
		f.Label = schema.LabelRequired
	default:
		f.Label = schema.LabelOptional
	}

	if fd.IsMap() {
		key, value := fieldTypeOf(fd.MapKey()), fieldTypeOf(fd.MapValue())
		f.Type = schema.FieldType{Kind: schema.KindMap, MapKey: &key, MapValue: &value}
		return f
	}
	f.Type = fieldTypeOf(fd)
	if fd.IsList() && f.Packable() {
		packed := fd.IsPacked()
		f.Packed = &packed
	}
	if fd.HasDefault() {
		f.DefaultValue = defaultString(fd)
	}
	return f
}

func fieldTypeOf(fd protoreflect.FieldDescriptor) schema.FieldType {
	switch fd.Kind() {
	case protoreflect.MessageKind:
		return schema.FieldType{Kind: schema.KindMessage, MessageType: string(fd.Message().FullName())}
	case protoreflect.GroupKind:
		return schema.FieldType{Kind: schema.KindGroup, MessageType: string(fd.Message().FullName())}
	case protoreflect.EnumKind:
		return schema.FieldType{Kind: schema.KindEnum, EnumType: string(fd.Enum().FullName())}
	default:
		pt, _ := schema.LookupPrimitive(fd.Kind().String())
		return schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: pt}
	}
}

// defaultString renders a declared default in .proto literal form, the form
// schema.Field.DefaultValue holds.
func defaultString(fd protoreflect.FieldDescriptor) string {
	v := fd.Default()
	switch fd.Kind() {
	case protoreflect.EnumKind:
		if ev := fd.DefaultEnumValue(); ev != nil {
			return string(ev.Name())
		}
		return strconv.FormatInt(int64(v.Enum()), 10)
	case protoreflect.BoolKind:
		return strconv.FormatBool(v.Bool())
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return strconv.FormatInt(v.Int(), 10)
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind, protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return strconv.FormatUint(v.Uint(), 10)
	case protoreflect.FloatKind:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32)
	case protoreflect.DoubleKind:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.BytesKind:
		quoted := strconv.Quote(string(v.Bytes()))
		return quoted[1 : len(quoted)-1]
	}
	return ""
}

func enumFromDescriptor(ed protoreflect.EnumDescriptor) *schema.Enum {
	en := &schema.Enum{
		Name:     string(ed.Name()),
		FullName: string(ed.FullName()),
		Closed:   ed.IsClosed(),
	}
	if opts, ok := ed.Options().(*descriptorpb.EnumOptions); ok {
		en.AllowAlias = opts.GetAllowAlias()
	}
	values := ed.Values()
	for i := 0; i < values.Len(); i++ {
		v := values.Get(i)
		en.Values = append(en.Values, &schema.EnumValue{Name: string(v.Name()), Number: int32(v.Number()), JsonName: string(v.Name())})
	}
	return en
}

func serviceFromDescriptor(sd protoreflect.ServiceDescriptor) *schema.Service {
	s := &schema.Service{Name: string(sd.Name())}
	methods := sd.Methods()
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		s.Methods = append(s.Methods, &schema.Method{
			Name:            string(md.Name()),
			InputType:       string(md.Input().FullName()),
			OutputType:      string(md.Output().FullName()),
			ClientStreaming: md.IsStreamingClient(),
			ServerStreaming: md.IsStreamingServer(),
		})
	}
	return s
}
