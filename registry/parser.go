package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/protolite/dynpb/schema"
)

// maxFieldNumber is the exclusive upper bound used for "to max" ranges.
const maxFieldNumber = 1 << 29

// LoadFile parses name (an import path relative to ProtoPaths) and its
// imports with go-protoparser, resolves type references and registers the
// resulting descriptors.
func (r *Registry) LoadFile(name string) error {
	entities, err := r.getAllProtoInfo(name)
	if err != nil {
		return err
	}

	var (
		files []*schema.ProtoFile
		refs  []typeRef
	)
	for _, e := range entities {
		c := &converter{}
		file, err := c.convert(e)
		if err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
		files = append(files, file)
		refs = append(refs, c.refs...)
	}

	if err := r.resolveRefs(files, refs); err != nil {
		return err
	}
	for _, f := range files {
		if err := r.addFile(f); err != nil {
			return err
		}
	}
	return nil
}

// typeRef is a type name written in a .proto source, resolved once every
// file is parsed.
type typeRef struct {
	name  string
	scope string // full name of the enclosing message or the package
	bind  func(fullName string, isEnum bool) error
}

func (r *Registry) resolveRefs(files []*schema.ProtoFile, refs []typeRef) error {
	messages := make(map[string]struct{})
	enums := make(map[string]struct{})
	all := make(map[string]struct{})

	r.mu.RLock()
	for name := range r.messages {
		messages[name] = struct{}{}
	}
	for name := range r.enums {
		enums[name] = struct{}{}
	}
	r.mu.RUnlock()
	for _, f := range files {
		collectNames(f.Messages, f.Enums, messages, enums)
	}
	for name := range messages {
		all[name] = struct{}{}
	}
	for name := range enums {
		all[name] = struct{}{}
	}

	for _, ref := range refs {
		full, err := getReferencedType(ref.name, ref.scope, all)
		if err != nil {
			return fmt.Errorf("in %s: %w", ref.scope, err)
		}
		_, isEnum := enums[full]
		if err := ref.bind(full, isEnum); err != nil {
			return fmt.Errorf("in %s: %w", ref.scope, err)
		}
	}
	return nil
}

func collectNames(msgs []*schema.Message, enumDefs []*schema.Enum, messages, enums map[string]struct{}) {
	for _, m := range msgs {
		messages[m.FullName] = struct{}{}
		collectNames(m.NestedTypes, m.NestedEnums, messages, enums)
	}
	for _, e := range enumDefs {
		enums[e.FullName] = struct{}{}
	}
}

// converter turns a go-protoparser AST into schema descriptors, recording
// type references for later resolution.
type converter struct {
	file *schema.ProtoFile
	refs []typeRef
}

func (c *converter) convert(e *protoFileEntity) (*schema.ProtoFile, error) {
	c.file = &schema.ProtoFile{
		Name:   e.name,
		Syntax: schema.SyntaxProto2,
	}
	if e.body.Syntax != nil {
		c.file.Syntax = strings.Trim(e.body.Syntax.ProtobufVersion, `"'`)
	}

	// Package first: every full name depends on it.
	for _, v := range e.body.ProtoBody {
		if p, ok := v.(*parser.Package); ok {
			c.file.Package = p.Name
		}
	}

	for _, v := range e.body.ProtoBody {
		switch b := v.(type) {
		case *parser.Import:
			c.file.Imports = append(c.file.Imports, &schema.Import{
				Path:   strings.Trim(b.Location, `"`),
				Public: b.Modifier == parser.ImportModifierPublic,
				Weak:   b.Modifier == parser.ImportModifierWeak,
			})
		case *parser.Message:
			m, err := c.message(b.MessageName, b.MessageBody, c.file.Package)
			if err != nil {
				return nil, err
			}
			c.file.Messages = append(c.file.Messages, m)
		case *parser.Enum:
			en, err := c.enum(b, c.file.Package)
			if err != nil {
				return nil, err
			}
			c.file.Enums = append(c.file.Enums, en)
		case *parser.Service:
			c.file.Services = append(c.file.Services, c.service(b))
		}
	}
	return c.file, nil
}

func (c *converter) message(name string, body []parser.Visitee, scope string) (*schema.Message, error) {
	m := &schema.Message{
		Name:     name,
		FullName: getFullName(scope, name),
		Syntax:   c.file.Syntax,
	}

	for _, v := range body {
		switch x := v.(type) {
		case *parser.Field:
			f, err := c.field(x.FieldName, x.FieldNumber, x.Type, fieldLabel(x.IsRepeated, x.IsRequired), x.FieldOptions, m.FullName)
			if err != nil {
				return nil, err
			}
			f.Proto3Optional = x.IsOptional && c.file.Syntax == schema.SyntaxProto3
			m.Fields = append(m.Fields, f)

		case *parser.MapField:
			f, err := c.mapField(x, m.FullName)
			if err != nil {
				return nil, err
			}
			m.Fields = append(m.Fields, f)

		case *parser.Oneof:
			o := &schema.Oneof{Name: x.OneofName}
			for _, of := range x.OneofFields {
				f, err := c.field(of.FieldName, of.FieldNumber, of.Type, schema.LabelOptional, of.FieldOptions, m.FullName)
				if err != nil {
					return nil, err
				}
				f.OneofIndex = int32(len(m.OneofGroups))
				o.Fields = append(o.Fields, f)
			}
			m.OneofGroups = append(m.OneofGroups, o)

		case *parser.GroupField:
			nested, err := c.message(x.GroupName, x.MessageBody, m.FullName)
			if err != nil {
				return nil, err
			}
			m.NestedTypes = append(m.NestedTypes, nested)
			number, err := parseNumber(x.FieldNumber)
			if err != nil {
				return nil, fmt.Errorf("group %s: %w", x.GroupName, err)
			}
			fieldName := strings.ToLower(x.GroupName)
			m.Fields = append(m.Fields, &schema.Field{
				Name:       fieldName,
				Number:     number,
				Label:      fieldLabel(x.IsRepeated, x.IsRequired),
				Type:       schema.FieldType{Kind: schema.KindGroup, MessageType: nested.FullName},
				JsonName:   toLowerCamel(fieldName),
				OneofIndex: -1,
			})

		case *parser.Message:
			nested, err := c.message(x.MessageName, x.MessageBody, m.FullName)
			if err != nil {
				return nil, err
			}
			m.NestedTypes = append(m.NestedTypes, nested)

		case *parser.Enum:
			en, err := c.enum(x, m.FullName)
			if err != nil {
				return nil, err
			}
			m.NestedEnums = append(m.NestedEnums, en)

		case *parser.Extensions:
			for _, rg := range x.Ranges {
				er, err := extensionRange(rg)
				if err != nil {
					return nil, fmt.Errorf("message %s: %w", m.FullName, err)
				}
				m.ExtensionRanges = append(m.ExtensionRanges, er)
			}

		case *parser.Option:
			if x.OptionName == "message_set_wire_format" && x.Constant == "true" {
				m.MessageSetWireFormat = true
			}
		}
	}
	return m, nil
}

func fieldLabel(repeated, required bool) schema.FieldLabel {
	switch {
	case repeated:
		return schema.LabelRepeated
	case required:
		return schema.LabelRequired
	default:
		return schema.LabelOptional
	}
}

func parseNumber(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return int32(n), nil
}

func (c *converter) field(name, number, typeName string, label schema.FieldLabel,
	options []*parser.FieldOption, scope string) (*schema.Field, error) {
	n, err := parseNumber(number)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	f := &schema.Field{
		Name:       name,
		Number:     n,
		Label:      label,
		JsonName:   toLowerCamel(name),
		OneofIndex: -1,
	}
	c.fieldType(&f.Type, typeName, scope)

	for _, opt := range options {
		switch opt.OptionName {
		case "packed":
			packed := opt.Constant == "true"
			f.Packed = &packed
		case "default":
			f.DefaultValue = defaultLiteral(f.Type.PrimitiveType, opt.Constant)
		case "json_name":
			f.JsonName = strings.Trim(opt.Constant, `"'`)
		}
	}
	return f, nil
}

// fieldType fills ft for a scalar keyword, or records a reference to a
// message or enum type.
func (c *converter) fieldType(ft *schema.FieldType, typeName, scope string) {
	if pt, ok := schema.LookupPrimitive(typeName); ok {
		ft.Kind = schema.KindPrimitive
		ft.PrimitiveType = pt
		return
	}
	c.refs = append(c.refs, typeRef{
		name:  typeName,
		scope: scope,
		bind: func(fullName string, isEnum bool) error {
			if isEnum {
				ft.Kind = schema.KindEnum
				ft.EnumType = fullName
			} else {
				ft.Kind = schema.KindMessage
				ft.MessageType = fullName
			}
			return nil
		},
	})
}

func (c *converter) mapField(x *parser.MapField, scope string) (*schema.Field, error) {
	keyType, ok := schema.LookupPrimitive(x.KeyType)
	if !ok || keyType == schema.TypeFloat || keyType == schema.TypeDouble || keyType == schema.TypeBytes {
		return nil, fmt.Errorf("map %s: invalid key type %s", x.MapName, x.KeyType)
	}
	number, err := parseNumber(x.FieldNumber)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", x.MapName, err)
	}
	f := &schema.Field{
		Name:   x.MapName,
		Number: number,
		Label:  schema.LabelRepeated,
		Type: schema.FieldType{
			Kind:     schema.KindMap,
			MapKey:   &schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: keyType},
			MapValue: &schema.FieldType{},
		},
		JsonName:   toLowerCamel(x.MapName),
		OneofIndex: -1,
	}
	c.fieldType(f.Type.MapValue, x.Type, scope)
	return f, nil
}

// defaultLiteral strips the quotes of a [default = ...] constant. Bytes keep
// their escapes, which fieldtype.DefaultValue decodes; strings are unescaped.
func defaultLiteral(pt schema.PrimitiveType, constant string) string {
	if len(constant) < 2 || (constant[0] != '"' && constant[0] != '\'') {
		return constant
	}
	inner := constant[1 : len(constant)-1]
	if pt == schema.TypeBytes {
		return inner
	}
	if s, err := strconv.Unquote(`"` + inner + `"`); err == nil {
		return s
	}
	return inner
}

func extensionRange(rg *parser.Range) (schema.ExtensionRange, error) {
	start, err := parseNumber(rg.Begin)
	if err != nil {
		return schema.ExtensionRange{}, err
	}
	end := start + 1
	switch rg.End {
	case "":
	case "max":
		end = maxFieldNumber
	default:
		last, err := parseNumber(rg.End)
		if err != nil {
			return schema.ExtensionRange{}, err
		}
		end = last + 1
	}
	return schema.ExtensionRange{Start: start, End: end}, nil
}

func (c *converter) enum(x *parser.Enum, scope string) (*schema.Enum, error) {
	en := &schema.Enum{
		Name:     x.EnumName,
		FullName: getFullName(scope, x.EnumName),
		Closed:   c.file.Syntax != schema.SyntaxProto3,
	}
	for _, v := range x.EnumBody {
		switch b := v.(type) {
		case *parser.EnumField:
			n, err := parseNumber(b.Number)
			if err != nil {
				return nil, fmt.Errorf("enum %s value %s: %w", en.FullName, b.Ident, err)
			}
			en.Values = append(en.Values, &schema.EnumValue{Name: b.Ident, Number: n, JsonName: b.Ident})
		case *parser.Option:
			if b.OptionName == "allow_alias" && b.Constant == "true" {
				en.AllowAlias = true
			}
		}
	}
	if len(en.Values) == 0 {
		return nil, fmt.Errorf("enum %s has no values", en.FullName)
	}
	return en, nil
}

func (c *converter) service(x *parser.Service) *schema.Service {
	s := &schema.Service{Name: x.ServiceName}
	scope := c.file.Package
	for _, v := range x.ServiceBody {
		rpc, ok := v.(*parser.RPC)
		if !ok {
			continue
		}
		m := &schema.Method{
			Name:            rpc.RPCName,
			InputType:       rpc.RPCRequest.MessageType,
			OutputType:      rpc.RPCResponse.MessageType,
			ClientStreaming: rpc.RPCRequest.IsStream,
			ServerStreaming: rpc.RPCResponse.IsStream,
		}
		c.refs = append(c.refs,
			typeRef{name: m.InputType, scope: scope, bind: methodType(&m.InputType)},
			typeRef{name: m.OutputType, scope: scope, bind: methodType(&m.OutputType)},
		)
		s.Methods = append(s.Methods, m)
	}
	return s
}

func methodType(target *string) func(string, bool) error {
	return func(fullName string, isEnum bool) error {
		if isEnum {
			return fmt.Errorf("rpc type %s is an enum", fullName)
		}
		*target = fullName
		return nil
	}
}
