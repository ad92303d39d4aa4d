package schema

import "sync/atomic"

// ProtoRepo represents a collection of .proto files and their definitions.
type ProtoRepo struct {
	ProtoFiles map[string]*ProtoFile `json:"proto_files"`
}

// ProtoFile represents a single .proto file
type ProtoFile struct {
	Name     string     `json:"name"`     // file.proto
	Package  string     `json:"package"`  // package name
	Syntax   string     `json:"syntax"`   // proto2 or proto3
	Imports  []*Import  `json:"imports"`  // imported files
	Messages []*Message `json:"messages"` // message definitions
	Enums    []*Enum    `json:"enums"`    // enum definitions
	Services []*Service `json:"services"` // service definitions
}

// Syntax values carried by ProtoFile and Message.
const (
	SyntaxProto2   = "proto2"
	SyntaxProto3   = "proto3"
	SyntaxEditions = "editions"
)

// Import represents an import statement
type Import struct {
	Path   string `json:"path"`   // "google/protobuf/timestamp.proto"
	Public bool   `json:"public"` // public import
	Weak   bool   `json:"weak"`   // weak import
}

// Message represents a protobuf message definition
type Message struct {
	Name                 string           `json:"name"`                    // "User"
	FullName             string           `json:"full_name"`               // "pkg.User", filled in by the registry
	Syntax               string           `json:"syntax"`                  // inherited from the file
	Fields               []*Field         `json:"fields"`                  // message fields (oneof members live in OneofGroups)
	NestedTypes          []*Message       `json:"nested_types"`            // nested messages
	NestedEnums          []*Enum          `json:"nested_enums"`            // nested enums
	OneofGroups          []*Oneof         `json:"oneof_groups"`            // oneof groups
	ExtensionRanges      []ExtensionRange `json:"extension_ranges"`        // declared extension ranges
	MapEntry             bool             `json:"map_entry"`               // is this a map entry?
	MessageSetWireFormat bool             `json:"message_set_wire_format"` // option message_set_wire_format

	index atomic.Pointer[fieldIndex]
}

// ExtensionRange is a half-open range [Start, End) of extension field numbers.
type ExtensionRange struct {
	Start int32 `json:"start"`
	End   int32 `json:"end"`
}

// Field represents a message field
type Field struct {
	Name           string     `json:"name"`            // "user_name"
	Number         int32      `json:"number"`          // 1
	Label          FieldLabel `json:"label"`           // optional, required, repeated
	Type           FieldType  `json:"type"`            // field type information
	DefaultValue   string     `json:"default_value"`   // default value (proto2)
	JsonName       string     `json:"json_name"`       // JSON field name
	OneofIndex     int32      `json:"oneof_index"`     // oneof group index (-1 if not in oneof)
	Packed         *bool      `json:"packed"`          // explicit [packed = ...]; nil means syntax default
	Proto3Optional bool       `json:"proto3_optional"` // proto3 `optional` keyword: explicit presence
}

// Oneof represents a oneof group
type Oneof struct {
	Name   string   `json:"name"`   // "user_info"
	Fields []*Field `json:"fields"` // fields in this oneof
}

// FieldLabel represents field labels
type FieldLabel string

const (
	LabelOptional FieldLabel = "optional"
	LabelRequired FieldLabel = "required"
	LabelRepeated FieldLabel = "repeated"
)

// FieldType represents field type information
type FieldType struct {
	Kind          TypeKind      `json:"kind"`                     // primitive, message, group, enum, map
	PrimitiveType PrimitiveType `json:"primitive_type,omitempty"` // for primitive types
	MessageType   string        `json:"message_type,omitempty"`   // for message and group types: "User", "google.protobuf.Timestamp"
	EnumType      string        `json:"enum_type,omitempty"`      // for enum types
	MapKey        *FieldType    `json:"map_key,omitempty"`        // for map key type
	MapValue      *FieldType    `json:"map_value,omitempty"`      // for map value type
}

// TypeKind represents the kind of field type
type TypeKind string

const (
	KindPrimitive TypeKind = "primitive"
	KindMessage   TypeKind = "message"
	KindGroup     TypeKind = "group"
	KindEnum      TypeKind = "enum"
	KindMap       TypeKind = "map"
)

// PrimitiveType represents protobuf primitive types
type PrimitiveType string

const (
	TypeDouble   PrimitiveType = "double"
	TypeFloat    PrimitiveType = "float"
	TypeInt64    PrimitiveType = "int64"
	TypeUint64   PrimitiveType = "uint64"
	TypeInt32    PrimitiveType = "int32"
	TypeFixed64  PrimitiveType = "fixed64"
	TypeFixed32  PrimitiveType = "fixed32"
	TypeBool     PrimitiveType = "bool"
	TypeString   PrimitiveType = "string"
	TypeBytes    PrimitiveType = "bytes"
	TypeUint32   PrimitiveType = "uint32"
	TypeSfixed32 PrimitiveType = "sfixed32"
	TypeSfixed64 PrimitiveType = "sfixed64"
	TypeSint32   PrimitiveType = "sint32"
	TypeSint64   PrimitiveType = "sint64"
)

var primitiveTypes = map[string]PrimitiveType{
	"double":   TypeDouble,
	"float":    TypeFloat,
	"int64":    TypeInt64,
	"uint64":   TypeUint64,
	"int32":    TypeInt32,
	"fixed64":  TypeFixed64,
	"fixed32":  TypeFixed32,
	"bool":     TypeBool,
	"string":   TypeString,
	"bytes":    TypeBytes,
	"uint32":   TypeUint32,
	"sfixed32": TypeSfixed32,
	"sfixed64": TypeSfixed64,
	"sint32":   TypeSint32,
	"sint64":   TypeSint64,
}

// LookupPrimitive returns the primitive type named by a .proto scalar keyword.
func LookupPrimitive(name string) (PrimitiveType, bool) {
	pt, ok := primitiveTypes[name]
	return pt, ok
}

var packedEligible = map[PrimitiveType]struct{}{
	TypeDouble:   {},
	TypeFloat:    {},
	TypeInt64:    {},
	TypeUint64:   {},
	TypeInt32:    {},
	TypeFixed64:  {},
	TypeFixed32:  {},
	TypeBool:     {},
	TypeUint32:   {},
	TypeSfixed32: {},
	TypeSfixed64: {},
	TypeSint32:   {},
	TypeSint64:   {},
}

// IsPackedType checks and returns if the Primitive type is packed for repeated label
func IsPackedType(t PrimitiveType) bool {
	_, ok := packedEligible[t]
	return ok
}

// Enum represents an enum definition
type Enum struct {
	Name       string       `json:"name"`        // "Status"
	FullName   string       `json:"full_name"`   // "pkg.Status", filled in by the registry
	Values     []*EnumValue `json:"values"`      // enum values
	AllowAlias bool         `json:"allow_alias"` // allow_alias option
	Closed     bool         `json:"closed"`      // proto2 enums reject unknown numbers
}

// EnumValue represents an enum value
type EnumValue struct {
	Name     string `json:"name"`      // "ACTIVE"
	Number   int32  `json:"number"`    // 1
	JsonName string `json:"json_name"` // JSON field name
}

// Service represents a service definition
type Service struct {
	Name    string    `json:"name"`    // "UserService"
	Methods []*Method `json:"methods"` // service methods
}

// Method represents a service method
type Method struct {
	Name            string `json:"name"`             // "GetUser"
	InputType       string `json:"input_type"`       // "GetUserRequest"
	OutputType      string `json:"output_type"`      // "GetUserResponse"
	ClientStreaming bool   `json:"client_streaming"` // stream input
	ServerStreaming bool   `json:"server_streaming"` // stream output
}
