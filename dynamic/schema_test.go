package dynamic

import (
	"fmt"

	"github.com/protolite/dynpb/schema"
)

// testResolver serves hand-built descriptors by full name.
type testResolver struct {
	messages map[string]*schema.Message
	enums    map[string]*schema.Enum
}

func (r *testResolver) GetMessage(name string) (*schema.Message, error) {
	if m, ok := r.messages[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("message %s not found", name)
}

func (r *testResolver) GetEnum(name string) (*schema.Enum, error) {
	if e, ok := r.enums[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("enum %s not found", name)
}

func scalarField(name string, number int32, pt schema.PrimitiveType, label schema.FieldLabel) *schema.Field {
	return &schema.Field{
		Name:   name,
		Number: number,
		Label:  label,
		Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: pt},
	}
}

func messageField(name string, number int32, typeName string, label schema.FieldLabel) *schema.Field {
	return &schema.Field{
		Name:   name,
		Number: number,
		Label:  label,
		Type:   schema.FieldType{Kind: schema.KindMessage, MessageType: typeName},
	}
}

func primitive(pt schema.PrimitiveType) *schema.FieldType {
	return &schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: pt}
}

var packed = true

// newTestResolver builds the descriptors used throughout the package tests:
//
//	syntax = "proto2";
//	package test;
//	enum Color { RED = 1; GREEN = 2; }
//	message Geo { optional double lat = 1; optional double lng = 2; }
//	message Address { required string street = 1; optional Geo geo = 2; }
//	message Phone { required string number = 1; }
//	message Person {
//	  required string name = 1;
//	  optional int32 id = 2;
//	  optional string email = 3 [default = "none"];
//	  repeated int32 scores = 4 [packed = true];
//	  optional Address address = 5;
//	  map<string, int64> tags = 6;
//	  repeated Phone phones = 7;
//	  optional Color color = 8;
//	  oneof contact { string phone = 9; Address alt = 10; }
//	  repeated group Result = 11 { optional string url = 12; }
//	  map<int32, Phone> by_id = 13;
//	}
//	message Node { optional Node child = 1; optional int32 value = 2; }
//	message Set { option message_set_wire_format = true; extensions 4 to max; }
//
// plus a proto3 message Scalar, a reduced Person with only its name and a
// sparse Person keeping id, address and color.
func newTestResolver() *testResolver {
	color := &schema.Enum{
		Name:     "Color",
		FullName: "test.Color",
		Values:   []*schema.EnumValue{{Name: "RED", Number: 1}, {Name: "GREEN", Number: 2}},
		Closed:   true,
	}
	geo := &schema.Message{
		Name:     "Geo",
		FullName: "test.Geo",
		Syntax:   schema.SyntaxProto2,
		Fields: []*schema.Field{
			scalarField("lat", 1, schema.TypeDouble, schema.LabelOptional),
			scalarField("lng", 2, schema.TypeDouble, schema.LabelOptional),
		},
	}
	address := &schema.Message{
		Name:     "Address",
		FullName: "test.Address",
		Syntax:   schema.SyntaxProto2,
		Fields: []*schema.Field{
			scalarField("street", 1, schema.TypeString, schema.LabelRequired),
			messageField("geo", 2, "test.Geo", schema.LabelOptional),
		},
	}
	phone := &schema.Message{
		Name:     "Phone",
		FullName: "test.Phone",
		Syntax:   schema.SyntaxProto2,
		Fields:   []*schema.Field{scalarField("number", 1, schema.TypeString, schema.LabelRequired)},
	}
	result := &schema.Message{
		Name:     "Result",
		FullName: "test.Person.Result",
		Syntax:   schema.SyntaxProto2,
		Fields:   []*schema.Field{scalarField("url", 12, schema.TypeString, schema.LabelOptional)},
	}

	email := scalarField("email", 3, schema.TypeString, schema.LabelOptional)
	email.DefaultValue = "none"
	scores := scalarField("scores", 4, schema.TypeInt32, schema.LabelRepeated)
	scores.Packed = &packed
	person := &schema.Message{
		Name:     "Person",
		FullName: "test.Person",
		Syntax:   schema.SyntaxProto2,
		Fields: []*schema.Field{
			scalarField("name", 1, schema.TypeString, schema.LabelRequired),
			scalarField("id", 2, schema.TypeInt32, schema.LabelOptional),
			email,
			scores,
			messageField("address", 5, "test.Address", schema.LabelOptional),
			{
				Name:   "tags",
				Number: 6,
				Label:  schema.LabelRepeated,
				Type: schema.FieldType{
					Kind:     schema.KindMap,
					MapKey:   primitive(schema.TypeString),
					MapValue: primitive(schema.TypeInt64),
				},
			},
			messageField("phones", 7, "test.Phone", schema.LabelRepeated),
			{
				Name:   "color",
				Number: 8,
				Label:  schema.LabelOptional,
				Type:   schema.FieldType{Kind: schema.KindEnum, EnumType: "test.Color"},
			},
			{
				Name:   "result",
				Number: 11,
				Label:  schema.LabelRepeated,
				Type:   schema.FieldType{Kind: schema.KindGroup, MessageType: "test.Person.Result"},
			},
			{
				Name:   "by_id",
				Number: 13,
				Label:  schema.LabelRepeated,
				Type: schema.FieldType{
					Kind:     schema.KindMap,
					MapKey:   primitive(schema.TypeInt32),
					MapValue: &schema.FieldType{Kind: schema.KindMessage, MessageType: "test.Phone"},
				},
			},
		},
		OneofGroups: []*schema.Oneof{{
			Name: "contact",
			Fields: []*schema.Field{
				scalarField("phone", 9, schema.TypeString, schema.LabelOptional),
				messageField("alt", 10, "test.Address", schema.LabelOptional),
			},
		}},
	}
	personLite := &schema.Message{
		Name:     "Person",
		FullName: "test.PersonLite",
		Syntax:   schema.SyntaxProto2,
		Fields:   []*schema.Field{scalarField("name", 1, schema.TypeString, schema.LabelRequired)},
	}
	personSparse := &schema.Message{
		Name:     "Person",
		FullName: "test.PersonSparse",
		Syntax:   schema.SyntaxProto2,
		Fields: []*schema.Field{
			scalarField("id", 2, schema.TypeInt32, schema.LabelOptional),
			messageField("address", 5, "test.Address", schema.LabelOptional),
			{Name: "color", Number: 8, Label: schema.LabelOptional,
				Type: schema.FieldType{Kind: schema.KindEnum, EnumType: "test.Color"}},
		},
	}
	node := &schema.Message{
		Name:     "Node",
		FullName: "test.Node",
		Syntax:   schema.SyntaxProto2,
		Fields: []*schema.Field{
			messageField("child", 1, "test.Node", schema.LabelOptional),
			scalarField("value", 2, schema.TypeInt32, schema.LabelOptional),
		},
	}
	set := &schema.Message{
		Name:                 "Set",
		FullName:             "test.Set",
		Syntax:               schema.SyntaxProto2,
		ExtensionRanges:      []schema.ExtensionRange{{Start: 4, End: 536870912}},
		MessageSetWireFormat: true,
	}
	optional := scalarField("o", 4, schema.TypeInt32, schema.LabelOptional)
	optional.Proto3Optional = true
	scalar := &schema.Message{
		Name:     "Scalar",
		FullName: "test.Scalar",
		Syntax:   schema.SyntaxProto3,
		Fields: []*schema.Field{
			scalarField("a", 1, schema.TypeInt32, schema.LabelOptional),
			scalarField("s", 2, schema.TypeString, schema.LabelOptional),
			scalarField("r", 3, schema.TypeSint64, schema.LabelRepeated),
			optional,
			scalarField("b", 5, schema.TypeBytes, schema.LabelOptional),
			scalarField("d", 6, schema.TypeDouble, schema.LabelOptional),
		},
	}

	r := &testResolver{
		messages: map[string]*schema.Message{},
		enums:    map[string]*schema.Enum{"test.Color": color},
	}
	for _, m := range []*schema.Message{geo, address, phone, result, person, personLite, personSparse, node, set, scalar} {
		r.messages[m.FullName] = m
	}
	return r
}

func (r *testResolver) newMessage(name string) *Message {
	desc, err := r.GetMessage(name)
	if err != nil {
		panic(err)
	}
	return New(desc, r)
}
