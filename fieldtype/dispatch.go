package fieldtype

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/protolite/dynpb/schema"
	"github.com/protolite/dynpb/wire"
)

// Codec binds a field type to its wire representation. Values passed to the
// functions must already be in canonical form (see CheckValue).
type Codec struct {
	WireType wire.WireType
	// Packable types may be written as one length-delimited run.
	Packable bool

	// Size is the encoded size of one value including its tag.
	Size func(fn wire.FieldNumber, v interface{}) int
	// SizeNoTag is the payload size only, as used inside packed runs.
	SizeNoTag func(v interface{}) int
	// Encode appends tag and value.
	Encode func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error
	// EncodeNoTag appends the bare value, as used inside packed runs.
	EncodeNoTag func(out *wire.OutputStream, v interface{}) error
	// Decode reads one value; the tag has already been consumed.
	Decode func(d *wire.Decoder) (interface{}, error)
}

var codecs = map[schema.PrimitiveType]Codec{
	schema.TypeInt32: {
		WireType:  wire.WireVarint,
		Packable:  true,
		Size:      func(fn wire.FieldNumber, v interface{}) int { return wire.Int32ByteSize(fn, v.(int32)) },
		SizeNoTag: func(v interface{}) int { return wire.Int32ByteSizeNoTag(v.(int32)) },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendInt32(fn, int64(v.(int32)))
		},
		EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
			return out.AppendVarint32(int64(v.(int32)))
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadInt32() },
	},
	schema.TypeInt64: {
		WireType:  wire.WireVarint,
		Packable:  true,
		Size:      func(fn wire.FieldNumber, v interface{}) int { return wire.Int64ByteSize(fn, v.(int64)) },
		SizeNoTag: func(v interface{}) int { return wire.Int64ByteSizeNoTag(v.(int64)) },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendInt64(fn, v.(int64))
		},
		EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
			out.AppendVarint64(v.(int64))
			return nil
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadInt64() },
	},
	schema.TypeUint32: {
		WireType:  wire.WireVarint,
		Packable:  true,
		Size:      func(fn wire.FieldNumber, v interface{}) int { return wire.UInt32ByteSize(fn, v.(uint32)) },
		SizeNoTag: func(v interface{}) int { return wire.UInt32ByteSizeNoTag(v.(uint32)) },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendUInt32(fn, uint64(v.(uint32)))
		},
		EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
			return out.AppendVarUInt32(uint64(v.(uint32)))
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadUInt32() },
	},
	schema.TypeUint64: {
		WireType:  wire.WireVarint,
		Packable:  true,
		Size:      func(fn wire.FieldNumber, v interface{}) int { return wire.UInt64ByteSize(fn, v.(uint64)) },
		SizeNoTag: func(v interface{}) int { return wire.UInt64ByteSizeNoTag(v.(uint64)) },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendUInt64(fn, v.(uint64))
		},
		EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
			out.AppendVarUInt64(v.(uint64))
			return nil
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadUInt64() },
	},
	schema.TypeSint32: {
		WireType:  wire.WireVarint,
		Packable:  true,
		Size:      func(fn wire.FieldNumber, v interface{}) int { return wire.SInt32ByteSize(fn, v.(int32)) },
		SizeNoTag: func(v interface{}) int { return wire.SInt32ByteSizeNoTag(v.(int32)) },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendSInt32(fn, int64(v.(int32)))
		},
		EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
			out.AppendVarUInt64(uint64(wire.ZigZagEncode32(v.(int32))))
			return nil
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadSInt32() },
	},
	schema.TypeSint64: {
		WireType:  wire.WireVarint,
		Packable:  true,
		Size:      func(fn wire.FieldNumber, v interface{}) int { return wire.SInt64ByteSize(fn, v.(int64)) },
		SizeNoTag: func(v interface{}) int { return wire.SInt64ByteSizeNoTag(v.(int64)) },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendSInt64(fn, v.(int64))
		},
		EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
			out.AppendVarUInt64(wire.ZigZagEncode64(v.(int64)))
			return nil
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadSInt64() },
	},
	schema.TypeFixed32: {
		WireType:  wire.WireFixed32,
		Packable:  true,
		Size:      func(fn wire.FieldNumber, _ interface{}) int { return wire.Fixed32ByteSize(fn) },
		SizeNoTag: func(interface{}) int { return 4 },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendFixed32(fn, uint64(v.(uint32)))
		},
		EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
			return out.AppendLittleEndian32(uint64(v.(uint32)))
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadFixed32() },
	},
	schema.TypeFixed64: {
		WireType:  wire.WireFixed64,
		Packable:  true,
		Size:      func(fn wire.FieldNumber, _ interface{}) int { return wire.Fixed64ByteSize(fn) },
		SizeNoTag: func(interface{}) int { return 8 },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendFixed64(fn, v.(uint64))
		},
		EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
			out.AppendLittleEndian64(v.(uint64))
			return nil
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadFixed64() },
	},
	schema.TypeSfixed32: {
		WireType:  wire.WireFixed32,
		Packable:  true,
		Size:      func(fn wire.FieldNumber, _ interface{}) int { return wire.SFixed32ByteSize(fn) },
		SizeNoTag: func(interface{}) int { return 4 },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendSFixed32(fn, int64(v.(int32)))
		},
		EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
			return out.AppendLittleEndian32(uint64(uint32(v.(int32))))
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadSFixed32() },
	},
	schema.TypeSfixed64: {
		WireType:  wire.WireFixed64,
		Packable:  true,
		Size:      func(fn wire.FieldNumber, _ interface{}) int { return wire.SFixed64ByteSize(fn) },
		SizeNoTag: func(interface{}) int { return 8 },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendSFixed64(fn, v.(int64))
		},
		EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
			out.AppendLittleEndian64(uint64(v.(int64)))
			return nil
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadSFixed64() },
	},
	schema.TypeFloat: {
		WireType:  wire.WireFixed32,
		Packable:  true,
		Size:      func(fn wire.FieldNumber, _ interface{}) int { return wire.FloatByteSize(fn) },
		SizeNoTag: func(interface{}) int { return 4 },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendFloat(fn, v.(float32))
		},
		EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
			return out.AppendLittleEndian32(uint64(math.Float32bits(v.(float32))))
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadFloat() },
	},
	schema.TypeDouble: {
		WireType:  wire.WireFixed64,
		Packable:  true,
		Size:      func(fn wire.FieldNumber, _ interface{}) int { return wire.DoubleByteSize(fn) },
		SizeNoTag: func(interface{}) int { return 8 },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendDouble(fn, v.(float64))
		},
		EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
			out.AppendLittleEndian64(math.Float64bits(v.(float64)))
			return nil
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadDouble() },
	},
	schema.TypeBool: {
		WireType:  wire.WireVarint,
		Packable:  true,
		Size:      func(fn wire.FieldNumber, _ interface{}) int { return wire.BoolByteSize(fn) },
		SizeNoTag: func(interface{}) int { return 1 },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendBool(fn, v.(bool))
		},
		EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
			if v.(bool) {
				out.AppendVarUInt64(1)
			} else {
				out.AppendVarUInt64(0)
			}
			return nil
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadBool() },
	},
	schema.TypeString: {
		WireType: wire.WireBytes,
		Size:     func(fn wire.FieldNumber, v interface{}) int { return wire.StringByteSize(fn, v.(string)) },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendString(fn, v.(string))
		},
		Decode: func(d *wire.Decoder) (interface{}, error) {
			s, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			if !utf8.ValidString(s) {
				return nil, wire.NewDecodeError(ErrInvalidUTF8, "String field contains invalid UTF-8")
			}
			return s, nil
		},
	},
	schema.TypeBytes: {
		WireType: wire.WireBytes,
		Size:     func(fn wire.FieldNumber, v interface{}) int { return wire.BytesByteSize(fn, v.([]byte)) },
		Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
			return e.AppendBytes(fn, v.([]byte))
		},
		Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadBytes() },
	},
}

var enumCodec = Codec{
	WireType:  wire.WireVarint,
	Packable:  true,
	Size:      func(fn wire.FieldNumber, v interface{}) int { return wire.EnumByteSize(fn, v.(int32)) },
	SizeNoTag: func(v interface{}) int { return wire.Int32ByteSizeNoTag(v.(int32)) },
	Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
		return e.AppendEnum(fn, int64(v.(int32)))
	},
	EncodeNoTag: func(out *wire.OutputStream, v interface{}) error {
		return out.AppendVarint32(int64(v.(int32)))
	},
	Decode: func(d *wire.Decoder) (interface{}, error) { return d.ReadEnum() },
}

// MessageCodec frames wire.Message values as length-delimited sub-messages.
// Decoding is left to the caller, which owns the target message.
var MessageCodec = Codec{
	WireType: wire.WireBytes,
	Size: func(fn wire.FieldNumber, v interface{}) int {
		return wire.MessageByteSize(fn, v.(wire.Message))
	},
	Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
		return e.AppendMessage(fn, v.(wire.Message))
	},
}

// GroupCodec frames wire.Message values as START_GROUP/END_GROUP groups.
var GroupCodec = Codec{
	WireType: wire.WireStartGroup,
	Size: func(fn wire.FieldNumber, v interface{}) int {
		return wire.GroupByteSize(fn, v.(wire.Message))
	},
	Encode: func(e *wire.Encoder, fn wire.FieldNumber, v interface{}) error {
		return e.AppendGroup(fn, v.(wire.Message))
	},
}

// Dispatch returns the codec for a field type.
func Dispatch(ft *schema.FieldType) (Codec, error) {
	switch ft.Kind {
	case schema.KindPrimitive:
		c, ok := codecs[ft.PrimitiveType]
		if !ok {
			return Codec{}, fmt.Errorf("no codec for primitive type %q", ft.PrimitiveType)
		}
		return c, nil
	case schema.KindEnum:
		return enumCodec, nil
	case schema.KindMessage:
		return MessageCodec, nil
	case schema.KindGroup:
		return GroupCodec, nil
	default:
		return Codec{}, fmt.Errorf("no codec for %s fields", ft.Kind)
	}
}
