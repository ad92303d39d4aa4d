package wire

import (
	"fmt"
	"math"
)

// ===== PROTOBUF WIRE FORMAT TYPES =====

// WireType represents protobuf wire format types
type WireType int32

const (
	WireVarint     WireType = 0 // int32, int64, uint32, uint64, sint32, sint64, bool, enum
	WireFixed64    WireType = 1 // fixed64, sfixed64, double
	WireBytes      WireType = 2 // string, bytes, embedded messages, packed repeated fields
	WireStartGroup WireType = 3 // deprecated groups: opening tag
	WireEndGroup   WireType = 4 // deprecated groups: closing tag
	WireFixed32    WireType = 5 // fixed32, sfixed32, float
)

func (t WireType) String() string {
	switch t {
	case WireVarint:
		return "varint"
	case WireFixed64:
		return "fixed64"
	case WireBytes:
		return "bytes"
	case WireStartGroup:
		return "start_group"
	case WireEndGroup:
		return "end_group"
	case WireFixed32:
		return "fixed32"
	default:
		return fmt.Sprintf("wiretype(%d)", int32(t))
	}
}

// Valid reports whether t is one of the six defined wire types.
func (t WireType) Valid() bool {
	return t >= WireVarint && t <= WireFixed32
}

// FieldNumber represents a protobuf field number
type FieldNumber int32

const (
	MinFieldNumber FieldNumber = 1
	MaxFieldNumber FieldNumber = 1<<29 - 1
)

// Valid reports whether n is usable as a field number on the wire.
func (n FieldNumber) Valid() bool {
	return n >= MinFieldNumber && n <= MaxFieldNumber
}

// Tag represents a protobuf field tag (field number + wire type)
type Tag uint32

const (
	tagTypeBits = 3
	tagTypeMask = 1<<tagTypeBits - 1
)

// Bounds used by the range checks of the streams and type checkers.
const (
	MinInt32  = math.MinInt32
	MaxInt32  = math.MaxInt32
	MaxUint32 = math.MaxUint32
	MinInt64  = math.MinInt64
	MaxInt64  = math.MaxInt64

	// MaxVarintLen is the longest encoding of a 64-bit varint.
	MaxVarintLen = 10
)

// PackTag creates a tag from field number and wire type
func PackTag(fieldNumber FieldNumber, wireType WireType) (Tag, error) {
	if !wireType.Valid() {
		return 0, encodeErrorf(ErrInvalidWireType, "Unknown wire type: %d", int32(wireType))
	}
	if !fieldNumber.Valid() {
		return 0, encodeErrorf(ErrInvalidFieldNumber, "Invalid field number: %d", int32(fieldNumber))
	}
	return Tag(uint32(fieldNumber)<<tagTypeBits | uint32(wireType)), nil
}

// UnpackTag splits a tag into field number and wire type
func UnpackTag(tag Tag) (FieldNumber, WireType) {
	return FieldNumber(tag >> tagTypeBits), WireType(tag & tagTypeMask)
}

// UnknownField is a field kept verbatim because the schema in use does not know it.
// Tag holds the varint-encoded tag exactly as read, Value the raw field payload
// (for groups this includes the body and the closing tag). After is the
// number of the last known field read before it, zero if none; it places the
// field among the known ones when the message is written back.
type UnknownField struct {
	Tag   []byte
	Value []byte
	After FieldNumber
}

// Message is anything the encoder can frame as a sub-message or group.
type Message interface {
	// ByteSize is the size of the serialized body, without tag or length prefix.
	ByteSize() int
	// SerializeTo appends the serialized body to e.
	SerializeTo(e *Encoder) error
}

// Merger is anything the decoder can merge a sub-message or group body into.
//
// MergeFromBytes parses b and returns how many bytes it consumed. A merger
// stops without consuming an END_GROUP tag, so that a group body reports the
// bytes up to its terminator.
type Merger interface {
	MergeFromBytes(b []byte) (int, error)
}

// MergerFunc adapts a function to the Merger interface.
type MergerFunc func(b []byte) (int, error)

// MergeFromBytes calls f(b).
func (f MergerFunc) MergeFromBytes(b []byte) (int, error) {
	return f(b)
}
