package wire

import (
	"math"
)

// DefaultRecursionLimit bounds how deeply groups and sub-messages may nest.
const DefaultRecursionLimit = 100

// Decoder reads one field at a time (tag + value) from an InputStream.
type Decoder struct {
	in             *InputStream
	recursionLimit int
}

// NewDecoder creates a new wire format decoder
func NewDecoder(data []byte) *Decoder {
	return &Decoder{
		in:             NewInputStream(data),
		recursionLimit: DefaultRecursionLimit,
	}
}

// WithRecursionLimit sets how many nested groups SkipField will follow.
func (d *Decoder) WithRecursionLimit(limit int) *Decoder {
	d.recursionLimit = limit
	return d
}

// Stream exposes the underlying input stream.
func (d *Decoder) Stream() *InputStream {
	return d.in
}

func (d *Decoder) EndOfStream() bool {
	return d.in.EndOfStream()
}

func (d *Decoder) Position() int {
	return d.in.Position()
}

func (d *Decoder) SkipBytes(n int) error {
	return d.in.SkipBytes(n)
}

// ReadFieldNumberAndWireType reads the next tag.
func (d *Decoder) ReadFieldNumberAndWireType() (FieldNumber, WireType, error) {
	return d.in.ReadTag()
}

// ReadRawTag reads the next tag, also returning its raw bytes.
func (d *Decoder) ReadRawTag() ([]byte, FieldNumber, WireType, error) {
	return d.in.ReadRawTag()
}

// VARINT VALUES

func (d *Decoder) ReadInt32() (int32, error) {
	return d.in.ReadVarint32()
}

func (d *Decoder) ReadInt64() (int64, error) {
	return d.in.ReadVarint64()
}

func (d *Decoder) ReadUInt32() (uint32, error) {
	return d.in.ReadVarUInt32()
}

func (d *Decoder) ReadUInt64() (uint64, error) {
	return d.in.ReadVarUInt64()
}

func (d *Decoder) ReadSInt32() (int32, error) {
	return d.in.ReadSInt32()
}

func (d *Decoder) ReadSInt64() (int64, error) {
	return d.in.ReadSInt64()
}

// ReadBool treats any non-zero varint as true.
func (d *Decoder) ReadBool() (bool, error) {
	v, err := d.in.ReadVarUInt64()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (d *Decoder) ReadEnum() (int32, error) {
	return d.in.ReadVarint32()
}

// FIXED-WIDTH VALUES

func (d *Decoder) ReadFixed32() (uint32, error) {
	return d.in.ReadLittleEndian32()
}

func (d *Decoder) ReadFixed64() (uint64, error) {
	return d.in.ReadLittleEndian64()
}

func (d *Decoder) ReadSFixed32() (int32, error) {
	v, err := d.in.ReadLittleEndian32()
	return int32(v), err
}

func (d *Decoder) ReadSFixed64() (int64, error) {
	v, err := d.in.ReadLittleEndian64()
	return int64(v), err
}

func (d *Decoder) ReadFloat() (float32, error) {
	v, err := d.in.ReadLittleEndian32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (d *Decoder) ReadDouble() (float64, error) {
	v, err := d.in.ReadLittleEndian64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// LENGTH-DELIMITED VALUES

// ReadBytes copies the payload so the result does not alias the input.
func (d *Decoder) ReadBytes() ([]byte, error) {
	b, err := d.ReadRawBytes()
	if err != nil {
		return nil, err
	}
	data := make([]byte, len(b))
	copy(data, b)
	return data, nil
}

// ReadRawBytes returns the payload as a view into the input buffer.
func (d *Decoder) ReadRawBytes() ([]byte, error) {
	n, err := d.in.ReadLength()
	if err != nil {
		return nil, err
	}
	return d.in.ReadBytes(n)
}

func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadRawBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// NESTED MESSAGES

// ReadMessageInto reads a length prefix and merges exactly that many bytes
// into m.
func (d *Decoder) ReadMessageInto(m Merger) error {
	length, err := d.in.ReadLength()
	if err != nil {
		return err
	}
	sub, err := d.in.GetSubBuffer(length)
	if err != nil {
		return err
	}
	consumed, err := m.MergeFromBytes(sub)
	if err != nil {
		return err
	}
	if consumed < 0 {
		return decodeErrorf(ErrLengthMismatch, "Merger reported negative consumed length %d", consumed)
	}
	if consumed != length {
		return decodeErrorf(ErrLengthMismatch, "Message length mismatch: expected %d bytes, parsed %d", length, consumed)
	}
	return d.in.SkipBytes(length)
}

// ReadGroupInto merges the body of a group opened by fieldNumber into m and
// consumes the matching END_GROUP tag.
func (d *Decoder) ReadGroupInto(fieldNumber FieldNumber, m Merger) error {
	sub, err := d.in.GetSubBuffer(ToEnd)
	if err != nil {
		return err
	}
	consumed, err := m.MergeFromBytes(sub)
	if err != nil {
		return err
	}
	if consumed < 0 {
		return decodeErrorf(ErrLengthMismatch, "Merger reported negative consumed length %d", consumed)
	}
	if err := d.in.SkipBytes(consumed); err != nil {
		return err
	}
	if d.in.EndOfStream() {
		return decodeErrorf(ErrUnexpectedEOF, "Missing end-group tag for field %d", fieldNumber)
	}
	fn, wt, err := d.in.ReadTag()
	if err != nil {
		return err
	}
	if wt != WireEndGroup || fn != fieldNumber {
		return decodeErrorf(ErrGroupMismatch, "Group %d ended with field %d wire type %s", fieldNumber, fn, wt)
	}
	return nil
}
