package wire

import (
	"math"
)

// Encoder serializes one field at a time (tag + value) into an OutputStream.
type Encoder struct {
	out *OutputStream
}

// NewEncoder creates a new wire format encoder
func NewEncoder() *Encoder {
	return &Encoder{out: NewOutputStream()}
}

// NewEncoderSize creates an encoder whose buffer is pre-sized for size bytes.
func NewEncoderSize(size int) *Encoder {
	return &Encoder{out: NewOutputStreamSize(size)}
}

// Bytes returns the encoded bytes
func (e *Encoder) Bytes() []byte {
	return e.out.Bytes()
}

// Stream exposes the underlying output stream, e.g. for packed payloads.
func (e *Encoder) Stream() *OutputStream {
	return e.out
}

// AppendTag appends a bare tag.
func (e *Encoder) AppendTag(fieldNumber FieldNumber, wireType WireType) error {
	return e.out.AppendTag(fieldNumber, wireType)
}

// AppendRawBytes appends pre-encoded bytes, e.g. preserved unknown fields.
func (e *Encoder) AppendRawBytes(b []byte) {
	e.out.AppendRawBytes(b)
}

// tag packs the tag up front so that an invalid field number is reported
// before anything reaches the stream.
func tag(fieldNumber FieldNumber, wireType WireType) (uint64, error) {
	t, err := PackTag(fieldNumber, wireType)
	return uint64(t), err
}

// VARINT FIELDS

func (e *Encoder) AppendInt32(fieldNumber FieldNumber, v int64) error {
	t, err := tag(fieldNumber, WireVarint)
	if err != nil {
		return err
	}
	if v < MinInt32 || v > MaxInt32 {
		return encodeErrorf(ErrOutOfRange, "Value out of range for int32: %d", v)
	}
	e.out.AppendVarUInt64(t)
	e.out.AppendVarint64(v)
	return nil
}

func (e *Encoder) AppendInt64(fieldNumber FieldNumber, v int64) error {
	t, err := tag(fieldNumber, WireVarint)
	if err != nil {
		return err
	}
	e.out.AppendVarUInt64(t)
	e.out.AppendVarint64(v)
	return nil
}

func (e *Encoder) AppendUInt32(fieldNumber FieldNumber, v uint64) error {
	t, err := tag(fieldNumber, WireVarint)
	if err != nil {
		return err
	}
	if v > MaxUint32 {
		return encodeErrorf(ErrOutOfRange, "Value out of range for uint32: %d", v)
	}
	e.out.AppendVarUInt64(t)
	e.out.AppendVarUInt64(v)
	return nil
}

func (e *Encoder) AppendUInt64(fieldNumber FieldNumber, v uint64) error {
	t, err := tag(fieldNumber, WireVarint)
	if err != nil {
		return err
	}
	e.out.AppendVarUInt64(t)
	e.out.AppendVarUInt64(v)
	return nil
}

func (e *Encoder) AppendSInt32(fieldNumber FieldNumber, v int64) error {
	t, err := tag(fieldNumber, WireVarint)
	if err != nil {
		return err
	}
	if v < MinInt32 || v > MaxInt32 {
		return encodeErrorf(ErrOutOfRange, "Value out of range for sint32: %d", v)
	}
	e.out.AppendVarUInt64(t)
	e.out.AppendVarUInt64(uint64(ZigZagEncode32(int32(v))))
	return nil
}

func (e *Encoder) AppendSInt64(fieldNumber FieldNumber, v int64) error {
	t, err := tag(fieldNumber, WireVarint)
	if err != nil {
		return err
	}
	e.out.AppendVarUInt64(t)
	e.out.AppendVarUInt64(ZigZagEncode64(v))
	return nil
}

func (e *Encoder) AppendBool(fieldNumber FieldNumber, v bool) error {
	t, err := tag(fieldNumber, WireVarint)
	if err != nil {
		return err
	}
	e.out.AppendVarUInt64(t)
	if v {
		e.out.AppendVarUInt64(1)
	} else {
		e.out.AppendVarUInt64(0)
	}
	return nil
}

// AppendEnum writes an enum number; enums share the int32 encoding.
func (e *Encoder) AppendEnum(fieldNumber FieldNumber, v int64) error {
	return e.AppendInt32(fieldNumber, v)
}

// FIXED-WIDTH FIELDS

func (e *Encoder) AppendFixed32(fieldNumber FieldNumber, v uint64) error {
	t, err := tag(fieldNumber, WireFixed32)
	if err != nil {
		return err
	}
	if v > MaxUint32 {
		return encodeErrorf(ErrOutOfRange, "Value out of range for fixed32: %d", v)
	}
	e.out.AppendVarUInt64(t)
	return e.out.AppendLittleEndian32(v)
}

func (e *Encoder) AppendFixed64(fieldNumber FieldNumber, v uint64) error {
	t, err := tag(fieldNumber, WireFixed64)
	if err != nil {
		return err
	}
	e.out.AppendVarUInt64(t)
	e.out.AppendLittleEndian64(v)
	return nil
}

// AppendSFixed32 checks that v is representable in 32-bit two's complement:
// shifting right by 31 must leave only sign bits.
func (e *Encoder) AppendSFixed32(fieldNumber FieldNumber, v int64) error {
	t, err := tag(fieldNumber, WireFixed32)
	if err != nil {
		return err
	}
	if sign := v >> 31; sign != 0 && sign != -1 {
		return encodeErrorf(ErrOutOfRange, "SFixed32 out of range: %d", v)
	}
	e.out.AppendVarUInt64(t)
	return e.out.AppendLittleEndian32(uint64(v) & 0xffffffff)
}

func (e *Encoder) AppendSFixed64(fieldNumber FieldNumber, v int64) error {
	t, err := tag(fieldNumber, WireFixed64)
	if err != nil {
		return err
	}
	e.out.AppendVarUInt64(t)
	e.out.AppendLittleEndian64(uint64(v))
	return nil
}

func (e *Encoder) AppendFloat(fieldNumber FieldNumber, v float32) error {
	t, err := tag(fieldNumber, WireFixed32)
	if err != nil {
		return err
	}
	e.out.AppendVarUInt64(t)
	return e.out.AppendLittleEndian32(uint64(math.Float32bits(v)))
}

func (e *Encoder) AppendDouble(fieldNumber FieldNumber, v float64) error {
	t, err := tag(fieldNumber, WireFixed64)
	if err != nil {
		return err
	}
	e.out.AppendVarUInt64(t)
	e.out.AppendLittleEndian64(math.Float64bits(v))
	return nil
}

// LENGTH-DELIMITED FIELDS

func (e *Encoder) AppendString(fieldNumber FieldNumber, s string) error {
	t, err := tag(fieldNumber, WireBytes)
	if err != nil {
		return err
	}
	e.out.AppendVarUInt64(t)
	e.out.AppendVarUInt64(uint64(len(s)))
	e.out.buf = append(e.out.buf, s...)
	return nil
}

func (e *Encoder) AppendBytes(fieldNumber FieldNumber, b []byte) error {
	t, err := tag(fieldNumber, WireBytes)
	if err != nil {
		return err
	}
	e.out.AppendVarUInt64(t)
	e.out.AppendVarUInt64(uint64(len(b)))
	e.out.AppendRawBytes(b)
	return nil
}

// AppendPacked writes a packed repeated field: one length-delimited record
// whose payload of payloadSize bytes is produced by write.
func (e *Encoder) AppendPacked(fieldNumber FieldNumber, payloadSize int, write func(out *OutputStream) error) error {
	t, err := tag(fieldNumber, WireBytes)
	if err != nil {
		return err
	}
	e.out.AppendVarUInt64(t)
	e.out.AppendVarUInt64(uint64(payloadSize))
	start := e.out.Len()
	if err := write(e.out); err != nil {
		return err
	}
	if written := e.out.Len() - start; written != payloadSize {
		return encodeErrorf(ErrLengthMismatch, "Packed field %d: announced %d bytes, wrote %d", fieldNumber, payloadSize, written)
	}
	return nil
}

// NESTED MESSAGES

// AppendMessage writes tag, the varint size of m, then its body. The size is
// taken first, so m must report the exact number of bytes it then writes.
func (e *Encoder) AppendMessage(fieldNumber FieldNumber, m Message) error {
	t, err := tag(fieldNumber, WireBytes)
	if err != nil {
		return err
	}
	size := m.ByteSize()
	e.out.AppendVarUInt64(t)
	e.out.AppendVarUInt64(uint64(size))
	start := e.out.Len()
	if err := m.SerializeTo(e); err != nil {
		return err
	}
	if written := e.out.Len() - start; written != size {
		return encodeErrorf(ErrLengthMismatch, "Message field %d: ByteSize() reported %d bytes, serialized %d", fieldNumber, size, written)
	}
	return nil
}

// AppendGroup writes START_GROUP, the body, and END_GROUP with the same field number.
func (e *Encoder) AppendGroup(fieldNumber FieldNumber, m Message) error {
	t, err := tag(fieldNumber, WireStartGroup)
	if err != nil {
		return err
	}
	e.out.AppendVarUInt64(t)
	if err := m.SerializeTo(e); err != nil {
		return err
	}
	return e.out.AppendTag(fieldNumber, WireEndGroup)
}
