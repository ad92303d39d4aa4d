package wire

import (
	"encoding/binary"
)

// OutputStream is an append-only byte buffer with typed appenders.
// A failing append leaves the buffer untouched.
type OutputStream struct {
	buf []byte
}

// NewOutputStream creates an empty output stream
func NewOutputStream() *OutputStream {
	return &OutputStream{}
}

// NewOutputStreamSize creates an output stream with room for size bytes.
func NewOutputStreamSize(size int) *OutputStream {
	return &OutputStream{buf: make([]byte, 0, size)}
}

// Bytes returns the accumulated bytes
func (o *OutputStream) Bytes() []byte {
	return o.buf
}

// Len returns the number of bytes written so far.
func (o *OutputStream) Len() int {
	return len(o.buf)
}

// AppendRawBytes appends b without any framing.
func (o *OutputStream) AppendRawBytes(b []byte) {
	o.buf = append(o.buf, b...)
}

// AppendLittleEndian32 appends v as 4 little-endian bytes.
func (o *OutputStream) AppendLittleEndian32(v uint64) error {
	if v > MaxUint32 {
		return encodeErrorf(ErrOutOfRange, "Value out of range for fixed32: %d", v)
	}
	o.buf = binary.LittleEndian.AppendUint32(o.buf, uint32(v))
	return nil
}

// AppendLittleEndian64 appends v as 8 little-endian bytes.
func (o *OutputStream) AppendLittleEndian64(v uint64) {
	o.buf = binary.LittleEndian.AppendUint64(o.buf, v)
}

// AppendVarint32 appends a signed 32-bit value, sign-extended to 64 bits.
// Negative values therefore always take 10 bytes.
func (o *OutputStream) AppendVarint32(v int64) error {
	if v < MinInt32 || v > MaxInt32 {
		return encodeErrorf(ErrOutOfRange, "Value out of range for int32: %d", v)
	}
	o.AppendVarint64(v)
	return nil
}

// AppendVarint64 appends the two's-complement form of v as a varint.
func (o *OutputStream) AppendVarint64(v int64) {
	o.AppendVarUInt64(uint64(v))
}

// AppendVarUInt32 appends an unsigned 32-bit value.
func (o *OutputStream) AppendVarUInt32(v uint64) error {
	if v > MaxUint32 {
		return encodeErrorf(ErrOutOfRange, "Value out of range for uint32: %d", v)
	}
	o.AppendVarUInt64(v)
	return nil
}

// AppendVarUInt64 emits 7 low bits per byte with the continuation bit set on
// all but the last byte.
func (o *OutputStream) AppendVarUInt64(v uint64) {
	o.buf = appendVarint(o.buf, v)
}

// AppendTag appends the varint-encoded tag for fieldNumber and wireType.
func (o *OutputStream) AppendTag(fieldNumber FieldNumber, wireType WireType) error {
	tag, err := PackTag(fieldNumber, wireType)
	if err != nil {
		return err
	}
	o.AppendVarUInt64(uint64(tag))
	return nil
}
