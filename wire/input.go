package wire

import (
	"encoding/binary"
)

// ToEnd asks GetSubBuffer for everything up to the end of the stream.
const ToEnd = -1

// InputStream is a bounds-checked cursor over an immutable byte slice.
// Sub-buffers alias the underlying slice; it must outlive them.
type InputStream struct {
	buf []byte
	pos int
}

// NewInputStream creates a stream positioned at the start of b.
func NewInputStream(b []byte) *InputStream {
	return &InputStream{buf: b}
}

// Position returns the cursor offset from the start of the stream.
func (s *InputStream) Position() int {
	return s.pos
}

// Len returns the total length of the stream.
func (s *InputStream) Len() int {
	return len(s.buf)
}

// Remaining returns the number of unread bytes.
func (s *InputStream) Remaining() int {
	if s.pos >= len(s.buf) {
		return 0
	}
	return len(s.buf) - s.pos
}

// EndOfStream reports whether every byte has been consumed.
func (s *InputStream) EndOfStream() bool {
	return s.pos >= len(s.buf)
}

// GetSubBuffer returns a read-only view of size bytes starting at the current
// position, without advancing. Pass ToEnd for the rest of the stream.
func (s *InputStream) GetSubBuffer(size int) ([]byte, error) {
	if size == ToEnd {
		return s.buf[s.pos:len(s.buf):len(s.buf)], nil
	}
	if size < 0 {
		return nil, decodeErrorf(ErrNegativeSize, "Negative size %d", size)
	}
	if size > s.Remaining() {
		return nil, decodeErrorf(ErrUnexpectedEOF, "Truncated stream: need %d bytes, have %d", size, s.Remaining())
	}
	end := s.pos + size
	return s.buf[s.pos:end:end], nil
}

// SkipBytes advances the cursor by n bytes, stopping at the end of the stream.
func (s *InputStream) SkipBytes(n int) error {
	if n < 0 {
		return decodeErrorf(ErrNegativeSize, "Negative skip size %d", n)
	}
	if n > s.Remaining() {
		n = s.Remaining()
	}
	s.pos += n
	return nil
}

// ReadBytes returns the next n bytes as a view and advances past them.
func (s *InputStream) ReadBytes(n int) ([]byte, error) {
	b, err := s.GetSubBuffer(n)
	if err != nil {
		return nil, err
	}
	s.pos += n
	return b, nil
}

// ReadLittleEndian32 reads a fixed 4-byte little-endian value.
func (s *InputStream) ReadLittleEndian32() (uint32, error) {
	if s.Remaining() < 4 {
		return 0, decodeErrorf(ErrUnexpectedEOF, "Truncated fixed32: need 4 bytes, have %d", s.Remaining())
	}
	v := binary.LittleEndian.Uint32(s.buf[s.pos:])
	s.pos += 4
	return v, nil
}

// ReadLittleEndian64 reads a fixed 8-byte little-endian value.
func (s *InputStream) ReadLittleEndian64() (uint64, error) {
	if s.Remaining() < 8 {
		return 0, decodeErrorf(ErrUnexpectedEOF, "Truncated fixed64: need 8 bytes, have %d", s.Remaining())
	}
	v := binary.LittleEndian.Uint64(s.buf[s.pos:])
	s.pos += 8
	return v, nil
}

// ReadVarUInt64 reads a base-128 varint of at most MaxVarintLen bytes.
func (s *InputStream) ReadVarUInt64() (uint64, error) {
	var result uint64
	for i := 0; i < MaxVarintLen; i++ {
		if s.pos >= len(s.buf) {
			return 0, decodeErrorf(ErrUnexpectedEOF, "Truncated varint.")
		}
		b := s.buf[s.pos]
		s.pos++

		if i == MaxVarintLen-1 {
			// Only the lowest bit of the tenth byte still fits in 64 bits.
			if b&0x80 != 0 {
				return 0, decodeErrorf(ErrVarintTooLong, "Too many bytes when decoding varint.")
			}
			if b > 1 {
				return 0, decodeErrorf(ErrOutOfRange, "Value out of range for uint64.")
			}
		}

		result |= uint64(b&0x7F) << (7 * uint(i))
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return 0, decodeErrorf(ErrVarintTooLong, "Too many bytes when decoding varint.")
}

// ReadVarUInt32 reads an unsigned varint and checks it fits in 32 bits.
func (s *InputStream) ReadVarUInt32() (uint32, error) {
	v, err := s.ReadVarUInt64()
	if err != nil {
		return 0, err
	}
	if v > MaxUint32 {
		return 0, decodeErrorf(ErrOutOfRange, "Value out of range for uint32: %d", v)
	}
	return uint32(v), nil
}

// ReadVarint64 reads a varint and reinterprets it as two's complement.
func (s *InputStream) ReadVarint64() (int64, error) {
	v, err := s.ReadVarUInt64()
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// ReadVarint32 reads a sign-extended varint and checks it fits in 32 bits.
func (s *InputStream) ReadVarint32() (int32, error) {
	v, err := s.ReadVarint64()
	if err != nil {
		return 0, err
	}
	if v < MinInt32 || v > MaxInt32 {
		return 0, decodeErrorf(ErrOutOfRange, "Value out of range for int32: %d", v)
	}
	return int32(v), nil
}

// ReadSInt32 reads a zigzag-encoded 32-bit value.
func (s *InputStream) ReadSInt32() (int32, error) {
	v, err := s.ReadVarUInt32()
	if err != nil {
		return 0, err
	}
	return ZigZagDecode32(v), nil
}

// ReadSInt64 reads a zigzag-encoded 64-bit value.
func (s *InputStream) ReadSInt64() (int64, error) {
	v, err := s.ReadVarUInt64()
	if err != nil {
		return 0, err
	}
	return ZigZagDecode64(v), nil
}

// ReadTag reads a varint tag and splits it. Tags wider than 32 bits are rejected.
func (s *InputStream) ReadTag() (FieldNumber, WireType, error) {
	v, err := s.ReadVarUInt64()
	if err != nil {
		return 0, 0, err
	}
	if v > MaxUint32 {
		return 0, 0, decodeErrorf(ErrInvalidFieldNumber, "Tag out of range: %d", v)
	}
	fn, wt := UnpackTag(Tag(v))
	return fn, wt, nil
}

// ReadRawTag reads a tag and returns its bytes exactly as they appear in the
// stream, including any redundant continuation bytes.
func (s *InputStream) ReadRawTag() ([]byte, FieldNumber, WireType, error) {
	start := s.pos
	fn, wt, err := s.ReadTag()
	if err != nil {
		return nil, 0, 0, err
	}
	return s.buf[start:s.pos:s.pos], fn, wt, nil
}

// ReadLength reads a varint length prefix and checks it against the remaining bytes.
func (s *InputStream) ReadLength() (int, error) {
	v, err := s.ReadVarUInt64()
	if err != nil {
		return 0, err
	}
	if v > uint64(s.Remaining()) {
		return 0, decodeErrorf(ErrUnexpectedEOF, "Truncated message: length %d exceeds remaining %d bytes", v, s.Remaining())
	}
	return int(v), nil
}
