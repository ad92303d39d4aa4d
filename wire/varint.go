package wire

// ZigZagEncode32 maps a signed 32-bit integer onto an unsigned one so that
// values of small magnitude stay small: 0→0, -1→1, 1→2, -2→3, ...
func ZigZagEncode32(v int32) uint32 {
	return uint32(v<<1) ^ uint32(v>>31)
}

// ZigZagDecode32 inverts ZigZagEncode32.
func ZigZagDecode32(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// ZigZagEncode64 is the 64-bit variant of ZigZagEncode32.
func ZigZagEncode64(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

// ZigZagDecode64 inverts ZigZagEncode64.
func ZigZagDecode64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// VarintSize returns the number of bytes needed to encode the given varint
func VarintSize(v uint64) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	case v < 1<<28:
		return 4
	case v < 1<<35:
		return 5
	case v < 1<<42:
		return 6
	case v < 1<<49:
		return 7
	case v < 1<<56:
		return 8
	case v < 1<<63:
		return 9
	default:
		return 10
	}
}

// appendVarint appends v in base-128 little-endian form.
func appendVarint(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// AppendVarint appends the varint encoding of v to b.
func AppendVarint(b []byte, v uint64) []byte {
	return appendVarint(b, v)
}
