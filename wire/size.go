package wire

// Byte-size helpers. Every XxxByteSize includes the tag; the NoTag variants
// cover just the payload, which is what packed repeated fields need.

// TagByteSize returns the size of the varint-encoded tag for fieldNumber.
func TagByteSize(fieldNumber FieldNumber) int {
	return VarintSize(uint64(fieldNumber) << tagTypeBits)
}

func Int32ByteSizeNoTag(v int32) int   { return VarintSize(uint64(int64(v))) }
func Int64ByteSizeNoTag(v int64) int   { return VarintSize(uint64(v)) }
func UInt32ByteSizeNoTag(v uint32) int { return VarintSize(uint64(v)) }
func UInt64ByteSizeNoTag(v uint64) int { return VarintSize(v) }
func SInt32ByteSizeNoTag(v int32) int  { return VarintSize(uint64(ZigZagEncode32(v))) }
func SInt64ByteSizeNoTag(v int64) int  { return VarintSize(ZigZagEncode64(v)) }

// LengthDelimitedSizeNoTag is the size of an n-byte payload plus its length prefix.
func LengthDelimitedSizeNoTag(n int) int {
	return VarintSize(uint64(n)) + n
}

func Int32ByteSize(fieldNumber FieldNumber, v int32) int {
	return TagByteSize(fieldNumber) + Int32ByteSizeNoTag(v)
}

func Int64ByteSize(fieldNumber FieldNumber, v int64) int {
	return TagByteSize(fieldNumber) + Int64ByteSizeNoTag(v)
}

func UInt32ByteSize(fieldNumber FieldNumber, v uint32) int {
	return TagByteSize(fieldNumber) + UInt32ByteSizeNoTag(v)
}

func UInt64ByteSize(fieldNumber FieldNumber, v uint64) int {
	return TagByteSize(fieldNumber) + UInt64ByteSizeNoTag(v)
}

func SInt32ByteSize(fieldNumber FieldNumber, v int32) int {
	return TagByteSize(fieldNumber) + SInt32ByteSizeNoTag(v)
}

func SInt64ByteSize(fieldNumber FieldNumber, v int64) int {
	return TagByteSize(fieldNumber) + SInt64ByteSizeNoTag(v)
}

func Fixed32ByteSize(fieldNumber FieldNumber) int  { return TagByteSize(fieldNumber) + 4 }
func Fixed64ByteSize(fieldNumber FieldNumber) int  { return TagByteSize(fieldNumber) + 8 }
func SFixed32ByteSize(fieldNumber FieldNumber) int { return TagByteSize(fieldNumber) + 4 }
func SFixed64ByteSize(fieldNumber FieldNumber) int { return TagByteSize(fieldNumber) + 8 }
func FloatByteSize(fieldNumber FieldNumber) int    { return TagByteSize(fieldNumber) + 4 }
func DoubleByteSize(fieldNumber FieldNumber) int   { return TagByteSize(fieldNumber) + 8 }
func BoolByteSize(fieldNumber FieldNumber) int     { return TagByteSize(fieldNumber) + 1 }

func EnumByteSize(fieldNumber FieldNumber, v int32) int {
	return Int32ByteSize(fieldNumber, v)
}

func StringByteSize(fieldNumber FieldNumber, s string) int {
	return TagByteSize(fieldNumber) + LengthDelimitedSizeNoTag(len(s))
}

func BytesByteSize(fieldNumber FieldNumber, b []byte) int {
	return TagByteSize(fieldNumber) + LengthDelimitedSizeNoTag(len(b))
}

// GroupByteSize counts the start and end tags around the body.
func GroupByteSize(fieldNumber FieldNumber, m Message) int {
	return 2*TagByteSize(fieldNumber) + m.ByteSize()
}

func MessageByteSize(fieldNumber FieldNumber, m Message) int {
	return TagByteSize(fieldNumber) + LengthDelimitedSizeNoTag(m.ByteSize())
}

// MessageSetItemByteSize is the size of group(1){type_id(2); message(3)}.
func MessageSetItemByteSize(typeID int32, m Message) int {
	size := 2*TagByteSize(1) + TagByteSize(2) + TagByteSize(3)
	size += Int32ByteSizeNoTag(typeID)
	return size + LengthDelimitedSizeNoTag(m.ByteSize())
}
