package wire

// SkipField consumes the value of a field whose tag has already been read and
// returns the raw value bytes as a view into the input. For a group the value
// is the body together with its END_GROUP tag, so that tag+value re-emits the
// field verbatim.
func (d *Decoder) SkipField(fieldNumber FieldNumber, wireType WireType) ([]byte, error) {
	return d.skipField(fieldNumber, wireType, 0)
}

// SkipGroup consumes a group whose START_GROUP tag has already been read and
// returns its body, without the END_GROUP tag.
func (d *Decoder) SkipGroup(fieldNumber FieldNumber) ([]byte, error) {
	start := d.in.Position()
	end, err := d.skipGroup(fieldNumber, 1)
	if err != nil {
		return nil, err
	}
	return d.in.buf[start:end:end], nil
}

func (d *Decoder) skipField(fieldNumber FieldNumber, wireType WireType, depth int) ([]byte, error) {
	start := d.in.Position()
	switch wireType {
	case WireVarint:
		if _, err := d.in.ReadVarUInt64(); err != nil {
			return nil, err
		}
	case WireFixed64:
		if _, err := d.in.ReadLittleEndian64(); err != nil {
			return nil, err
		}
	case WireFixed32:
		if _, err := d.in.ReadLittleEndian32(); err != nil {
			return nil, err
		}
	case WireBytes:
		n, err := d.in.ReadLength()
		if err != nil {
			return nil, err
		}
		if _, err := d.in.ReadBytes(n); err != nil {
			return nil, err
		}
	case WireStartGroup:
		if _, err := d.skipGroup(fieldNumber, depth+1); err != nil {
			return nil, err
		}
	case WireEndGroup:
		return nil, decodeErrorf(ErrUnexpectedEndGroup, "Unexpected end-group tag for field %d", fieldNumber)
	default:
		return nil, decodeErrorf(ErrInvalidWireType, "Invalid wire type %d for field %d", int32(wireType), fieldNumber)
	}
	return d.in.buf[start:d.in.pos:d.in.pos], nil
}

// skipGroup skips fields until the END_GROUP tag matching fieldNumber and
// returns the position where that tag starts.
func (d *Decoder) skipGroup(fieldNumber FieldNumber, depth int) (int, error) {
	if depth > d.recursionLimit {
		return 0, decodeErrorf(ErrRecursionLimit, "Group nesting exceeds recursion limit %d", d.recursionLimit)
	}
	for {
		if d.in.EndOfStream() {
			return 0, decodeErrorf(ErrUnexpectedEOF, "Truncated group: missing end-group tag for field %d", fieldNumber)
		}
		tagStart := d.in.Position()
		fn, wt, err := d.in.ReadTag()
		if err != nil {
			return 0, err
		}
		if wt == WireEndGroup {
			if fn != fieldNumber {
				return 0, decodeErrorf(ErrGroupMismatch, "Group %d ended with end-group tag for field %d", fieldNumber, fn)
			}
			return tagStart, nil
		}
		if _, err := d.skipField(fn, wt, depth); err != nil {
			return 0, err
		}
	}
}
