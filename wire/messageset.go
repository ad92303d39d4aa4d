package wire

// Message-set items are encoded as
//
//	group(1) {
//	  type_id(2): varint
//	  message(3): length-delimited
//	}
const (
	MessageSetItemNumber    FieldNumber = 1
	MessageSetTypeIDNumber  FieldNumber = 2
	MessageSetMessageNumber FieldNumber = 3
)

// AppendMessageSetItem writes m as the payload of a message-set item.
func (e *Encoder) AppendMessageSetItem(typeID int32, m Message) error {
	if !FieldNumber(typeID).Valid() {
		return encodeErrorf(ErrInvalidFieldNumber, "Invalid message set type id: %d", typeID)
	}
	if err := e.out.AppendTag(MessageSetItemNumber, WireStartGroup); err != nil {
		return err
	}
	if err := e.AppendInt32(MessageSetTypeIDNumber, int64(typeID)); err != nil {
		return err
	}
	if err := e.AppendMessage(MessageSetMessageNumber, m); err != nil {
		return err
	}
	return e.out.AppendTag(MessageSetItemNumber, WireEndGroup)
}

// ReadMessageSetItem reads the body of an item whose START_GROUP tag has
// already been consumed, through its END_GROUP tag. The payload aliases the
// input. Unknown fields inside the item are skipped.
func (d *Decoder) ReadMessageSetItem() (int32, []byte, error) {
	var (
		typeID     int32
		haveTypeID bool
		payload    []byte
	)
	for {
		if d.in.EndOfStream() {
			return 0, nil, decodeErrorf(ErrUnexpectedEOF, "Truncated message set item")
		}
		fn, wt, err := d.in.ReadTag()
		if err != nil {
			return 0, nil, err
		}
		switch {
		case wt == WireEndGroup:
			if fn != MessageSetItemNumber {
				return 0, nil, decodeErrorf(ErrGroupMismatch, "Message set item ended with end-group tag for field %d", fn)
			}
			if !haveTypeID {
				return 0, nil, decodeErrorf(ErrMissingRequired, "Message set item is missing type_id")
			}
			return typeID, payload, nil
		case fn == MessageSetTypeIDNumber && wt == WireVarint:
			if typeID, err = d.ReadInt32(); err != nil {
				return 0, nil, err
			}
			haveTypeID = true
		case fn == MessageSetMessageNumber && wt == WireBytes:
			if payload, err = d.ReadRawBytes(); err != nil {
				return 0, nil, err
			}
		default:
			if _, err := d.SkipField(fn, wt); err != nil {
				return 0, nil, err
			}
		}
	}
}
