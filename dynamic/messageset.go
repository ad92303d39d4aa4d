package dynamic

import (
	"fmt"

	"github.com/protolite/dynpb/wire"
)

// MessageSetItem is one type_id/message pair of a message-set encoded message.
type MessageSetItem struct {
	TypeID  int32
	Message []byte
}

// MessageSetItems decodes the items m holds. A message declared with
// message_set_wire_format keeps its items among the unknown fields.
func (m *Message) MessageSetItems() ([]MessageSetItem, error) {
	var items []MessageSetItem
	for _, u := range m.unknown {
		fn, wt, err := wire.NewInputStream(u.Tag).ReadTag()
		if err != nil {
			return nil, err
		}
		if fn != wire.MessageSetItemNumber || wt != wire.WireStartGroup {
			continue
		}
		typeID, payload, err := wire.NewDecoder(u.Value).ReadMessageSetItem()
		if err != nil {
			return nil, err
		}
		items = append(items, MessageSetItem{TypeID: typeID, Message: append([]byte(nil), payload...)})
	}
	return items, nil
}

// AddMessageSetItem appends item under typeID.
func (m *Message) AddMessageSetItem(typeID int32, item wire.Message) error {
	if !m.desc.MessageSetWireFormat {
		return fmt.Errorf("%w: %s does not use message_set_wire_format", ErrWrongKind, m.desc.DisplayName())
	}
	e := wire.NewEncoderSize(wire.MessageSetItemByteSize(typeID, item))
	if err := e.AppendMessageSetItem(typeID, item); err != nil {
		return err
	}
	b := e.Bytes()
	n := wire.TagByteSize(wire.MessageSetItemNumber)
	m.unknown = append(m.unknown, wire.UnknownField{Tag: b[:n:n], Value: b[n:], After: wire.MaxFieldNumber})
	m.modified()
	return nil
}
