package main

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/protolite/dynpb/dynamic"
	"github.com/protolite/dynpb/schema"
)

// printMessage writes msg in a text format close to the protobuf text
// format. Enum values print by name when known; unknown fields are dumped raw
// under their numbers.
func printMessage(w io.Writer, msg *dynamic.Message) error {
	var buf bytes.Buffer
	if err := printFields(&buf, msg, 0); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func printFields(buf *bytes.Buffer, msg *dynamic.Message, depth int) error {
	indent := strings.Repeat("  ", depth)
	for _, fv := range msg.ListFields() {
		f := fv.Field
		switch v := fv.Value.(type) {
		case *dynamic.List:
			for _, e := range v.Values() {
				if err := printValue(buf, msg, &f.Type, f.Name, e, depth); err != nil {
					return err
				}
			}
		case *dynamic.Map:
			var err error
			v.Range(func(key, value interface{}) bool {
				fmt.Fprintf(buf, "%s%s {\n", indent, f.Name)
				if err = printValue(buf, msg, f.Type.MapKey, "key", key, depth+1); err != nil {
					return false
				}
				if err = printValue(buf, msg, f.Type.MapValue, "value", value, depth+1); err != nil {
					return false
				}
				fmt.Fprintf(buf, "%s}\n", indent)
				return true
			})
			if err != nil {
				return err
			}
		default:
			if err := printValue(buf, msg, &f.Type, f.Name, v, depth); err != nil {
				return err
			}
		}
	}
	for _, u := range msg.UnknownFields() {
		var raw bytes.Buffer
		if err := dumpRawTo(&raw, append(append([]byte(nil), u.Tag...), u.Value...), depth); err != nil {
			return err
		}
		buf.Write(raw.Bytes())
	}
	return nil
}

func printValue(buf *bytes.Buffer, msg *dynamic.Message, ft *schema.FieldType, name string, v interface{}, depth int) error {
	indent := strings.Repeat("  ", depth)
	switch x := v.(type) {
	case *dynamic.Message:
		fmt.Fprintf(buf, "%s%s {\n", indent, name)
		if err := printFields(buf, x, depth+1); err != nil {
			return err
		}
		fmt.Fprintf(buf, "%s}\n", indent)
	case string:
		fmt.Fprintf(buf, "%s%s: %s\n", indent, name, strconv.Quote(x))
	case []byte:
		fmt.Fprintf(buf, "%s%s: %s\n", indent, name, strconv.Quote(string(x)))
	case int32:
		if ft.Kind == schema.KindEnum {
			if enum, err := msg.Resolver().GetEnum(ft.EnumType); err == nil {
				if ev := enum.Value(x); ev != nil {
					fmt.Fprintf(buf, "%s%s: %s\n", indent, name, ev.Name)
					return nil
				}
			}
		}
		fmt.Fprintf(buf, "%s%s: %d\n", indent, name, x)
	default:
		fmt.Fprintf(buf, "%s%s: %v\n", indent, name, x)
	}
	return nil
}
