package main

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/protolite/dynpb/wire"
)

// dumpRaw writes b as protoc --decode_raw does: one "number: value" line per
// field, with length-delimited values that parse as messages and groups shown
// as nested blocks.
func dumpRaw(w io.Writer, b []byte) error {
	var buf bytes.Buffer
	if err := dumpRawTo(&buf, b, 0); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func dumpRawTo(buf *bytes.Buffer, b []byte, depth int) error {
	if depth > wire.DefaultRecursionLimit {
		return wire.NewDecodeError(wire.ErrRecursionLimit, "Nesting exceeds recursion limit %d", wire.DefaultRecursionLimit)
	}
	indent := strings.Repeat("  ", depth)
	d := wire.NewDecoder(b)
	for !d.EndOfStream() {
		fn, wt, err := d.ReadFieldNumberAndWireType()
		if err != nil {
			return err
		}
		switch wt {
		case wire.WireVarint:
			v, err := d.ReadUInt64()
			if err != nil {
				return err
			}
			fmt.Fprintf(buf, "%s%d: %d\n", indent, fn, v)
		case wire.WireFixed64:
			v, err := d.ReadFixed64()
			if err != nil {
				return err
			}
			fmt.Fprintf(buf, "%s%d: 0x%016x\n", indent, fn, v)
		case wire.WireFixed32:
			v, err := d.ReadFixed32()
			if err != nil {
				return err
			}
			fmt.Fprintf(buf, "%s%d: 0x%08x\n", indent, fn, v)
		case wire.WireBytes:
			v, err := d.ReadRawBytes()
			if err != nil {
				return err
			}
			var nested bytes.Buffer
			if len(v) > 0 && dumpRawTo(&nested, v, depth+1) == nil {
				fmt.Fprintf(buf, "%s%d {\n%s%s}\n", indent, fn, nested.Bytes(), indent)
				continue
			}
			fmt.Fprintf(buf, "%s%d: %s\n", indent, fn, strconv.Quote(string(v)))
		case wire.WireStartGroup:
			body, err := d.SkipGroup(fn)
			if err != nil {
				return err
			}
			fmt.Fprintf(buf, "%s%d {\n", indent, fn)
			if err := dumpRawTo(buf, body, depth+1); err != nil {
				return err
			}
			fmt.Fprintf(buf, "%s}\n", indent)
		default:
			return wire.NewDecodeError(wire.ErrInvalidWireType, "Unexpected wire type %d for field %d", int32(wt), fn)
		}
	}
	return nil
}
