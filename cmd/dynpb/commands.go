package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/maruel/subcommands"

	"github.com/protolite/dynpb/schema"
)

var errUsage = errors.New("expected exactly one input file (use - for stdin)")

func report(a subcommands.Application, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(a.GetErr(), "%s: %s\n", a.GetName(), err)
	return 1
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: decode-raw
////////////////////////////////////////////////////////////////////////////////

var cmdDecodeRaw = &subcommands.Command{
	UsageLine: "decode-raw <file>",
	ShortDesc: "prints the fields of a payload without a schema",
	LongDesc: `Prints tag numbers and values of a payload without a schema, like
protoc --decode_raw. Length-delimited values that parse as messages are shown
nested.`,
	CommandRun: func() subcommands.CommandRun {
		return &decodeRawRun{}
	},
}

type decodeRawRun struct {
	subcommands.CommandRunBase
}

func (c *decodeRawRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	return report(a, c.run(a.GetOut(), args))
}

func (c *decodeRawRun) run(out io.Writer, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	data, err := readInput(args[0])
	if err != nil {
		return err
	}
	return dumpRaw(out, data)
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: decode
////////////////////////////////////////////////////////////////////////////////

var cmdDecode = &subcommands.Command{
	UsageLine: "decode -type <message> [schema flags] <file>",
	ShortDesc: "prints a payload using a message schema",
	CommandRun: func() subcommands.CommandRun {
		c := &decodeRun{}
		c.schema.register(&c.Flags)
		c.Flags.StringVar(&c.messageType, "type", "", "Fully qualified message type of the payload.")
		return c
	},
}

type decodeRun struct {
	subcommands.CommandRunBase
	schema      schemaFlags
	messageType string
}

func (c *decodeRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	return report(a, c.run(a.GetOut(), args))
}

func (c *decodeRun) run(out io.Writer, args []string) error {
	if c.messageType == "" {
		return errors.New("-type is required")
	}
	if len(args) != 1 {
		return errUsage
	}
	p, err := c.schema.load()
	if err != nil {
		return err
	}
	data, err := readInput(args[0])
	if err != nil {
		return err
	}
	msg, err := p.Parse(data, c.messageType)
	if err != nil {
		return err
	}
	return printMessage(out, msg)
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: roundtrip
////////////////////////////////////////////////////////////////////////////////

var cmdRoundTrip = &subcommands.Command{
	UsageLine: "roundtrip -type <message> [schema flags] <file>",
	ShortDesc: "parses and re-serializes a payload",
	LongDesc: `Parses a payload and serializes it again, reporting the sizes and
whether the output is byte-identical to the input. Payloads written by other
encoders may legitimately differ, e.g. in field order.`,
	CommandRun: func() subcommands.CommandRun {
		c := &roundTripRun{}
		c.schema.register(&c.Flags)
		c.Flags.StringVar(&c.messageType, "type", "", "Fully qualified message type of the payload.")
		return c
	},
}

type roundTripRun struct {
	subcommands.CommandRunBase
	schema      schemaFlags
	messageType string
}

func (c *roundTripRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	return report(a, c.run(a.GetOut(), args))
}

func (c *roundTripRun) run(out io.Writer, args []string) error {
	if c.messageType == "" {
		return errors.New("-type is required")
	}
	if len(args) != 1 {
		return errUsage
	}
	p, err := c.schema.load()
	if err != nil {
		return err
	}
	data, err := readInput(args[0])
	if err != nil {
		return err
	}
	msg, err := p.Parse(data, c.messageType)
	if err != nil {
		return err
	}
	again, err := p.Marshal(msg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "input:     %s\n", humanize.Bytes(uint64(len(data))))
	fmt.Fprintf(out, "output:    %s\n", humanize.Bytes(uint64(len(again))))
	fmt.Fprintf(out, "unknown:   %d fields\n", len(msg.UnknownFields()))
	fmt.Fprintf(out, "identical: %t\n", bytes.Equal(data, again))
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: describe
////////////////////////////////////////////////////////////////////////////////

var cmdDescribe = &subcommands.Command{
	UsageLine: "describe [-type <message>] [schema flags]",
	ShortDesc: "lists loaded types or the fields of one message",
	CommandRun: func() subcommands.CommandRun {
		c := &describeRun{}
		c.schema.register(&c.Flags)
		c.Flags.StringVar(&c.messageType, "type", "", "Message to describe. Lists every type when empty.")
		return c
	},
}

type describeRun struct {
	subcommands.CommandRunBase
	schema      schemaFlags
	messageType string
}

func (c *describeRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	return report(a, c.run(a.GetOut(), args))
}

func (c *describeRun) run(out io.Writer, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))
	}
	p, err := c.schema.load()
	if err != nil {
		return err
	}
	if c.messageType == "" {
		for _, section := range []struct {
			title string
			names []string
		}{
			{"messages", p.ListMessages()},
			{"enums", p.ListEnums()},
			{"services", p.ListServices()},
		} {
			fmt.Fprintf(out, "%s:\n", section.title)
			for _, n := range section.names {
				fmt.Fprintf(out, "  %s\n", n)
			}
		}
		return nil
	}

	desc, err := p.GetRegistry().GetMessage(c.messageType)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "message %s (%s)\n", desc.FullName, desc.Syntax)
	for _, f := range desc.AllFields() {
		line := fmt.Sprintf("  %d %s %s %s", f.Number, f.Label, f.Name, typeName(&f.Type))
		if o := desc.OneofOf(f); o != nil {
			line += " oneof=" + o.Name
		}
		if f.IsPacked(desc) {
			line += " packed"
		}
		if f.DefaultValue != "" {
			line += " default=" + f.DefaultValue
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func typeName(ft *schema.FieldType) string {
	switch ft.Kind {
	case schema.KindMap:
		return fmt.Sprintf("map<%s, %s>", typeName(ft.MapKey), typeName(ft.MapValue))
	case schema.KindMessage:
		return ft.MessageType
	case schema.KindGroup:
		return "group " + ft.MessageType
	case schema.KindEnum:
		return "enum " + ft.EnumType
	default:
		return string(ft.PrimitiveType)
	}
}
