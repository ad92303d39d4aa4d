// Command dynpb inspects protobuf payloads using .proto sources or
// descriptor sets loaded at run time.
package main

import (
	"os"

	"github.com/maruel/subcommands"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("dynpb.cmd")

func getApplication() *subcommands.DefaultApplication {
	return &subcommands.DefaultApplication{
		Name:  "dynpb",
		Title: "Decode and re-encode protobuf payloads without generated code.",
		Commands: []*subcommands.Command{
			subcommands.CmdHelp,
			cmdDecodeRaw,
			cmdDecode,
			cmdRoundTrip,
			cmdDescribe,
		},
	}
}

func main() {
	if err := setupLogging("WARNING"); err != nil {
		panic(err)
	}
	os.Exit(subcommands.Run(getApplication(), os.Args[1:]))
}
