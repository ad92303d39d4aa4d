package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/op/go-logging"

	"github.com/protolite/dynpb"
)

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// schemaFlags are shared by every subcommand that needs a registry.
type schemaFlags struct {
	config         string
	protoPaths     stringList
	protos         stringList
	descriptorSets stringList
	compile        bool
	logLevel       string
}

func (f *schemaFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.config, "config", "", "YAML configuration file.")
	fs.Var(&f.protoPaths, "I", "Directory searched for imports. May be repeated.")
	fs.Var(&f.protos, "proto", "A .proto file to load, relative to the -I paths. May be repeated.")
	fs.Var(&f.descriptorSets, "descriptor-set", "A serialized FileDescriptorSet to load. May be repeated.")
	fs.BoolVar(&f.compile, "compile", false, "Load -proto files with the protocompile front end.")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: CRITICAL, ERROR, WARNING, NOTICE, INFO or DEBUG.")
}

// load builds the configuration from -config, the environment and the
// command line, in increasing order of precedence, and loads the schemas.
func (f *schemaFlags) load() (*dynpb.Protolite, error) {
	cfg := dynpb.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = dynpb.LoadConfig(f.config); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.ProtoPaths = append(cfg.ProtoPaths, f.protoPaths...)
	cfg.Files = append(cfg.Files, f.protos...)
	cfg.DescriptorSets = append(cfg.DescriptorSets, f.descriptorSets...)
	if f.compile {
		cfg.Compile = true
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if err := setupLogging(cfg.LogLevel); err != nil {
		return nil, err
	}
	if len(cfg.ProtoPaths) == 0 {
		cfg.ProtoPaths = []string{"."}
	}
	log.Debugf("loading %d files and %d descriptor sets", len(cfg.Files), len(cfg.DescriptorSets))
	return dynpb.New(cfg)
}

// setupLogging sends leveled log output to stderr.
func setupLogging(level string) error {
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatter := logging.MustStringFormatter(`%{time:15:04:05.000} %{module} %{level:.4s} %{message}`)
	leveled := logging.AddModuleLevel(logging.NewBackendFormatter(backend, formatter))
	leveled.SetLevel(lvl, "")
	logging.SetBackend(leveled)
	return nil
}
