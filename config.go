package dynpb

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/op/go-logging"
	"gopkg.in/yaml.v2"

	"github.com/protolite/dynpb/wire"
)

// Config controls how a Protolite instance loads schemas and how it parses
// and serializes messages.
type Config struct {
	// ProtoPaths are the roots that import paths are resolved against.
	ProtoPaths []string `yaml:"proto_paths"`
	// Files are .proto import paths loaded at startup.
	Files []string `yaml:"files"`
	// DescriptorSets are serialized FileDescriptorSet files loaded at startup.
	DescriptorSets []string `yaml:"descriptor_sets"`
	// Compile loads Files with the protocompile front end instead of
	// go-protoparser.
	Compile bool `yaml:"compile"`
	// WellKnownTypes registers the compiled-in google/protobuf types.
	WellKnownTypes bool `yaml:"well_known_types"`

	DiscardUnknown bool `yaml:"discard_unknown"`
	AllowPartial   bool `yaml:"allow_partial"`
	// RecursionLimit bounds message nesting while parsing.
	RecursionLimit int `yaml:"recursion_limit"`
	// BatchWorkers caps the goroutines used by ParseBatch and MarshalBatch.
	BatchWorkers int `yaml:"batch_workers"`
	// LogLevel is a go-logging level name, e.g. "INFO" or "DEBUG".
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		RecursionLimit: wire.DefaultRecursionLimit,
		BatchWorkers:   8,
		LogLevel:       "WARNING",
	}
}

// LoadConfig reads a YAML configuration file. Keys missing from the file keep
// their DefaultConfig values and relative proto paths are taken relative to
// the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i, p := range cfg.ProtoPaths {
		if !filepath.IsAbs(p) {
			cfg.ProtoPaths[i] = filepath.Join(base, p)
		}
	}
	for i, p := range cfg.DescriptorSets {
		if !filepath.IsAbs(p) {
			cfg.DescriptorSets[i] = filepath.Join(base, p)
		}
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from DYNPB_* environment variables.
// DYNPB_PROTO_PATH is a list separated by os.PathListSeparator and is
// appended to ProtoPaths.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("DYNPB_PROTO_PATH"); v != "" {
		c.ProtoPaths = append(c.ProtoPaths, filepath.SplitList(v)...)
	}
	if v := os.Getenv("DYNPB_DISCARD_UNKNOWN"); v != "" {
		c.DiscardUnknown = envBool(v)
	}
	if v := os.Getenv("DYNPB_ALLOW_PARTIAL"); v != "" {
		c.AllowPartial = envBool(v)
	}
	if v := os.Getenv("DYNPB_COMPILE"); v != "" {
		c.Compile = envBool(v)
	}
	if v := os.Getenv("DYNPB_RECURSION_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DYNPB_RECURSION_LIMIT: %w", err)
		}
		c.RecursionLimit = n
	}
	if v := os.Getenv("DYNPB_BATCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DYNPB_BATCH_WORKERS: %w", err)
		}
		c.BatchWorkers = n
	}
	if v := os.Getenv("DYNPB_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return c.Validate()
}

func envBool(v string) bool {
	v = strings.ToLower(v)
	return v == "1" || v == "true"
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.RecursionLimit < 0 {
		return fmt.Errorf("recursion_limit must not be negative: %d", c.RecursionLimit)
	}
	if c.BatchWorkers < 0 {
		return fmt.Errorf("batch_workers must not be negative: %d", c.BatchWorkers)
	}
	if c.LogLevel != "" {
		if _, err := logging.LogLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
		}
	}
	return nil
}
