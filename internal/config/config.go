// Package config loads connection settings for the sqlitell CLI.
//
// Settings come from a YAML (.yaml, .yml) or CUE (.cue) file. Both are
// unified with the #Config schema in schema.cue before use, so a file
// that names an unknown field, an unknown mode or a malformed pragma is
// rejected with the CUE error.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sqlitell"
)

//go:embed schema.cue
var schemaCUE string

// Modes accepted in the mode field.
const (
	ModeReadWriteCreate = "rwc"
	ModeReadWrite       = "rw"
	ModeReadOnly        = "ro"
	ModeMemory          = "memory"
)

// Config is a validated connection configuration.
type Config struct {
	Path        string   `json:"path,omitempty"`
	Mode        string   `json:"mode,omitempty"`
	Flags       []string `json:"flags,omitempty"`
	BusyTimeout string   `json:"busy_timeout,omitempty"`
	Pragmas     []string `json:"pragmas,omitempty"`
}

// ErrUnsupportedFormat is returned for files that are neither YAML nor CUE.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(filepath.Base(path), data)
}

// Parse validates data as a configuration. The format is chosen by the
// extension of name.
func Parse(name string, data []byte) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile config schema: %w", err)
	}

	var value cue.Value
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
		value = ctx.Encode(raw)
	case ".cue":
		value = ctx.CompileBytes(data, cue.Filename(name))
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", name, err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return &cfg, nil
}

// OpenOptions converts the configuration into options for sqlitell.
func (c *Config) OpenOptions(logger *slog.Logger) (sqlitell.OpenOptions, error) {
	opts := sqlitell.OpenOptions{
		Pragmas: c.Pragmas,
		Logger:  logger,
	}

	switch c.Mode {
	case "", ModeReadWriteCreate:
		opts.Flags = sqlitell.OpenReadWrite | sqlitell.OpenCreate
	case ModeReadWrite:
		opts.Flags = sqlitell.OpenReadWrite
	case ModeReadOnly:
		opts.Flags = sqlitell.OpenReadOnly
	case ModeMemory:
		opts.Flags = sqlitell.OpenReadWrite | sqlitell.OpenCreate | sqlitell.OpenMemory
	default:
		return opts, fmt.Errorf("unknown mode %q", c.Mode)
	}

	for _, name := range c.Flags {
		f, err := sqlitell.ParseOpenFlag(name)
		if err != nil {
			return opts, err
		}
		opts.Flags |= f
	}

	if c.BusyTimeout != "" {
		d, err := time.ParseDuration(c.BusyTimeout)
		if err != nil {
			return opts, fmt.Errorf("invalid busy_timeout: %w", err)
		}
		opts.BusyTimeout = d
	}
	return opts, nil
}

// Open opens path, or the configured path when path is empty.
func (c *Config) Open(path string, logger *slog.Logger) (*sqlitell.Conn, error) {
	if path == "" {
		path = c.Path
	}
	if path == "" {
		return nil, errors.New("no database path given")
	}
	opts, err := c.OpenOptions(logger)
	if err != nil {
		return nil, err
	}
	return opts.Open(path)
}
