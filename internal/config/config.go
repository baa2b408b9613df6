// Package config loads the ledger configuration file.
//
// The file is YAML. It is decoded strictly (unknown keys are errors) and then
// validated against an embedded CUE schema, so a typo'd kind or an attempt to
// open an admin-only operation is caught before the store is touched:
//
//	database: campus.db
//	log_level: debug
//	enforce_lifecycle: true
//	duplicates:
//	  vote: overwrite
//	policies:
//	  start_session: open
//	http:
//	  addr: ":8080"
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/campusledger/internal/authz"
	"github.com/roach88/campusledger/internal/keyspace"
	"github.com/roach88/campusledger/internal/ledger"
)

//go:embed schema.cue
var schemaCUE string

// Defaults.
const (
	DefaultDatabase = "campusledger.db"
	DefaultLogLevel = "info"
	DefaultHTTPAddr = ":8080"
)

// Config is the ledger configuration.
type Config struct {
	Database         string            `yaml:"database"`
	LogLevel         string            `yaml:"log_level"`
	EnforceLifecycle *bool             `yaml:"enforce_lifecycle"`
	Duplicates       map[string]string `yaml:"duplicates"`
	Policies         map[string]string `yaml:"policies"`
	HTTP             HTTP              `yaml:"http"`
}

// HTTP configures the serve command.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads, validates and defaults the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates configuration YAML.
func Parse(data []byte) (*Config, error) {
	var c Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	c.applyDefaults()
	return &c, nil
}

// validate checks raw against the #Config schema.
func validate(raw map[string]any) error {
	if raw == nil {
		return nil
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	data := ctx.Encode(raw)
	if err := data.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.EnforceLifecycle == nil {
		enforce := true
		c.EnforceLifecycle = &enforce
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LedgerOptions converts the policy, duplicate and lifecycle settings into
// engine options.
func (c *Config) LedgerOptions() ([]ledger.Option, error) {
	var opts []ledger.Option

	if len(c.Policies) > 0 {
		policies := make(map[authz.Op]authz.Policy, len(c.Policies))
		for op, p := range c.Policies {
			policies[authz.Op(op)] = authz.Policy(p)
		}
		opts = append(opts, ledger.WithPolicies(policies))
	}

	if len(c.Duplicates) > 0 {
		dups := make(map[keyspace.Kind]ledger.DuplicatePolicy, len(c.Duplicates))
		for name, p := range c.Duplicates {
			kind, ok := keyspace.ParseKind(name)
			if !ok {
				return nil, fmt.Errorf("duplicates: unknown kind %q", name)
			}
			dups[kind] = ledger.DuplicatePolicy(p)
		}
		opts = append(opts, ledger.WithDuplicates(dups))
	}

	if c.EnforceLifecycle != nil {
		opts = append(opts, ledger.WithLifecycle(*c.EnforceLifecycle))
	}
	return opts, nil
}
