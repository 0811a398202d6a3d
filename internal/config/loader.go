package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// validBackends lists the recognised engine backend names.
var validBackends = []string{"tikv", "postgres", "memory"}

// validCodecs lists the recognised payload codec names.
var validCodecs = []string{"", "json", "proto"}

// validLogLevels lists the recognised log level names.
var validLogLevels = []string{"", "debug", "info", "warn", "error"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !slices.Contains(validBackends, cfg.Engine.Backend) {
		errs = append(errs, fmt.Errorf("config: unknown engine backend %q (valid: %v)", cfg.Engine.Backend, validBackends))
	}
	if cfg.Engine.Backend == "tikv" && len(cfg.Engine.PDEndpoints) == 0 {
		errs = append(errs, errors.New("config: engine backend tikv requires pd_endpoints"))
	}
	if cfg.Engine.Backend == "postgres" && cfg.Engine.PostgresDSN == "" {
		errs = append(errs, errors.New("config: engine backend postgres requires postgres_dsn"))
	}
	if !slices.Contains(validCodecs, cfg.Codec) {
		errs = append(errs, fmt.Errorf("config: unknown codec %q (valid: json, proto)", cfg.Codec))
	}
	if !slices.Contains(validLogLevels, cfg.Observability.LogLevel) {
		errs = append(errs, fmt.Errorf("config: unknown log level %q", cfg.Observability.LogLevel))
	}

	return errors.Join(errs...)
}
