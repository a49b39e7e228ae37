package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/conn-castle/updated/internal/messages"
)

// ErrConfigValidation is a sentinel that wraps config validation failures
// (as opposed to TOML syntax or filesystem errors).
var ErrConfigValidation = errors.New("config validation failed")

// Load reads the config at path, applies environment overrides, expands
// paths and validates the result. A missing file yields the defaults so a
// freshly imaged device can start without one.
func Load(path string, getenv func(string) string) (*Config, error) {
	source := path
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = nil
		source = messages.ConfigDefaultSourceDefault
	case err != nil:
		return nil, fmt.Errorf(messages.ConfigReadFileFmt, path, err)
	}
	cfg, err := Parse(data, source)
	if err != nil {
		return nil, err
	}
	if getenv != nil {
		ApplyEnv(cfg, getenv)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(source); err != nil {
		return nil, fmt.Errorf("%w: %w "+messages.ConfigValidationGuidance, ErrConfigValidation, err)
	}
	return cfg, nil
}

// Parse decodes TOML data over the defaults. It rejects unknown keys but does
// not validate values; Load does that after overrides are applied.
func Parse(data []byte, source string) (*Config, error) {
	cfg := Default()
	defaultArgs := cfg.DeltaSync.Args
	cfg.DeltaSync.Args = nil
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf(messages.ConfigInvalidConfigFmt, source, err)
	}
	if cfg.DeltaSync.Args == nil {
		cfg.DeltaSync.Args = defaultArgs
	}
	if err := decodeStrict(data); err != nil {
		return nil, fmt.Errorf("%w: "+messages.ConfigUnrecognizedKeysFmt+" "+messages.ConfigValidationGuidance, ErrConfigValidation, source, err)
	}
	return &cfg, nil
}

// decodeStrict re-decodes the TOML data with strict unknown-field rejection.
func decodeStrict(data []byte) error {
	var cfg Config
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	return decoder.Decode(&cfg)
}

// expandPaths resolves a leading ~ in every path field.
func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.Updater.InstallRoot,
		&c.Updater.LockFile,
		&c.Updater.ParamsDir,
		&c.Remote.ManifestPath,
		&c.Staging.Root,
		&c.DeltaSync.EnvFile,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf(messages.ConfigExpandPathFmt, *p, err)
		}
		*p = expanded
	}
	return nil
}
