// Package config loads the updater's TOML configuration.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full updater configuration.
type Config struct {
	Updater   UpdaterConfig   `toml:"updater"`
	Remote    RemoteConfig    `toml:"remote"`
	Staging   StagingConfig   `toml:"staging"`
	DeltaSync DeltaSyncConfig `toml:"deltasync"`
	Log       LogConfig       `toml:"log"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// UpdaterConfig configures the orchestrator loop.
type UpdaterConfig struct {
	// InstallRoot is the running installation; it seeds every extraction.
	InstallRoot  string   `toml:"install_root"`
	PollInterval Duration `toml:"poll_interval"`
	// DefaultChannel is used when neither the params store nor the running
	// build names a channel.
	DefaultChannel string `toml:"default_channel"`
	LockFile       string `toml:"lock_file"`
	ParamsDir      string `toml:"params_dir"`
	// FirmwareCommand runs after extraction with the staged tree appended as
	// its last argument. Empty disables the firmware step.
	FirmwareCommand []string `toml:"firmware_command"`
}

// RemoteConfig configures the release metadata API.
type RemoteConfig struct {
	APIHost      string   `toml:"api_host"`
	ChannelsRoot string   `toml:"channels_root"`
	Timeout      Duration `toml:"timeout"`
	// ManifestPath is the path the release manifest names for the
	// installation. Empty means updater.install_root, which differs from it
	// when the installation is mounted elsewhere than on the device.
	ManifestPath string `toml:"manifest_path"`
}

// StagingConfig configures the staging area.
type StagingConfig struct {
	Root string `toml:"root"`
}

// DeltaSyncConfig configures the delta-sync tool.
type DeltaSyncConfig struct {
	Tool    string   `toml:"tool"`
	Args    []string `toml:"args"`
	EnvFile string   `toml:"env_file"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// TelemetryConfig configures tracing export and the metrics endpoint.
type TelemetryConfig struct {
	OTLPEndpoint string  `toml:"otlp_endpoint"`
	OTLPInsecure bool    `toml:"otlp_insecure"`
	SampleRatio  float64 `toml:"sample_ratio"`
	// MetricsListen is the address serving /metrics; empty disables it.
	MetricsListen string `toml:"metrics_listen"`
}

// Duration is a time.Duration written as a Go duration string ("90s", "10m").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText formats the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// JSONLogs reports whether log.format selects JSON output.
func (c LogConfig) JSONLogs() bool {
	return strings.EqualFold(strings.TrimSpace(c.Format), "json")
}
