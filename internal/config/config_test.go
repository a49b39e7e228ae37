package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/updated/internal/deltasync"
	"github.com/conn-castle/updated/internal/staging"
)

func noEnv(string) string { return "" }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"), noEnv)
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want, *cfg)
	assert.Empty(t, cfg.Remote.ManifestPath)
	assert.Equal(t, staging.DefaultRoot, cfg.Staging.Root)
	assert.Equal(t, 60*time.Second, cfg.Updater.PollInterval.Duration)
	assert.Equal(t, deltasync.DefaultArgs, cfg.DeltaSync.Args)
	assert.True(t, cfg.Log.JSONLogs())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[updater]
install_root = "/opt/app"
poll_interval = "5m"
default_channel = "release3"
firmware_command = ["/usr/bin/flash-firmware", "--quiet"]

[remote]
api_host = "http://127.0.0.1:8080"
timeout = "10s"
manifest_path = "/data/openpilot"

[deltasync]
tool = "/usr/local/bin/casync"
args = ["--with=symlinks"]
env_file = "/etc/updated/casync.env"

[log]
level = "debug"
format = "text"

[telemetry]
otlp_endpoint = "collector:4317"
otlp_insecure = true
sample_ratio = 0.5
metrics_listen = ":9109"
`)
	cfg, err := Load(path, noEnv)
	require.NoError(t, err)

	assert.Equal(t, "/opt/app", cfg.Updater.InstallRoot)
	assert.Equal(t, 5*time.Minute, cfg.Updater.PollInterval.Duration)
	assert.Equal(t, "release3", cfg.Updater.DefaultChannel)
	assert.Equal(t, []string{"/usr/bin/flash-firmware", "--quiet"}, cfg.Updater.FirmwareCommand)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Remote.APIHost)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout.Duration)
	assert.Equal(t, "/data/openpilot", cfg.Remote.ManifestPath)
	assert.Equal(t, []string{"--with=symlinks"}, cfg.DeltaSync.Args)
	assert.Equal(t, "/etc/updated/casync.env", cfg.DeltaSync.EnvFile)
	assert.False(t, cfg.Log.JSONLogs())
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
	assert.True(t, cfg.Telemetry.OTLPInsecure)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRatio)
	assert.Equal(t, ":9109", cfg.Telemetry.MetricsListen)
	// Untouched sections keep their defaults.
	assert.Equal(t, staging.DefaultRoot, cfg.Staging.Root)
}

func TestLoad_EnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvAPIHost:     "https://staging.example.com",
		EnvStagingRoot: "/mnt/staging",
		EnvLockFile:    "/run/updated.lock",
		EnvInstallRoot: "  ",
	}
	cfg, err := Load(writeConfig(t, "[staging]\nroot = \"/data/other\"\n"), func(k string) string { return env[k] })
	require.NoError(t, err)

	assert.Equal(t, "https://staging.example.com", cfg.Remote.APIHost)
	assert.Equal(t, "/mnt/staging", cfg.Staging.Root)
	assert.Equal(t, "/run/updated.lock", cfg.Updater.LockFile)
	assert.Equal(t, DefaultInstallRoot, cfg.Updater.InstallRoot)
}

func TestLoad_ExpandsHome(t *testing.T) {
	home, err := homedir.Dir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	cfg, err := Load(writeConfig(t, "[staging]\nroot = \"~/staging\"\n[deltasync]\nenv_file = \"~/.casync.env\"\n"), noEnv)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "staging"), cfg.Staging.Root)
	assert.Equal(t, filepath.Join(home, ".casync.env"), cfg.DeltaSync.EnvFile)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantValidation bool
		wantContains   string
	}{
		{
			name:         "syntax error",
			content:      "[updater\n",
			wantContains: "invalid config",
		},
		{
			name:           "unknown key",
			content:        "[updater]\nchannel = \"x\"\n",
			wantValidation: true,
			wantContains:   "unrecognized keys",
		},
		{
			name:         "bad duration",
			content:      "[updater]\npoll_interval = \"soon\"\n",
			wantContains: "parse duration",
		},
		{
			name:           "non-positive interval",
			content:        "[updater]\npoll_interval = \"0s\"\n",
			wantValidation: true,
			wantContains:   "updater.poll_interval must be a positive duration",
		},
		{
			name:           "relative staging root",
			content:        "[staging]\nroot = \"staging\"\n",
			wantValidation: true,
			wantContains:   "staging.root must be an absolute path",
		},
		{
			name:           "empty tool",
			content:        "[deltasync]\ntool = \"\"\n",
			wantValidation: true,
			wantContains:   "deltasync.tool is required",
		},
		{
			name:           "bad api host",
			content:        "[remote]\napi_host = \"ftp://example.com\"\n",
			wantValidation: true,
			wantContains:   "must be an http(s) URL",
		},
		{
			name:           "bad log level",
			content:        "[log]\nlevel = \"loud\"\n",
			wantValidation: true,
			wantContains:   "log.level",
		},
		{
			name:           "bad log format",
			content:        "[log]\nformat = \"xml\"\n",
			wantValidation: true,
			wantContains:   "log.format",
		},
		{
			name:           "bad sample ratio",
			content:        "[telemetry]\nsample_ratio = 1.5\n",
			wantValidation: true,
			wantContains:   "sample_ratio",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), noEnv)
			require.Error(t, err)
			assert.Equal(t, tt.wantValidation, errors.Is(err, ErrConfigValidation))
			assert.Contains(t, err.Error(), tt.wantContains)
		})
	}
}

func TestLoad_MultipleValidationErrorsJoined(t *testing.T) {
	_, err := Load(writeConfig(t, "[log]\nlevel = \"loud\"\nformat = \"xml\"\n"), noEnv)
	require.ErrorIs(t, err, ErrConfigValidation)
	assert.True(t, strings.Contains(err.Error(), "log.level") && strings.Contains(err.Error(), "log.format"))
}

func TestLoad_ReadError(t *testing.T) {
	_, err := Load(t.TempDir(), noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestDuration_MarshalText(t *testing.T) {
	text, err := Duration{90 * time.Second}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}
