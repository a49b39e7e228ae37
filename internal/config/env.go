package config

import "strings"

// Environment variables that override file values. They match the knobs the
// device images already export.
const (
	EnvAPIHost     = "API_HOST"
	EnvStagingRoot = "UPDATER_STAGING_ROOT"
	EnvLockFile    = "UPDATER_LOCK_FILE"
	EnvInstallRoot = "UPDATER_INSTALL_ROOT"
)

// ApplyEnv overrides cfg fields from getenv. Blank values are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	overrides := []struct {
		key    string
		target *string
	}{
		{EnvAPIHost, &cfg.Remote.APIHost},
		{EnvStagingRoot, &cfg.Staging.Root},
		{EnvLockFile, &cfg.Updater.LockFile},
		{EnvInstallRoot, &cfg.Updater.InstallRoot},
	}
	for _, o := range overrides {
		if value := strings.TrimSpace(getenv(o.key)); value != "" {
			*o.target = value
		}
	}
}
