package config

import (
	"slices"
	"time"

	"github.com/conn-castle/updated/internal/deltasync"
	"github.com/conn-castle/updated/internal/manifest"
	"github.com/conn-castle/updated/internal/params"
	"github.com/conn-castle/updated/internal/staging"
)

const (
	// DefaultPath is where the daemon looks for its config file.
	DefaultPath = "/etc/updated/config.toml"
	// DefaultInstallRoot is the running installation on devices.
	DefaultInstallRoot = "/data/openpilot"
	// DefaultAPIHost serves release metadata.
	DefaultAPIHost = "https://api.commadotai.com"

	defaultPollInterval  = 60 * time.Second
	defaultRemoteTimeout = 30 * time.Second
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Updater: UpdaterConfig{
			InstallRoot:  DefaultInstallRoot,
			PollInterval: Duration{defaultPollInterval},
			LockFile:     staging.DefaultLockFile,
			ParamsDir:    params.DefaultDir,
		},
		Remote: RemoteConfig{
			APIHost:      DefaultAPIHost,
			ChannelsRoot: manifest.DefaultChannelsRoot,
			Timeout:      Duration{defaultRemoteTimeout},
		},
		Staging: StagingConfig{
			Root: staging.DefaultRoot,
		},
		DeltaSync: DeltaSyncConfig{
			Tool: deltasync.DefaultTool,
			Args: slices.Clone(deltasync.DefaultArgs),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
