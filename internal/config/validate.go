package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/conn-castle/updated/internal/messages"
	"github.com/conn-castle/updated/internal/observability"
)

// Validate checks value constraints. source names the config in messages.
func (c *Config) Validate(source string) error {
	var errs []error
	required := []struct {
		name  string
		value string
	}{
		{"updater.install_root", c.Updater.InstallRoot},
		{"updater.lock_file", c.Updater.LockFile},
		{"updater.params_dir", c.Updater.ParamsDir},
		{"remote.api_host", c.Remote.APIHost},
		{"staging.root", c.Staging.Root},
		{"deltasync.tool", c.DeltaSync.Tool},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf(messages.ConfigFieldRequiredFmt, source, r.name))
		}
	}
	absolute := []struct {
		name  string
		value string
	}{
		{"updater.install_root", c.Updater.InstallRoot},
		{"staging.root", c.Staging.Root},
	}
	for _, a := range absolute {
		if a.value != "" && !filepath.IsAbs(a.value) {
			errs = append(errs, fmt.Errorf(messages.ConfigAbsolutePathFmt, source, a.name, a.value))
		}
	}
	if c.Updater.PollInterval.Duration <= 0 {
		errs = append(errs, fmt.Errorf(messages.ConfigPositiveDurationFmt, source, "updater.poll_interval"))
	}
	if c.Remote.Timeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf(messages.ConfigPositiveDurationFmt, source, "remote.timeout"))
	}
	if c.Remote.APIHost != "" {
		u, err := url.Parse(c.Remote.APIHost)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf(messages.ConfigInvalidAPIHostFmt, source, c.Remote.APIHost))
		}
	}
	if _, err := observability.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf(messages.ConfigInvalidLogLevelFmt, source, c.Log.Level))
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf(messages.ConfigInvalidLogFormatFmt, source, c.Log.Format))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf(messages.ConfigInvalidSampleRatio, source))
	}
	return errors.Join(errs...)
}
