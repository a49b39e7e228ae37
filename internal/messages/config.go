package messages

// Config messages.
const (
	ConfigReadFileFmt          = "failed to read config %s: %w"
	ConfigInvalidConfigFmt     = "invalid config %s: %w"
	ConfigUnrecognizedKeysFmt  = "config %s has unrecognized keys: %v."
	ConfigValidationGuidance   = "Check the updater config against the documented keys."
	ConfigFieldRequiredFmt     = "%s: %s is required"
	ConfigPositiveDurationFmt  = "%s: %s must be a positive duration"
	ConfigInvalidLogLevelFmt   = "%s: log.level must be one of debug, info, warn, error (got %q)"
	ConfigInvalidLogFormatFmt  = "%s: log.format must be json or text (got %q)"
	ConfigInvalidSampleRatio   = "%s: telemetry.sample_ratio must be between 0 and 1"
	ConfigExpandPathFmt        = "expand path %q: %w"
	ConfigInvalidAPIHostFmt    = "%s: remote.api_host %q must be an http(s) URL"
	ConfigAbsolutePathFmt      = "%s: %s must be an absolute path (got %q)"
	ConfigDefaultSourceDefault = "built-in defaults"
)
