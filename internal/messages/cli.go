package messages

// CLI messages for user-facing commands.
const (
	// RootUse is the CLI command name.
	RootUse   = "updated"
	RootShort = "Keep this device on the current release of its channel"
	RootLong  = `updated polls the release API for the device's channel, pulls new releases
into a staging area with the delta-sync tool, and finalizes them atomically so
the next boot can switch over to a complete tree.`
	RootFlagConfig = "Path to the updater config file (TOML)"

	// VersionCommitFmt formats the commit hash for version display.
	VersionCommitFmt = "commit %s"
	VersionBuildFmt  = "built %s"
	VersionFullFmt   = "%s (%s)"
	VersionTemplate  = "{{.Version}}\n"

	RunUse   = "run"
	RunShort = "Run the update loop until interrupted"

	OnceUse           = "once"
	OnceShort         = "Run a single update cycle and exit"
	OnceFlagCheckOnly = "Only check for an update; never download"
	OnceResultFmt     = "state=%s fetch_available=%t update_ready=%t\n"

	CheckUse      = "check"
	CheckShort    = "Ask the running updater to check for an update now"
	DownloadUse   = "download"
	DownloadShort = "Ask the running updater to check and download now"
	SignalSentFmt = "sent %s to updater (pid %d)\n"
	SignalFailFmt = "signal updater pid %d: %w"

	StatusUse          = "status"
	StatusShort        = "Show the state published by the updater"
	StatusStateFmt     = "State:            %s\n"
	StatusChannelFmt   = "Target channel:   %s\n"
	StatusCurrentFmt   = "Current build:    %s\n"
	StatusNewFmt       = "New build:        %s\n"
	StatusFetchFmt     = "Update available: %s\n"
	StatusReadyFmt     = "Update ready:     %s\n"
	StatusFinalizedFmt = "Finalized tree:   %s (%s)\n"
	StatusChannelsFmt  = "Channels:         %s\n"
	StatusNone         = "-"
	StatusYes          = "yes"
	StatusNo           = "no"

	ChannelsUse       = "channels"
	ChannelsShort     = "List the channels published by the release API"
	ChannelsFlagReset = "forget the selected target channel; the next cycle follows the running build or the default"
	ChannelsResetDone = "target channel cleared\n"

	DigestUse        = "digest <dir>"
	DigestShort      = "Print the delta-sync content digest of a directory"
	DigestWorkDirFmt = "create delta-sync work dir: %w"

	RunReadPIDFmt    = "no running updater found via %s: %w"
	RunNotPrivileged = "updater must run as root"

	StatusFinalizedReady  = "ready"
	StatusFinalizedAbsent = "not ready"
)
