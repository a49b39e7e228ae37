package messages

// Manifest fetch messages.
const (
	// ManifestCreateRequestErrFmt formats request creation errors.
	ManifestCreateRequestErrFmt = "create request for %s: %w"
	ManifestFetchErrFmt         = "fetch %s: %w"
	ManifestFetchStatusFmt      = "fetch %s: unexpected status %s"
	ManifestDecodeErrFmt        = "decode %s: %w"
	ManifestMissingFieldFmt     = "response from %s is missing %q"
	ManifestChannelRequired     = "channel is required"
	ManifestHostRequired        = "remote api host is required"
	ManifestInvalidHostFmt      = "invalid remote api host %q: %w"
	ManifestMissingPathEntryFmt = "manifest has no path entry for %s"
	ManifestEntryMissingIndex   = "manifest path entry is missing its content index"
)

// Release metadata messages.
const (
	ReleaseReadMetadataFmt     = "read build metadata %s: %w"
	ReleaseDecodeMetadataFmt   = "decode build metadata %s: %w"
	ReleaseEncodeMetadataFmt   = "encode build metadata: %w"
	ReleaseWriteMetadataFmt    = "write build metadata %s: %w"
	ReleaseMetadataChannelFmt  = "build metadata %s has no channel"
	ReleaseDescriptionFmt      = "%s / %s"
	ReleaseDescriptionUnknown  = "unknown"
	BaseStateInspectRootFmt    = "inspect install root %s: %w"
	BaseStateRootNotDirFmt     = "install root %s is not a directory"
	BaseStateOpenVCSFmt        = "open working copy of %s: %w"
	BaseStateInstallRootNeeded = "install root is required"
)

// Delta-sync gateway messages.
const (
	DeltaSyncWorkDirRequired   = "delta-sync working directory is required"
	DeltaSyncIndexRequired     = "content index reference is required"
	DeltaSyncDestRequired      = "extraction destination is required"
	DeltaSyncExtractFailedFmt  = "extract %s into %s: %w"
	DeltaSyncDestMissingFmt    = "extract %s: destination %s missing after extraction"
	DeltaSyncDigestFailedFmt   = "digest %s: %w"
	DeltaSyncDigestEmptyFmt    = "digest %s: tool produced no output"
	DeltaSyncCommandFailedFmt  = "%s exited: %w: %s"
	DeltaSyncWorkDirFmt        = "prepare delta-sync working directory %s: %w"
	DeltaSyncReadEnvFileFmt    = "read delta-sync env file %s: %w"
	DeltaSyncInvalidEnvFileFmt = "invalid delta-sync env file %s: %w"
)

// Staging messages.
const (
	StagingRootRequired       = "staging root is required"
	StagingCreateDirFmt       = "create staging directory %s: %w"
	StagingResetTreeFmt       = "reset staging tree %s: %w"
	StagingClearMarkerFmt     = "clear consistency marker in %s: %w"
	StagingSetMarkerFmt       = "set consistency marker in %s: %w"
	StagingRemoveFinalizedFmt = "remove finalized directory %s: %w"
	StagingCopyTreeFmt        = "copy staging tree into %s: %w"
	StagingSourceMissingFmt   = "staging tree %s does not exist: %w"
	StagingSyncFmt            = "flush filesystem: %w"
	StagingOpenLockFmt        = "open lock file %s: %w"
	StagingLockFmt            = "lock %s: %w"
	StagingLockTimeoutFmt     = "timed out after %s waiting for updater lock (is another updater running?)"
	StagingWritePIDFmt        = "record pid in lock file %s: %w"
	StagingReadPIDFmt         = "read pid from lock file %s: %w"
	StagingInvalidPIDFmt      = "lock file %s does not hold a valid pid"
	StagingLockNotHeldFmt     = "lock file %s is not held (stale pid %d)"
	StagingCheckLockFmt       = "check lock %s: %w"
)

// Orchestrator messages.
const (
	UpdaterNoChannel            = "no target channel: running build has no metadata and no default channel is configured"
	UpdaterPersistChannelFmt    = "persist target channel %q: %w"
	UpdaterReadChannelFmt       = "read target channel: %w"
	UpdaterDigestMismatchFmt    = "staged tree digest %s does not match manifest digest %s"
	UpdaterFirmwareFailedFmt    = "firmware update from %s: %w"
	UpdaterPrepareStagingFmt    = "prepare staging area: %w"
	UpdaterDependencyRequired   = "orchestrator dependency %s is required"
	UpdaterInstallRootNeeded    = "install root is required"
	UpdaterFirmwareCommandEmpty = "firmware command is empty"
	UpdaterFirmwareCommandFmt   = "%s: %w: %s"
)

// Params store messages.
const (
	ParamsDirRequired   = "params directory is required"
	ParamsInvalidKeyFmt = "invalid param key %q"
	ParamsReadFmt       = "read param %s: %w"
	ParamsWriteFmt      = "write param %s: %w"
	ParamsCreateDirFmt  = "create params directory %s: %w"
	ParamsRemoveFmt     = "remove param %s: %w"
)

// Status / metrics messages.
const (
	StatusRegisterMetricFmt = "register metric %s: %w"
	StatusFanoutFailedFmt   = "publisher %d: %w"
)
