package messages

// Doctor messages for the doctor command.
const (
	// DoctorUse is the doctor command name.
	DoctorUse   = "doctor"
	DoctorShort = "Check the device for conditions that stop updates"

	DoctorHealthCheckFmt = "Checking updater health (config %s)...\n"

	DoctorCheckNameConfig    = "Config"
	DoctorCheckNameInstall   = "InstallRoot"
	DoctorCheckNameDeltaSync = "DeltaSync"
	DoctorCheckNameStaging   = "Staging"
	DoctorCheckNameParams    = "Params"
	DoctorCheckNameRemote    = "Remote"

	DoctorConfigLoadFailedFmt = "Failed to load configuration: %v"
	DoctorConfigLoadRecommend = "Fix the config file or remove it to run with built-in defaults."
	DoctorConfigLoadedFmt     = "Configuration loaded from %s"

	DoctorInstallInspectFailedFmt  = "Cannot inspect %s: %v"
	DoctorInstallInspectRecommend  = "Check updater.install_root; it must be the running installation."
	DoctorInstallNoMetadataFmt     = "%s has no build metadata; every release will look new"
	DoctorInstallReleaseFmt        = "Running %s (commit %s)"
	DoctorInstallAbnormalFmt       = "%s is inside a version-controlled checkout (%s); updates follow its declared build metadata"
	DoctorInstallAbnormalRecommend = "Use a plain release tree on devices that should track a channel."

	DoctorToolMissingFmt       = "Delta-sync tool %q not found: %v"
	DoctorToolMissingRecommend = "Install the tool or set deltasync.tool to its absolute path."
	DoctorToolFoundFmt         = "Delta-sync tool found at %s"

	DoctorStagingNotWritableFmt       = "Staging root %s is not writable: %v"
	DoctorStagingNotWritableRecommend = "The updater needs a writable staging.root on a persistent partition."
	DoctorStagingWritableFmt          = "Staging root %s is writable"
	DoctorStagingReadyFmt             = "Finalized update ready: %s"
	DoctorStagingReadyUnknown         = "Finalized update ready (no build metadata)"
	DoctorStagingNotReady             = "No finalized update on disk"

	DoctorParamsNotWritableFmt = "Params dir %s is not writable: %v"
	DoctorParamsWritableFmt    = "Params dir %s is writable"

	DoctorRemoteFailedFmt        = "Release API unreachable: %v"
	DoctorRemoteFailedRecommend  = "Check network access and remote.api_host."
	DoctorRemoteChannelsFmt      = "Release API serves %d channel(s)"
	DoctorRemoteUnknownTargetFmt = "Target channel %q is not published by the release API"
	DoctorRemoteUnknownRecommend = "Pick one of the published channels (see `updated channels`)."

	DoctorStatusOKLabel        = "[OK]  "
	DoctorStatusWarnLabel      = "[WARN]"
	DoctorStatusFailLabel      = "[FAIL]"
	DoctorResultLineFmt        = "%s %-12s %s\n"
	DoctorRecommendationPrefix = "       💡 "
	DoctorRecommendationIndent = "          "
	DoctorFailureSummary       = "❌ Some checks failed."
	DoctorFailureError         = "doctor checks failed"
	DoctorSuccessSummary       = "✅ All checks passed."
)
