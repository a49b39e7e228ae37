package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/conn-castle/updated/internal/basestate"
	"github.com/conn-castle/updated/internal/config"
	"github.com/conn-castle/updated/internal/manifest"
	"github.com/conn-castle/updated/internal/messages"
	"github.com/conn-castle/updated/internal/params"
	"github.com/conn-castle/updated/internal/release"
	"github.com/conn-castle/updated/internal/staging"
)

var (
	loadConfigFunc = config.Load
	lookPath       = exec.LookPath
)

// CheckConfig loads the config at path. The returned config is nil when
// loading fails; the remaining checks need it.
func CheckConfig(path string, getenv func(string) string) ([]Result, *config.Config) {
	cfg, err := loadConfigFunc(path, getenv)
	if err != nil {
		return []Result{{
			Status:         StatusFail,
			CheckName:      messages.DoctorCheckNameConfig,
			Message:        fmt.Sprintf(messages.DoctorConfigLoadFailedFmt, err),
			Recommendation: messages.DoctorConfigLoadRecommend,
		}}, nil
	}
	return []Result{{
		Status:    StatusOK,
		CheckName: messages.DoctorCheckNameConfig,
		Message:   fmt.Sprintf(messages.DoctorConfigLoadedFmt, path),
	}}, cfg
}

// CheckInstallRoot inspects the running installation.
func CheckInstallRoot(ctx context.Context, cfg *config.Config, inspector *basestate.Inspector) []Result {
	root := cfg.Updater.InstallRoot
	base, err := inspector.Inspect(ctx, root)
	if err != nil {
		return []Result{{
			Status:         StatusFail,
			CheckName:      messages.DoctorCheckNameInstall,
			Message:        fmt.Sprintf(messages.DoctorInstallInspectFailedFmt, root, err),
			Recommendation: messages.DoctorInstallInspectRecommend,
		}}
	}
	var results []Result
	if base.HasIdentity {
		results = append(results, Result{
			Status:    StatusOK,
			CheckName: messages.DoctorCheckNameInstall,
			Message:   fmt.Sprintf(messages.DoctorInstallReleaseFmt, base.Identity.Description(), base.Identity.ShortCommit()),
		})
	} else {
		results = append(results, Result{
			Status:    StatusWarn,
			CheckName: messages.DoctorCheckNameInstall,
			Message:   fmt.Sprintf(messages.DoctorInstallNoMetadataFmt, root),
		})
	}
	if base.Abnormal {
		results = append(results, Result{
			Status:         StatusWarn,
			CheckName:      messages.DoctorCheckNameInstall,
			Message:        fmt.Sprintf(messages.DoctorInstallAbnormalFmt, root, base.VCSRoot),
			Recommendation: messages.DoctorInstallAbnormalRecommend,
		})
	}
	return results
}

// CheckDeltaSyncTool verifies the delta-sync executable resolves.
func CheckDeltaSyncTool(cfg *config.Config) []Result {
	path, err := lookPath(cfg.DeltaSync.Tool)
	if err != nil {
		return []Result{{
			Status:         StatusFail,
			CheckName:      messages.DoctorCheckNameDeltaSync,
			Message:        fmt.Sprintf(messages.DoctorToolMissingFmt, cfg.DeltaSync.Tool, err),
			Recommendation: messages.DoctorToolMissingRecommend,
		}}
	}
	return []Result{{
		Status:    StatusOK,
		CheckName: messages.DoctorCheckNameDeltaSync,
		Message:   fmt.Sprintf(messages.DoctorToolFoundFmt, path),
	}}
}

// CheckStaging verifies the staging root is writable and reports whether a
// finalized update is waiting.
func CheckStaging(cfg *config.Config) []Result {
	area := staging.Layout(cfg.Staging.Root)
	var results []Result
	if err := probeWritable(area.Root); err != nil {
		results = append(results, Result{
			Status:         StatusFail,
			CheckName:      messages.DoctorCheckNameStaging,
			Message:        fmt.Sprintf(messages.DoctorStagingNotWritableFmt, area.Root, err),
			Recommendation: messages.DoctorStagingNotWritableRecommend,
		})
	} else {
		results = append(results, Result{
			Status:    StatusOK,
			CheckName: messages.DoctorCheckNameStaging,
			Message:   fmt.Sprintf(messages.DoctorStagingWritableFmt, area.Root),
		})
	}

	ready := Result{Status: StatusOK, CheckName: messages.DoctorCheckNameStaging, Message: messages.DoctorStagingNotReady}
	if staging.IsReady(area.Finalized) {
		ready.Message = messages.DoctorStagingReadyUnknown
		if id, ok, err := release.ReadIdentity(area.Finalized); err == nil && ok {
			ready.Message = fmt.Sprintf(messages.DoctorStagingReadyFmt, id.Description())
		}
	}
	return append(results, ready)
}

// CheckParams verifies the params directory is writable.
func CheckParams(cfg *config.Config) []Result {
	dir := cfg.Updater.ParamsDir
	if err := probeWritable(dir); err != nil {
		return []Result{{
			Status:    StatusFail,
			CheckName: messages.DoctorCheckNameParams,
			Message:   fmt.Sprintf(messages.DoctorParamsNotWritableFmt, dir, err),
		}}
	}
	return []Result{{
		Status:    StatusOK,
		CheckName: messages.DoctorCheckNameParams,
		Message:   fmt.Sprintf(messages.DoctorParamsWritableFmt, dir),
	}}
}

// CheckRemote lists the published channels and warns when the persisted
// target channel is not among them.
func CheckRemote(ctx context.Context, cfg *config.Config, fetcher *manifest.Fetcher) []Result {
	channels, err := fetcher.FetchChannels(ctx)
	if err != nil {
		return []Result{{
			Status:         StatusFail,
			CheckName:      messages.DoctorCheckNameRemote,
			Message:        fmt.Sprintf(messages.DoctorRemoteFailedFmt, err),
			Recommendation: messages.DoctorRemoteFailedRecommend,
		}}
	}
	results := []Result{{
		Status:    StatusOK,
		CheckName: messages.DoctorCheckNameRemote,
		Message:   fmt.Sprintf(messages.DoctorRemoteChannelsFmt, len(channels)),
	}}
	target := readTarget(cfg.Updater.ParamsDir)
	if target != "" && !slices.Contains(channels, target) {
		results = append(results, Result{
			Status:         StatusWarn,
			CheckName:      messages.DoctorCheckNameRemote,
			Message:        fmt.Sprintf(messages.DoctorRemoteUnknownTargetFmt, target),
			Recommendation: messages.DoctorRemoteUnknownRecommend,
		})
	}
	return results
}

func readTarget(paramsDir string) string {
	store, err := params.NewStore(paramsDir)
	if err != nil {
		return ""
	}
	value, _, err := store.Get(params.KeyTargetBranch)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

// probeWritable creates dir when missing and writes a scratch file into it.
func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	return errors.Join(f.Close(), os.Remove(name))
}
