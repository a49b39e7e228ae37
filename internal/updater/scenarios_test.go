package updater

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/updated/internal/deltasync"
	"github.com/conn-castle/updated/internal/manifest"
	"github.com/conn-castle/updated/internal/params"
	"github.com/conn-castle/updated/internal/release"
	"github.com/conn-castle/updated/internal/staging"
	"github.com/conn-castle/updated/internal/status"
	"github.com/conn-castle/updated/internal/testutil"
)

var (
	r1 = release.Identity{Channel: "release3", Version: "0.9.6", Commit: "1111111aaaa", ReleaseNotes: "r1 notes"}
	r2 = release.Identity{Channel: "release3", Version: "0.9.7", Commit: "2222222bbbb", ReleaseNotes: "r2 notes"}
)

func snap(state status.State, fetchAvailable, ready bool) status.Snapshot {
	return status.Snapshot{State: state, FetchAvailable: fetchAvailable, UpdateReady: ready}
}

func TestScenarioA_UpToDate(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, map[string]string{"app.txt": "r1"})
	h.publish(r1, map[string]string{"app.txt": "r1"})

	out := h.orchestrator(Options{}).RunCycle(context.Background(), RequestNone)

	require.NoError(t, out.Err)
	assert.Equal(t, []status.Snapshot{
		snap(status.Checking, false, false),
		snap(status.Idle, false, false),
	}, h.recorder.Statuses())
	assert.False(t, out.UpdateAvailable)
	assert.Equal(t, "release3", out.Channel)
	assert.NoDirExists(t, h.staging.Area().Finalized)

	assert.Equal(t, "idle", h.param(params.KeyState))
	assert.Equal(t, "0", h.param(params.KeyFetchAvailable))
	assert.Equal(t, "0", h.param(params.KeyUpdateAvailable))
	assert.Equal(t, "0.9.6 / release3", h.param(params.KeyCurrentDescription))
	assert.Equal(t, "r1 notes", h.param(params.KeyCurrentReleaseNotes))
	assert.Equal(t, "release3", h.param(params.KeyTargetBranch))
	assert.Equal(t, "release3", h.param(params.KeyAvailableBranches))
}

func TestScenarioB_CheckOnlyLeavesDisksAlone(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, map[string]string{"app.txt": "r1"})
	h.publish(r2, map[string]string{"app.txt": "r2"})
	o := h.orchestrator(Options{})

	for i := 0; i < 3; i++ {
		h.recorder.Reset()
		out := o.RunCycle(context.Background(), RequestCheck)
		require.NoError(t, out.Err)
		assert.Equal(t, []status.Snapshot{
			snap(status.Checking, false, false),
			snap(status.Idle, true, false),
		}, h.recorder.Statuses(), "cycle %d", i)
		nb, ok := h.recorder.NewBuild()
		require.True(t, ok)
		assert.Equal(t, r2, nb)
	}

	assert.NoDirExists(t, h.staging.Area().Tree)
	assert.NoDirExists(t, h.staging.Area().Finalized)
	assert.Equal(t, "0.9.7 / release3", h.param(params.KeyNewDescription))
	assert.Equal(t, "r2 notes", h.param(params.KeyNewReleaseNotes))
	assert.Equal(t, "r1", readFile(t, filepath.Join(h.install, "app.txt")))
}

func assertFinalizedR2(t *testing.T, h *harness) {
	t.Helper()
	assert.True(t, staging.IsReady(h.staging.Area().Finalized))
	id, ok := h.finalizedIdentity()
	require.True(t, ok)
	assert.Equal(t, r2, id)
	assert.Equal(t, "r2", readFile(t, filepath.Join(h.staging.Area().Finalized, "app.txt")))
	assert.NoFileExists(t, filepath.Join(h.staging.Area().Finalized, testutil.CutMarker))
}

func TestScenarioC_BackgroundCycleFinalizes(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, map[string]string{"app.txt": "r1", "shared/lib.txt": "same"})
	h.publish(r2, map[string]string{"app.txt": "r2", "shared/lib.txt": "same"})
	o := h.orchestrator(Options{})

	out := o.RunCycle(context.Background(), RequestNone)

	require.NoError(t, out.Err)
	assert.True(t, out.Finalized)
	assert.Equal(t, []status.Snapshot{
		snap(status.Checking, false, false),
		snap(status.Idle, true, false),
		snap(status.Downloading, false, false),
		snap(status.Finalizing, false, false),
		snap(status.Idle, false, true),
	}, h.recorder.Statuses())
	assertFinalizedR2(t, h)
	assert.Equal(t, "0.9.7 / release3", h.param(params.KeyNewDescription))
	assert.Equal(t, "1", h.param(params.KeyUpdateAvailable))
	// The running install is only a seed; it is never modified.
	assert.Equal(t, "r1", readFile(t, filepath.Join(h.install, "app.txt")))

	calls := readFile(t, filepath.Join(h.staging.Area().WorkDir, "calls"))
	assert.Contains(t, calls, "--seed="+h.install)

	// Ready-suppression: the staged tree already matches the remote, so the
	// next cycle neither reports an available fetch nor downloads again.
	h.recorder.Reset()
	out = o.RunCycle(context.Background(), RequestNone)
	require.NoError(t, out.Err)
	assert.Equal(t, []status.Snapshot{
		snap(status.Checking, false, false),
		snap(status.Idle, false, true),
	}, h.recorder.Statuses())
}

func TestScenarioC_DownloadRequestBehavesLikeBackgroundPoll(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, nil)
	h.publish(r2, map[string]string{"app.txt": "r2"})

	out := h.orchestrator(Options{}).RunCycle(context.Background(), RequestDownload)
	require.NoError(t, out.Err)
	assertFinalizedR2(t, h)
}

func TestScenarioD_RemoteOutageThenRecovery(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, nil)
	h.publish(r1, nil)
	h.remote.setDown(true)
	o := h.orchestrator(Options{})

	for i := 0; i < 3; i++ {
		h.recorder.Reset()
		out := o.RunCycle(context.Background(), RequestNone)
		require.ErrorIs(t, out.Err, manifest.ErrRemoteUnavailable, "cycle %d", i)
		assert.Equal(t, []status.Snapshot{
			snap(status.Checking, false, false),
			snap(status.Failed, false, false),
		}, h.recorder.Statuses(), "cycle %d", i)
		assert.Equal(t, "failed to check for update...", h.param(params.KeyState))
	}

	h.remote.setDown(false)
	h.recorder.Reset()
	out := o.RunCycle(context.Background(), RequestNone)
	require.NoError(t, out.Err)
	last, _ := h.recorder.Last()
	assert.Equal(t, snap(status.Idle, false, false), last)
}

func TestScenarioD_OutageKeepsReadyTreeIntact(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, nil)
	h.publish(r2, map[string]string{"app.txt": "r2"})
	o := h.orchestrator(Options{})
	require.NoError(t, o.RunCycle(context.Background(), RequestNone).Err)

	h.remote.setDown(true)
	h.recorder.Reset()
	out := o.RunCycle(context.Background(), RequestNone)
	require.Error(t, out.Err)
	last, _ := h.recorder.Last()
	assert.Equal(t, snap(status.Failed, false, false), last)
	assertFinalizedR2(t, h)
}

func TestScenarioE_ExtractionCutThenRecovery(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, map[string]string{"app.txt": "r1"})

	// An older finalized tree is already waiting for reboot.
	previous := release.Identity{Channel: "release3", Version: "0.9.6.1", Commit: "1a1a1a1"}
	finalized := h.staging.Area().Finalized
	testutil.WriteReleaseTree(t, finalized, previous, map[string]string{"app.txt": "previous"})
	require.NoError(t, h.staging.SetConsistent(finalized, true))

	index := h.publish(r2, map[string]string{"app.txt": "r2", testutil.CutMarker: ""})
	o := h.orchestrator(Options{})

	out := o.RunCycle(context.Background(), RequestNone)
	require.ErrorIs(t, out.Err, deltasync.ErrExtractionFailed)
	assert.Equal(t, []status.Snapshot{
		snap(status.Checking, false, false),
		snap(status.Idle, true, true),
		snap(status.Downloading, false, false),
		snap(status.Failed, true, true),
	}, h.recorder.Statuses())
	assert.True(t, staging.IsReady(finalized))
	assert.Equal(t, "previous", readFile(t, filepath.Join(finalized, "app.txt")))
	// The staging tree holds partial output and is discarded on the next attempt.
	assert.FileExists(t, filepath.Join(h.staging.Area().Tree, testutil.CutMarker))

	require.NoError(t, os.Remove(filepath.Join(index, testutil.CutMarker)))
	h.recorder.Reset()
	out = o.RunCycle(context.Background(), RequestNone)
	require.NoError(t, out.Err)
	last, _ := h.recorder.Last()
	assert.Equal(t, snap(status.Idle, false, true), last)
	assertFinalizedR2(t, h)
}

// initCheckout turns dir into an empty version-control working copy.
func initCheckout(t *testing.T, dir string) {
	t.Helper()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
}

func TestScenarioF_VersionControlledBaseIsReplaced(t *testing.T) {
	h := newHarness(t)
	checkout := filepath.Join(h.root, "checkout")
	initCheckout(t, checkout)
	h.install = filepath.Join(checkout, "openpilot")
	h.installRelease(r1, map[string]string{"app.txt": "r1 with local edits"})
	h.publish(r2, map[string]string{"app.txt": "r2"})

	out := h.orchestrator(Options{}).RunCycle(context.Background(), RequestNone)

	require.NoError(t, out.Err)
	assert.True(t, out.Base.Abnormal)
	assert.Equal(t, checkout, out.Base.VCSRoot)
	assert.Equal(t, r1, out.Base.Identity)
	assert.True(t, out.Finalized)
	assertFinalizedR2(t, h)
	assert.NoDirExists(t, filepath.Join(h.staging.Area().Finalized, ".git"))

	// Once the clean tree is staged, the abnormal base no longer triggers downloads.
	h.recorder.Reset()
	out = h.orchestrator(Options{}).RunCycle(context.Background(), RequestNone)
	require.NoError(t, out.Err)
	assert.Equal(t, []status.Snapshot{
		snap(status.Checking, false, false),
		snap(status.Idle, false, true),
	}, h.recorder.Statuses())
}

func TestScenarioF_VersionControlledBaseOnRemoteReleaseStays(t *testing.T) {
	h := newHarness(t)
	checkout := filepath.Join(h.root, "checkout")
	initCheckout(t, checkout)
	h.install = filepath.Join(checkout, "openpilot")
	// The checkout declares the release the remote serves; local edits are not detected.
	h.installRelease(r2, map[string]string{"app.txt": "r2 with local edits"})
	h.publish(r2, map[string]string{"app.txt": "r2"})

	out := h.orchestrator(Options{}).RunCycle(context.Background(), RequestNone)

	require.NoError(t, out.Err)
	assert.True(t, out.Base.Abnormal)
	assert.False(t, out.UpdateAvailable)
	assert.False(t, out.Finalized)
	assert.Equal(t, []status.Snapshot{
		snap(status.Checking, false, false),
		snap(status.Idle, false, false),
	}, h.recorder.Statuses())
	assert.NoDirExists(t, h.staging.Area().Finalized)
	assert.NoFileExists(t, filepath.Join(h.staging.Area().WorkDir, "calls"))
	assert.Equal(t, "r2 with local edits", readFile(t, filepath.Join(h.install, "app.txt")))
}

func TestCycle_DigestMismatchFails(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, nil)
	h.publish(r2, map[string]string{"app.txt": "r2"})
	h.overrideDigest(r2.Channel, "deadbeef")

	out := h.orchestrator(Options{}).RunCycle(context.Background(), RequestNone)

	require.ErrorIs(t, out.Err, ErrDigestMismatch)
	require.ErrorIs(t, out.Err, deltasync.ErrExtractionFailed)
	assert.Equal(t, snap(status.Failed, true, false), out.Status)
	assert.NoDirExists(t, h.staging.Area().Finalized)
}

func TestCycle_NoDigestSkipsVerification(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, nil)
	h.publish(r2, map[string]string{"app.txt": "r2"})
	h.overrideDigest(r2.Channel, "")

	out := h.orchestrator(Options{}).RunCycle(context.Background(), RequestNone)
	require.NoError(t, out.Err)
	assert.NotContains(t, readFile(t, filepath.Join(h.staging.Area().WorkDir, "calls")), "digest "+h.staging.Area().Tree)
	assertFinalizedR2(t, h)
}

func TestCycle_FirmwareStep(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, nil)
	h.publish(r2, map[string]string{"app.txt": "r2"})
	bin := t.TempDir()
	testutil.WriteStubExpectArg(t, bin, "flash", h.staging.Area().Tree)
	h.firmware = CommandFirmware{Argv: []string{filepath.Join(bin, "flash"), "--check"}}

	out := h.orchestrator(Options{}).RunCycle(context.Background(), RequestNone)
	require.NoError(t, out.Err)
	assertFinalizedR2(t, h)
}

func TestCycle_FirmwareFailureStopsBeforeFinalize(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, nil)
	h.publish(r2, map[string]string{"app.txt": "r2"})
	bin := t.TempDir()
	testutil.WriteStubWithExit(t, bin, "flash", 1)
	h.firmware = CommandFirmware{Argv: []string{filepath.Join(bin, "flash")}}

	out := h.orchestrator(Options{}).RunCycle(context.Background(), RequestNone)
	require.ErrorIs(t, out.Err, ErrFirmwareFailed)
	assert.Equal(t, snap(status.Failed, true, false), out.Status)
	assert.NoDirExists(t, h.staging.Area().Finalized)
}

// failingStager finalizes half a tree and then fails.
type failingStager struct {
	*staging.Manager
}

func (f failingStager) Finalize(context.Context, string) error {
	finalized := f.Area().Finalized
	_ = f.SetConsistent(finalized, false)
	_ = os.MkdirAll(finalized, 0o755)
	_ = os.WriteFile(filepath.Join(finalized, "app.txt"), []byte("r"), 0o644)
	return errors.Join(staging.ErrFinalizeFailed, errors.New("no space left on device"))
}

func TestCycle_FinalizeFailure(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, nil)
	h.publish(r2, map[string]string{"app.txt": "r2"})
	h.stager = failingStager{h.staging}

	out := h.orchestrator(Options{}).RunCycle(context.Background(), RequestNone)
	require.ErrorIs(t, out.Err, staging.ErrFinalizeFailed)
	assert.Equal(t, snap(status.Failed, true, false), out.Status)
	assert.False(t, staging.IsReady(h.staging.Area().Finalized))

	h.stager = nil
	out = h.orchestrator(Options{}).RunCycle(context.Background(), RequestNone)
	require.NoError(t, out.Err)
	assertFinalizedR2(t, h)
}

func TestCycle_ManifestWithoutInstallRootEntry(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, nil)
	h.publish(r2, nil)
	h.remote.installRoot = func() string { return filepath.Join(h.root, "elsewhere") }

	out := h.orchestrator(Options{}).RunCycle(context.Background(), RequestNone)
	require.ErrorIs(t, out.Err, deltasync.ErrExtractionFailed)
	assert.Contains(t, out.Err.Error(), "no path entry")
	assert.Equal(t, snap(status.Failed, true, false), out.Status)
}

func TestCycle_ManifestPathOverridesInstallRoot(t *testing.T) {
	h := newHarness(t)
	h.installRelease(r1, map[string]string{"app.txt": "r1"})
	h.publish(r2, map[string]string{"app.txt": "r2"})
	// The manifest names the device path while the installation lives in a temp dir.
	h.remote.installRoot = func() string { return "/data/openpilot" }

	out := h.orchestrator(Options{ManifestPath: "/data/openpilot"}).RunCycle(context.Background(), RequestNone)

	require.NoError(t, out.Err)
	assert.True(t, out.Finalized)
	assertFinalizedR2(t, h)
	// The running installation still seeds the extraction.
	assert.Contains(t, readFile(t, filepath.Join(h.staging.Area().WorkDir, "calls")), "--seed="+h.install)
}

func TestCycle_TargetChannelResolution(t *testing.T) {
	nightly := release.Identity{Channel: "nightly", Version: "1.0", Commit: "n1"}

	t.Run("persisted channel wins", func(t *testing.T) {
		h := newHarness(t)
		h.installRelease(r1, nil)
		h.publish(r1, nil)
		h.publish(nightly, map[string]string{"app.txt": "n"})
		require.NoError(t, h.store.Put(params.KeyTargetBranch, "nightly"))

		out := h.orchestrator(Options{}).RunCycle(context.Background(), RequestCheck)
		require.NoError(t, out.Err)
		assert.Equal(t, "nightly", out.Channel)
		assert.True(t, out.UpdateAvailable, "running build is on another channel")
		assert.Equal(t, "nightly,release3", h.param(params.KeyAvailableBranches))
	})

	t.Run("default channel when build has no metadata", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, os.MkdirAll(h.install, 0o755))
		h.publish(nightly, nil)

		out := h.orchestrator(Options{DefaultChannel: "nightly"}).RunCycle(context.Background(), RequestCheck)
		require.NoError(t, out.Err)
		assert.Equal(t, "nightly", out.Channel)
		assert.True(t, out.UpdateAvailable)
		assert.Equal(t, "nightly", h.param(params.KeyTargetBranch))
		_, ok := h.recorder.CurrentBuild()
		assert.False(t, ok)
	})

	t.Run("no channel at all", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, os.MkdirAll(h.install, 0o755))

		out := h.orchestrator(Options{}).RunCycle(context.Background(), RequestNone)
		require.ErrorIs(t, out.Err, ErrNoChannel)
		assert.Equal(t, []status.Snapshot{
			snap(status.Checking, false, false),
			snap(status.Failed, false, false),
		}, h.recorder.Statuses())
	})

	t.Run("malformed metadata counts as absent", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, os.MkdirAll(h.install, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(h.install, release.MetadataFileName), []byte("{"), 0o644))
		h.publish(r2, nil)

		out := h.orchestrator(Options{DefaultChannel: "release3"}).RunCycle(context.Background(), RequestCheck)
		require.NoError(t, out.Err)
		assert.True(t, out.UpdateAvailable)
	})
}
