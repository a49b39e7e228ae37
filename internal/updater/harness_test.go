package updater

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conn-castle/updated/internal/basestate"
	"github.com/conn-castle/updated/internal/deltasync"
	"github.com/conn-castle/updated/internal/manifest"
	"github.com/conn-castle/updated/internal/params"
	"github.com/conn-castle/updated/internal/release"
	"github.com/conn-castle/updated/internal/staging"
	"github.com/conn-castle/updated/internal/status"
	"github.com/conn-castle/updated/internal/testutil"
)

type remoteRelease struct {
	id     release.Identity
	index  string
	digest string
}

// fakeRemote serves the channel API from memory.
type fakeRemote struct {
	mu       sync.Mutex
	releases map[string]remoteRelease
	// down drops every connection without a response.
	down        bool
	installRoot func() string
}

func (r *fakeRemote) setDown(down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.down = down
}

func (r *fakeRemote) dropIfDown(w http.ResponseWriter) bool {
	r.mu.Lock()
	down := r.down
	r.mu.Unlock()
	if !down {
		return false
	}
	conn, _, err := w.(http.Hijacker).Hijack()
	if err == nil {
		_ = conn.Close()
	}
	return true
}

func (r *fakeRemote) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /"+manifest.DefaultChannelsRoot, func(w http.ResponseWriter, _ *http.Request) {
		if r.dropIfDown(w) {
			return
		}
		r.mu.Lock()
		channels := make([]string, 0, len(r.releases))
		for ch := range r.releases {
			channels = append(channels, ch)
		}
		r.mu.Unlock()
		slices.Sort(channels)
		_ = json.NewEncoder(w).Encode(channels)
	})
	mux.HandleFunc("GET /"+manifest.DefaultChannelsRoot+"/{channel}", func(w http.ResponseWriter, req *http.Request) {
		if r.dropIfDown(w) {
			return
		}
		r.mu.Lock()
		rel, ok := r.releases[req.PathValue("channel")]
		r.mu.Unlock()
		if !ok {
			http.NotFound(w, req)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"build_metadata": rel.id,
			"manifest": release.Manifest{
				{Type: "bootloader", Path: "/dev/null"},
				{
					Type:   release.EntryTypePath,
					Path:   r.installRoot(),
					Casync: &release.CasyncRef{Index: rel.index, Digest: rel.digest},
				},
			},
		})
	})
	return mux
}

// harness wires real components over a temp directory: an httptest remote,
// the fake delta-sync tool, a staging manager and a params store.
type harness struct {
	t        *testing.T
	root     string
	install  string
	remote   *fakeRemote
	server   *httptest.Server
	fetcher  *manifest.Fetcher
	gateway  *deltasync.Gateway
	staging  *staging.Manager
	store    *params.Store
	recorder *status.Recorder
	firmware Firmware
	stager   Stager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		t:        t,
		root:     root,
		install:  filepath.Join(root, "data", "openpilot"),
		recorder: &status.Recorder{},
	}
	h.remote = &fakeRemote{
		releases:    map[string]remoteRelease{},
		installRoot: func() string { return h.install },
	}
	h.server = httptest.NewServer(h.remote.handler())
	t.Cleanup(h.server.Close)

	var err error
	h.fetcher, err = manifest.NewFetcher(h.server.URL)
	require.NoError(t, err)
	h.staging, err = staging.NewManager(filepath.Join(root, "safe_staging"), nil)
	require.NoError(t, err)
	tool := testutil.WriteFakeDeltaSync(t, root)
	h.gateway, err = deltasync.New(deltasync.Config{Tool: tool, WorkDir: h.staging.Area().WorkDir}, nil)
	require.NoError(t, err)
	h.store, err = params.NewStore(filepath.Join(root, "params"))
	require.NoError(t, err)
	return h
}

func (h *harness) orchestrator(opts Options) *Orchestrator {
	h.t.Helper()
	if opts.InstallRoot == "" {
		opts.InstallRoot = h.install
	}
	var stager Stager = h.staging
	if h.stager != nil {
		stager = h.stager
	}
	o, err := New(Deps{
		Fetcher:   h.fetcher,
		Inspector: basestate.NewInspector(basestate.RealSystem{}),
		DeltaSync: h.gateway,
		Staging:   stager,
		Params:    h.store,
		Publisher: status.Fanout{h.recorder, status.NewParamsPublisher(h.store)},
		Firmware:  h.firmware,
	}, opts)
	require.NoError(h.t, err)
	return o
}

// installRelease writes id as the running installation.
func (h *harness) installRelease(id release.Identity, files map[string]string) {
	h.t.Helper()
	testutil.WriteReleaseTree(h.t, h.install, id, files)
}

// publish serves id on its channel with a content index built from files.
func (h *harness) publish(id release.Identity, files map[string]string) string {
	h.t.Helper()
	index := filepath.Join(h.root, "remote", id.Channel+"-"+id.Commit)
	require.NoError(h.t, os.RemoveAll(index))
	testutil.WriteReleaseTree(h.t, index, id, files)
	digest, err := h.gateway.Digest(context.Background(), index)
	require.NoError(h.t, err)
	h.remote.mu.Lock()
	h.remote.releases[id.Channel] = remoteRelease{id: id, index: index, digest: digest}
	h.remote.mu.Unlock()
	return index
}

// overrideDigest replaces the digest served for channel.
func (h *harness) overrideDigest(channel, digest string) {
	h.remote.mu.Lock()
	defer h.remote.mu.Unlock()
	rel := h.remote.releases[channel]
	rel.digest = digest
	h.remote.releases[channel] = rel
}

func (h *harness) param(key string) string {
	h.t.Helper()
	value, _, err := h.store.Get(key)
	require.NoError(h.t, err)
	return value
}

func (h *harness) finalizedIdentity() (release.Identity, bool) {
	h.t.Helper()
	id, ok, err := release.ReadIdentity(h.staging.Area().Finalized)
	require.NoError(h.t, err)
	return id, ok
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
