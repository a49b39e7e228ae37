package status

import (
	"slices"
	"sync"

	"github.com/conn-castle/updated/internal/release"
)

// Recorder is an in-memory Publisher that keeps everything it receives. The
// `once` command uses it to report the final state of a single cycle.
type Recorder struct {
	mu       sync.Mutex
	statuses []Snapshot
	current  []release.Identity
	newer    []release.Identity
	channels []string
}

// PublishStatus implements Publisher.
func (r *Recorder) PublishStatus(s Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
	return nil
}

// PublishCurrentBuild implements Publisher.
func (r *Recorder) PublishCurrentBuild(id release.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = append(r.current, id)
	return nil
}

// PublishNewBuild implements Publisher.
func (r *Recorder) PublishNewBuild(id release.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newer = append(r.newer, id)
	return nil
}

// PublishChannels implements Publisher.
func (r *Recorder) PublishChannels(channels []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = slices.Clone(channels)
	return nil
}

// Statuses returns every published snapshot in order.
func (r *Recorder) Statuses() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.statuses)
}

// States returns the state of every published snapshot in order.
func (r *Recorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.statuses))
	for i, s := range r.statuses {
		out[i] = s.State
	}
	return out
}

// Last returns the most recent snapshot and whether one exists.
func (r *Recorder) Last() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return Snapshot{}, false
	}
	return r.statuses[len(r.statuses)-1], true
}

// NewBuild returns the most recently published new build.
func (r *Recorder) NewBuild() (release.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.newer) == 0 {
		return release.Identity{}, false
	}
	return r.newer[len(r.newer)-1], true
}

// CurrentBuild returns the most recently published current build.
func (r *Recorder) CurrentBuild() (release.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.current) == 0 {
		return release.Identity{}, false
	}
	return r.current[len(r.current)-1], true
}

// Channels returns the last published channel list.
func (r *Recorder) Channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.channels)
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses, r.current, r.newer, r.channels = nil, nil, nil, nil
}
