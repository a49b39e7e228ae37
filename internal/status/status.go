// Package status defines the updater's published state and the sinks it is
// published to.
package status

import (
	"errors"
	"fmt"

	"github.com/conn-castle/updated/internal/messages"
	"github.com/conn-castle/updated/internal/release"
)

// State is the orchestrator state as shown to other processes.
type State string

// The five states. Failed is recoverable: the next cycle starts at Checking.
const (
	Idle        State = "idle"
	Checking    State = "checking..."
	Downloading State = "downloading..."
	Finalizing  State = "finalizing update..."
	Failed      State = "failed to check for update..."
)

// States lists every State in lifecycle order.
var States = []State{Idle, Checking, Downloading, Finalizing, Failed}

// Snapshot is one published transition.
type Snapshot struct {
	State State
	// FetchAvailable means a newer release exists remotely and is not downloaded.
	FetchAvailable bool
	// UpdateReady means a finalized, marker-guarded tree exists on disk.
	UpdateReady bool
}

// Publisher receives everything the orchestrator publishes. Implementations
// must not block for long; the orchestrator calls them inline.
type Publisher interface {
	PublishStatus(s Snapshot) error
	PublishCurrentBuild(id release.Identity) error
	PublishNewBuild(id release.Identity) error
	PublishChannels(channels []string) error
}

// Fanout publishes to every publisher in order and joins their errors.
type Fanout []Publisher

func (f Fanout) each(fn func(Publisher) error) error {
	var errs []error
	for i, p := range f {
		if err := fn(p); err != nil {
			errs = append(errs, fmt.Errorf(messages.StatusFanoutFailedFmt, i, err))
		}
	}
	return errors.Join(errs...)
}

// PublishStatus implements Publisher.
func (f Fanout) PublishStatus(s Snapshot) error {
	return f.each(func(p Publisher) error { return p.PublishStatus(s) })
}

// PublishCurrentBuild implements Publisher.
func (f Fanout) PublishCurrentBuild(id release.Identity) error {
	return f.each(func(p Publisher) error { return p.PublishCurrentBuild(id) })
}

// PublishNewBuild implements Publisher.
func (f Fanout) PublishNewBuild(id release.Identity) error {
	return f.each(func(p Publisher) error { return p.PublishNewBuild(id) })
}

// PublishChannels implements Publisher.
func (f Fanout) PublishChannels(channels []string) error {
	return f.each(func(p Publisher) error { return p.PublishChannels(channels) })
}
