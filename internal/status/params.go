package status

import (
	"strings"

	"github.com/conn-castle/updated/internal/params"
	"github.com/conn-castle/updated/internal/release"
)

// ParamStore is the subset of the parameter store the publisher writes to.
type ParamStore interface {
	Put(key string, value string) error
	PutBool(key string, value bool) error
}

// ParamsPublisher writes published state into the parameter store under the
// keys other device processes read.
type ParamsPublisher struct {
	store ParamStore
}

// NewParamsPublisher returns a publisher writing to store.
func NewParamsPublisher(store ParamStore) *ParamsPublisher {
	return &ParamsPublisher{store: store}
}

// PublishStatus writes the state and both flags. The state is written last so
// a reader that sees the new state also sees its flags.
func (p *ParamsPublisher) PublishStatus(s Snapshot) error {
	if err := p.store.PutBool(params.KeyFetchAvailable, s.FetchAvailable); err != nil {
		return err
	}
	if err := p.store.PutBool(params.KeyUpdateAvailable, s.UpdateReady); err != nil {
		return err
	}
	return p.store.Put(params.KeyState, string(s.State))
}

// PublishCurrentBuild writes the running build's description and notes.
func (p *ParamsPublisher) PublishCurrentBuild(id release.Identity) error {
	return p.putBuild(params.KeyCurrentDescription, params.KeyCurrentReleaseNotes, id)
}

// PublishNewBuild writes the fetched or finalized build's description and notes.
func (p *ParamsPublisher) PublishNewBuild(id release.Identity) error {
	return p.putBuild(params.KeyNewDescription, params.KeyNewReleaseNotes, id)
}

// PublishChannels writes the remote channel list, comma separated.
func (p *ParamsPublisher) PublishChannels(channels []string) error {
	return p.store.Put(params.KeyAvailableBranches, strings.Join(channels, ","))
}

func (p *ParamsPublisher) putBuild(descKey, notesKey string, id release.Identity) error {
	if err := p.store.Put(descKey, id.Description()); err != nil {
		return err
	}
	return p.store.Put(notesKey, id.ReleaseNotes)
}
