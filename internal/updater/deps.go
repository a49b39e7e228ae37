package updater

import (
	"context"

	"github.com/conn-castle/updated/internal/basestate"
	"github.com/conn-castle/updated/internal/release"
	"github.com/conn-castle/updated/internal/staging"
)

// Fetcher reads remote release metadata.
type Fetcher interface {
	FetchChannels(ctx context.Context) ([]string, error)
	FetchChannel(ctx context.Context, channel string) (release.Identity, release.Manifest, error)
}

// Inspector reads the state of an installation root.
type Inspector interface {
	Inspect(ctx context.Context, dir string) (basestate.Base, error)
	ReadIdentity(dir string) (release.Identity, bool, error)
}

// DeltaSync extracts and digests release trees.
type DeltaSync interface {
	Extract(ctx context.Context, index string, dest string, seed string) error
	Digest(ctx context.Context, dir string) (string, error)
}

// Stager owns the staging and finalized directories.
type Stager interface {
	Area() staging.Area
	Prepare() (staging.Area, error)
	Reset() error
	Finalize(ctx context.Context, stagingDir string) error
	IsReady(dir string) bool
}

// ParamStore persists the target channel.
type ParamStore interface {
	Get(key string) (string, bool, error)
	Put(key string, value string) error
}

// Firmware applies platform firmware shipped inside a staged tree.
type Firmware interface {
	Update(ctx context.Context, stagedTree string) error
}
