// Package basestate inspects the running installation: its declared build identity
// and whether it is a plain release tree or a version-controlled working copy.
package basestate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/conn-castle/updated/internal/messages"
	"github.com/conn-castle/updated/internal/release"
)

// Base is the inspected state of an install root. It is rebuilt on every cycle.
type Base struct {
	Dir         string
	Identity    release.Identity
	HasIdentity bool
	// Abnormal is true when Dir is inside a version-control working copy.
	Abnormal bool
	// VCSRoot is the working copy root when Abnormal.
	VCSRoot string
	// VCSHead is the checked-out commit, best effort and for logs only. It is
	// empty for a working copy without commits.
	VCSHead string
}

// Inspector reads install roots.
type Inspector struct {
	sys System
}

// NewInspector returns an Inspector backed by sys (RealSystem when nil).
func NewInspector(sys System) *Inspector {
	if sys == nil {
		sys = RealSystem{}
	}
	return &Inspector{sys: sys}
}

// ReadIdentity returns the identity declared by the metadata file in dir.
// The working copy state is never consulted.
func (i *Inspector) ReadIdentity(dir string) (release.Identity, bool, error) {
	return release.ReadIdentity(dir)
}

// IsAbnormalCheckout reports whether dir or one of its ancestors is a
// version-control working copy.
func (i *Inspector) IsAbnormalCheckout(dir string) (bool, error) {
	_, ok, err := i.openRepository(dir)
	return ok, err
}

// Inspect reads the identity and checkout state of dir.
func (i *Inspector) Inspect(ctx context.Context, dir string) (Base, error) {
	if strings.TrimSpace(dir) == "" {
		return Base{}, fmt.Errorf(messages.BaseStateInstallRootNeeded)
	}
	info, err := i.sys.Lstat(dir)
	if err != nil {
		return Base{}, fmt.Errorf(messages.BaseStateInspectRootFmt, dir, err)
	}
	if !info.IsDir() {
		return Base{}, fmt.Errorf(messages.BaseStateRootNotDirFmt, dir)
	}

	base := Base{Dir: dir}
	base.Identity, base.HasIdentity, err = i.ReadIdentity(dir)
	if err != nil {
		return Base{}, fmt.Errorf(messages.BaseStateInspectRootFmt, dir, err)
	}
	if err := ctx.Err(); err != nil {
		return Base{}, err
	}
	repo, ok, err := i.openRepository(dir)
	if err != nil {
		return Base{}, err
	}
	if ok {
		base.Abnormal = true
		base.VCSRoot = worktreeRoot(repo)
		if head, err := repo.Head(); err == nil {
			base.VCSHead = head.Hash().String()
		}
	}
	return base, nil
}

// openRepository returns the working copy containing dir; ok is false when there is none.
func (i *Inspector) openRepository(dir string) (*git.Repository, bool, error) {
	repo, err := i.sys.OpenRepository(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf(messages.BaseStateOpenVCSFmt, dir, err)
	}
	return repo, true, nil
}

func worktreeRoot(repo *git.Repository) string {
	wt, err := repo.Worktree()
	if err != nil {
		return ""
	}
	return wt.Filesystem.Root()
}
