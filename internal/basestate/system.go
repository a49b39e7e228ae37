package basestate

import (
	"os"

	"github.com/go-git/go-git/v5"
)

// System abstracts the OS operations needed to inspect an install root.
type System interface {
	Lstat(name string) (os.FileInfo, error)
	// OpenRepository opens the working copy containing dir, searching its ancestors.
	OpenRepository(dir string) (*git.Repository, error)
}

// RealSystem implements System using the OS.
type RealSystem struct{}

// Lstat returns a FileInfo describing the named file without following symlinks.
func (RealSystem) Lstat(name string) (os.FileInfo, error) {
	return os.Lstat(name)
}

// OpenRepository opens the repository at dir or the nearest ancestor holding a .git entry.
func (RealSystem) OpenRepository(dir string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
}
