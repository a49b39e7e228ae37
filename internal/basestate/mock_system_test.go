package basestate

import (
	"os"

	"github.com/go-git/go-git/v5"
)

// testSystem provides a mock System for unit tests.
//
// Both methods fall back to RealSystem so fixtures can live in t.TempDir().
type testSystem struct {
	RealSystem

	LstatFunc          func(name string) (os.FileInfo, error)
	OpenRepositoryFunc func(dir string) (*git.Repository, error)
}

func (s *testSystem) Lstat(name string) (os.FileInfo, error) {
	if s.LstatFunc != nil {
		return s.LstatFunc(name)
	}
	return s.RealSystem.Lstat(name)
}

func (s *testSystem) OpenRepository(dir string) (*git.Repository, error) {
	if s.OpenRepositoryFunc != nil {
		return s.OpenRepositoryFunc(dir)
	}
	return s.RealSystem.OpenRepository(dir)
}
