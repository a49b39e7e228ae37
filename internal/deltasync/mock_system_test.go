package deltasync

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// errNotMocked is returned when a testSystem method is called without a mock function set.
var errNotMocked = errors.New("testSystem: method not mocked")

// testSystem provides a mock System for unit tests. Filesystem calls fall back
// to RealSystem; Run fails fast so no test shells out by accident.
type testSystem struct {
	RealSystem

	StatFunc     func(name string) (os.FileInfo, error)
	ReadFileFunc func(name string) ([]byte, error)
	MkdirAllFunc func(path string, perm os.FileMode) error
	EnvironFunc  func() []string
	RunFunc      func(ctx context.Context, cmd Command) error
}

func (s *testSystem) Stat(name string) (os.FileInfo, error) {
	if s.StatFunc != nil {
		return s.StatFunc(name)
	}
	return s.RealSystem.Stat(name)
}

func (s *testSystem) ReadFile(name string) ([]byte, error) {
	if s.ReadFileFunc != nil {
		return s.ReadFileFunc(name)
	}
	return s.RealSystem.ReadFile(name)
}

func (s *testSystem) MkdirAll(path string, perm os.FileMode) error {
	if s.MkdirAllFunc != nil {
		return s.MkdirAllFunc(path, perm)
	}
	return s.RealSystem.MkdirAll(path, perm)
}

func (s *testSystem) Environ() []string {
	if s.EnvironFunc != nil {
		return s.EnvironFunc()
	}
	return s.RealSystem.Environ()
}

func (s *testSystem) Run(ctx context.Context, cmd Command) error {
	if s.RunFunc != nil {
		return s.RunFunc(ctx, cmd)
	}
	return fmt.Errorf("%w: Run %s", errNotMocked, cmd.Path)
}
