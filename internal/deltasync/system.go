package deltasync

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// Command describes one invocation of the delta-sync tool.
type Command struct {
	Path   string
	Args   []string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// System abstracts the OS operations the gateway needs so tests can run
// without a real delta-sync binary.
type System interface {
	Stat(name string) (os.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	MkdirAll(path string, perm os.FileMode) error
	Environ() []string
	Run(ctx context.Context, cmd Command) error
}

// RealSystem implements System using the OS.
type RealSystem struct{}

// Stat returns file info for name.
func (RealSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// ReadFile reads the named file and returns the contents.
func (RealSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// MkdirAll creates path and any missing parents.
func (RealSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Environ returns a copy of strings representing the environment.
func (RealSystem) Environ() []string {
	return os.Environ()
}

// Run starts cmd and waits for it to exit. Cancelling ctx kills the process.
func (RealSystem) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Env = cmd.Env
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	return c.Run()
}
