package staging

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/conn-castle/updated/internal/messages"
)

// DefaultLockFile is the updater instance lock on devices.
const DefaultLockFile = "/tmp/safe_staging_overlay.lock"

// ErrNotRunning reports a lock file that no live updater holds.
var ErrNotRunning = errors.New("no updater holds the instance lock")

var flockFn = unix.Flock
var lockSleep = time.Sleep

var (
	lockWaitTimeout = 30 * time.Second
	lockPollEvery   = 100 * time.Millisecond
)

// Lock is a held instance lock. The holder's PID is recorded in the file so
// other commands can signal the running daemon.
type Lock struct {
	file *os.File
	path string
}

// AcquireInstanceLock opens or creates path, takes an exclusive advisory lock
// on it and records the current PID.
func AcquireInstanceLock(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf(messages.StagingOpenLockFmt, path, err)
	}
	if err := lockFile(file); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf(messages.StagingLockFmt, path, err)
	}
	if err := writePID(file, os.Getpid()); err != nil {
		_ = flockFn(int(file.Fd()), unix.LOCK_UN)
		_ = file.Close()
		return nil, fmt.Errorf(messages.StagingWritePIDFmt, path, err)
	}
	return &Lock{file: file, path: path}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and closes the lock file. The PID is left in place; it is
// only trusted while the lock is held.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := flockFn(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		_ = l.file.Close()
		return err
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadPID returns the PID recorded in the lock file at path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf(messages.StagingReadPIDFmt, path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf(messages.StagingInvalidPIDFmt, path)
	}
	return pid, nil
}

// RunningPID returns the PID recorded in the lock file at path, but only while
// another process holds the lock. A PID left behind by an exited updater is
// reported as ErrNotRunning so it is never signalled.
func RunningPID(path string) (int, error) {
	pid, err := ReadPID(path)
	if err != nil {
		return 0, err
	}
	held, err := lockHeld(path)
	if err != nil {
		return 0, err
	}
	if !held {
		return 0, fmt.Errorf("%w: %s", ErrNotRunning, fmt.Sprintf(messages.StagingLockNotHeldFmt, path, pid))
	}
	return pid, nil
}

// lockHeld tries a non-blocking shared lock; failing with EWOULDBLOCK means an
// exclusive holder exists.
func lockHeld(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf(messages.StagingOpenLockFmt, path, err)
	}
	defer func() { _ = file.Close() }()
	err = flockFn(int(file.Fd()), unix.LOCK_SH|unix.LOCK_NB)
	switch {
	case err == nil:
		_ = flockFn(int(file.Fd()), unix.LOCK_UN)
		return false, nil
	case errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, unix.EAGAIN):
		return true, nil
	default:
		return false, fmt.Errorf(messages.StagingCheckLockFmt, path, err)
	}
}

func writePID(file *os.File, pid int) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt([]byte(strconv.Itoa(pid)+"\n"), 0); err != nil {
		return err
	}
	return file.Sync()
}

// lockFile acquires an exclusive advisory lock on the file.
func lockFile(file *os.File) error {
	deadline := time.Now().Add(lockWaitTimeout)
	for {
		err := flockFn(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EAGAIN) {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf(messages.StagingLockTimeoutFmt, lockWaitTimeout)
		}
		lockSleep(lockPollEvery)
	}
}
