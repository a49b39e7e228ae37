// Package params is a file-per-key parameter store. Each key is a file under
// the store directory; values are replaced atomically so readers in other
// processes never observe a torn write.
package params

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conn-castle/updated/internal/fsutil"
	"github.com/conn-castle/updated/internal/messages"
)

// Keys written by the updater.
const (
	KeyState               = "UpdaterState"
	KeyFetchAvailable      = "UpdaterFetchAvailable"
	KeyUpdateAvailable     = "UpdateAvailable"
	KeyCurrentDescription  = "UpdaterCurrentDescription"
	KeyCurrentReleaseNotes = "UpdaterCurrentReleaseNotes"
	KeyNewDescription      = "UpdaterNewDescription"
	KeyNewReleaseNotes     = "UpdaterNewReleaseNotes"
	KeyAvailableBranches   = "UpdaterAvailableBranches"
	KeyTargetBranch        = "UpdaterTargetBranch"
)

// DefaultDir is the parameter store on devices.
const DefaultDir = "/data/params/d"

var writeFileAtomic = fsutil.WriteFileAtomic

// Store reads and writes parameters under a directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating it when missing.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New(messages.ParamsDirRequired)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf(messages.ParamsCreateDirFmt, dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Get returns the value of key. ok is false when the key is unset.
func (s *Store) Get(key string) (string, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf(messages.ParamsReadFmt, key, err)
	}
	return string(data), true, nil
}

// Put stores value under key.
func (s *Store) Put(key string, value string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf(messages.ParamsWriteFmt, key, err)
	}
	return nil
}

// GetBool reports whether key holds "1". Unset keys read as false.
func (s *Store) GetBool(key string) (bool, error) {
	value, _, err := s.Get(key)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(value) == "1", nil
}

// PutBool stores "1" or "0" under key.
func (s *Store) PutBool(key string, value bool) error {
	if value {
		return s.Put(key, "1")
	}
	return s.Put(key, "0")
}

// Delete removes key. Deleting an unset key is not an error.
func (s *Store) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf(messages.ParamsRemoveFmt, key, err)
	}
	return nil
}

func (s *Store) path(key string) (string, error) {
	if !validKey(key) {
		return "", fmt.Errorf(messages.ParamsInvalidKeyFmt, key)
	}
	return filepath.Join(s.dir, key), nil
}

// validKey accepts names made of ASCII letters, digits and underscores.
func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
