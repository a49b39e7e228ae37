// Package staging owns the on-disk staging area, the finalize swap and the
// consistency marker that tells observers whether the finalized tree is usable.
package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/conn-castle/updated/internal/fsutil"
	"github.com/conn-castle/updated/internal/messages"
)

// ErrFinalizeFailed marks any error during the finalize swap. The marker is
// left absent whenever it is returned.
var ErrFinalizeFailed = errors.New("finalize failed")

const (
	// DefaultRoot is the staging root on devices.
	DefaultRoot = "/data/safe_staging"
	// MarkerName is the sentinel file inside the finalized directory.
	MarkerName = ".overlay_consistent"

	treeDirName      = "casync"
	workDirName      = "casync_tmp"
	finalizedDirName = "finalized"
)

var (
	syncFn     = syncFilesystem
	removeAll  = os.RemoveAll
	copyTreeFn = fsutil.CopyTree
)

// Area is the resolved staging layout.
type Area struct {
	Root      string
	Tree      string
	WorkDir   string
	Finalized string
}

// Layout returns the staging layout under root without touching the disk.
func Layout(root string) Area {
	return Area{
		Root:      root,
		Tree:      filepath.Join(root, treeDirName),
		WorkDir:   filepath.Join(root, workDirName),
		Finalized: filepath.Join(root, finalizedDirName),
	}
}

// Manager owns the staging root.
type Manager struct {
	area   Area
	logger *slog.Logger
}

// NewManager returns a Manager for root. A nil logger discards output.
func NewManager(root string, logger *slog.Logger) (*Manager, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New(messages.StagingRootRequired)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{area: Layout(filepath.Clean(root)), logger: logger}, nil
}

// Area returns the layout managed by m.
func (m *Manager) Area() Area {
	return m.area
}

// Prepare ensures the staging root, working directory and tree directory exist.
func (m *Manager) Prepare() (Area, error) {
	for _, dir := range []string{m.area.Root, m.area.WorkDir, m.area.Tree} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Area{}, fmt.Errorf(messages.StagingCreateDirFmt, dir, err)
		}
	}
	return m.area, nil
}

// Reset discards whatever a previous extraction left in the tree directory.
func (m *Manager) Reset() error {
	if err := removeAll(m.area.Tree); err != nil {
		return fmt.Errorf(messages.StagingResetTreeFmt, m.area.Tree, err)
	}
	if err := os.MkdirAll(m.area.Tree, 0o755); err != nil {
		return fmt.Errorf(messages.StagingResetTreeFmt, m.area.Tree, err)
	}
	return nil
}

// Finalize replaces the finalized directory with a copy of stagingDir.
//
// The marker is cleared and flushed before the old tree is removed and set
// only after the copy has been flushed, so a crash at any point leaves either
// the marker absent or a complete tree behind it. A cancelled ctx leaves the
// previous finalized tree and its marker untouched.
func (m *Manager) Finalize(ctx context.Context, stagingDir string) error {
	finalized := m.area.Finalized
	if _, err := os.Stat(stagingDir); err != nil {
		return finalizeFailed(fmt.Errorf(messages.StagingSourceMissingFmt, stagingDir, err))
	}
	if err := ctx.Err(); err != nil {
		return finalizeFailed(err)
	}
	if err := m.SetConsistent(finalized, false); err != nil {
		return finalizeFailed(err)
	}
	if err := removeAll(finalized); err != nil {
		return finalizeFailed(fmt.Errorf(messages.StagingRemoveFinalizedFmt, finalized, err))
	}
	stats, err := copyTreeFn(stagingDir, finalized)
	if err != nil {
		return finalizeFailed(fmt.Errorf(messages.StagingCopyTreeFmt, finalized, err))
	}
	if err := syncFn(); err != nil {
		return finalizeFailed(fmt.Errorf(messages.StagingSyncFmt, err))
	}
	if err := m.SetConsistent(finalized, true); err != nil {
		_ = os.Remove(filepath.Join(finalized, MarkerName))
		return finalizeFailed(err)
	}
	m.logger.Info("finalized update",
		"dir", finalized,
		"files", stats.Files,
		"dirs", stats.Dirs,
		"symlinks", stats.Symlinks,
		"size", humanize.IBytes(uint64(stats.Bytes)),
	)
	return nil
}

// IsReady reports whether dir carries the consistency marker.
func (m *Manager) IsReady(dir string) bool {
	return IsReady(dir)
}

// IsReady reports whether dir carries the consistency marker.
func IsReady(dir string) bool {
	info, err := os.Lstat(filepath.Join(dir, MarkerName))
	return err == nil && info.Mode().IsRegular()
}

// SetConsistent sets or clears the marker in dir and flushes the filesystem.
// Clearing a marker in a missing directory is a no-op apart from the flush.
func (m *Manager) SetConsistent(dir string, consistent bool) error {
	marker := filepath.Join(dir, MarkerName)
	if consistent {
		if err := os.WriteFile(marker, nil, 0o644); err != nil {
			return fmt.Errorf(messages.StagingSetMarkerFmt, dir, err)
		}
	} else if err := os.Remove(marker); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf(messages.StagingClearMarkerFmt, dir, err)
	}
	if err := syncFn(); err != nil {
		return fmt.Errorf(messages.StagingSyncFmt, err)
	}
	return nil
}

func finalizeFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrFinalizeFailed, err)
}
