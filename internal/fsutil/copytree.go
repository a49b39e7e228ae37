package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyStats summarizes a CopyTree run.
type CopyStats struct {
	Files    int
	Dirs     int
	Symlinks int
	Bytes    int64
}

// copyFileFn is swapped in tests to interrupt a copy partway through.
var copyFileFn = copyFile

// dirMode is a directory whose permissions are applied once its children exist.
type dirMode struct {
	path string
	perm os.FileMode
}

// CopyTree copies src into dst, which must not exist yet. Symbolic links are
// recreated as links (never followed) and file and directory modes are
// preserved regardless of the process umask.
func CopyTree(src string, dst string) (CopyStats, error) {
	var stats CopyStats
	var dirs []dirMode
	info, err := os.Lstat(src)
	if err != nil {
		return stats, fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("copy tree source %s is not a directory", src)
	}
	if _, err := os.Lstat(dst); err == nil {
		return stats, fmt.Errorf("copy tree destination %s already exists", dst)
	} else if !errors.Is(err, os.ErrNotExist) {
		return stats, fmt.Errorf("stat %s: %w", dst, err)
	}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.Symlink(link, target); err != nil {
				return err
			}
			stats.Symlinks++
		case d.IsDir():
			// Owner access stays open until the walk is done so read-only
			// directories can still be filled.
			if err := os.Mkdir(target, info.Mode().Perm()|0o700); err != nil {
				return err
			}
			dirs = append(dirs, dirMode{path: target, perm: info.Mode().Perm()})
			stats.Dirs++
		case info.Mode().IsRegular():
			n, err := copyFileFn(path, target, info.Mode().Perm())
			if err != nil {
				return err
			}
			stats.Files++
			stats.Bytes += n
		default:
			// Sockets, devices and fifos have no place in a release tree.
			return fmt.Errorf("unsupported file type %s at %s", info.Mode().Type(), path)
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	// Children first, so a parent losing write access does not block them.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i].path, dirs[i].perm); err != nil {
			return stats, fmt.Errorf("copy %s to %s: %w", src, dst, err)
		}
	}
	return stats, nil
}

func copyFile(src string, dst string, perm os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, err
	}
	if err := out.Chmod(perm); err != nil {
		_ = out.Close()
		return n, err
	}
	return n, out.Close()
}
