package staging

import "golang.org/x/sys/unix"

func syncFilesystem() error {
	return unix.Sync()
}
