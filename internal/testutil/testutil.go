// Package testutil holds helpers shared by package tests: shell stubs, a fake
// delta-sync tool, and release tree fixtures.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/conn-castle/updated/internal/release"
)

// WriteStub writes an executable shell stub that exits successfully.
// t is the active test; dir is the output directory; name is the executable file name.
func WriteStub(t *testing.T, dir string, name string) {
	t.Helper()
	WriteStubWithExit(t, dir, name, 0)
}

// WriteStubWithExit writes an executable shell stub that exits with the provided code.
// t is the active test; dir is the output directory; name is the executable file name.
func WriteStubWithExit(t *testing.T, dir string, name string, exitCode int) {
	t.Helper()
	WriteScript(t, dir, name, fmt.Sprintf("exit %d\n", exitCode))
}

// WriteStubExpectArg writes an executable shell stub that succeeds only when expectedArg is present.
// t is the active test; dir is the output directory; name is the executable file name.
func WriteStubExpectArg(t *testing.T, dir string, name string, expectedArg string) {
	t.Helper()
	WriteScript(t, dir, name, fmt.Sprintf("for arg in \"$@\"; do\n  if [ \"$arg\" = \"%s\" ]; then exit 0; fi\ndone\nexit 1\n", expectedArg))
}

// WriteScript writes an executable /bin/sh script with body and returns its path.
func WriteScript(t *testing.T, dir string, name string, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

// fakeDeltaSync treats a content index as a plain directory path.
//
//	extract <index> <dest> [--seed=...] [args...]  copies <index>/. into <dest>
//	digest [args...] <dir>                          prints a checksum of the files under <dir>
//
// An index directory containing CutMarker is copied and then the tool exits 3,
// leaving partial output behind. Every call is appended to $TMPDIR/calls.
const fakeDeltaSync = `cmd=$1; shift
echo "$cmd $*" >> "$TMPDIR/calls"
case "$cmd" in
extract)
  src=$1; dest=$2
  if [ ! -d "$src" ]; then echo "index not found: $src" >&2; exit 2; fi
  mkdir -p "$dest" && cp -a "$src/." "$dest/" || exit 1
  if [ -e "$src/` + CutMarker + `" ]; then echo "transport cut" >&2; exit 3; fi
  ;;
digest)
  for last in "$@"; do :; done
  if [ ! -d "$last" ]; then echo "no such directory: $last" >&2; exit 2; fi
  cd "$last" && find . -type f ! -name '` + CutMarker + `' | LC_ALL=C sort | while read -r f; do echo "$f"; cat "$f"; done | cksum | cut -d' ' -f1
  ;;
*)
  echo "unknown command: $cmd" >&2; exit 64
  ;;
esac
`

// CutMarker, when present at the top of an index directory, makes the fake
// delta-sync tool fail after a partial extraction.
const CutMarker = ".transport_cut"

// WriteFakeDeltaSync writes the fake delta-sync tool into dir and returns its path.
func WriteFakeDeltaSync(t *testing.T, dir string) string {
	t.Helper()
	return WriteScript(t, dir, "casync", fakeDeltaSync)
}

// WriteReleaseTree creates dir with build metadata for id plus files
// (relative path to content).
func WriteReleaseTree(t *testing.T, dir string, id release.Identity, files map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create release dir: %v", err)
	}
	if err := release.WriteIdentity(dir, id); err != nil {
		t.Fatalf("write build metadata: %v", err)
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("create dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}
