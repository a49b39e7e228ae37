package release

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conn-castle/updated/internal/messages"
)

// EntryTypePath marks a manifest entry that describes a directory tree.
const EntryTypePath = "path"

// Manifest is the ordered list of artifacts published for a channel.
type Manifest []Entry

// Entry is one manifest artifact. Only path entries are acted on.
type Entry struct {
	Type   string     `json:"type"`
	Path   string     `json:"path,omitempty"`
	Casync *CasyncRef `json:"casync,omitempty"`
}

// CasyncRef locates a tree in the delta-sync store and pins its expected digest.
type CasyncRef struct {
	Index  string `json:"caidx"`
	Digest string `json:"digest"`
}

// PathEntry returns the path entry that targets root.
func (m Manifest) PathEntry(root string) (Entry, error) {
	want := filepath.Clean(root)
	for _, entry := range m {
		if entry.Type != EntryTypePath || entry.Path == "" {
			continue
		}
		if filepath.Clean(entry.Path) != want {
			continue
		}
		if entry.Casync == nil || strings.TrimSpace(entry.Casync.Index) == "" {
			return Entry{}, fmt.Errorf(messages.ManifestEntryMissingIndex)
		}
		return entry, nil
	}
	return Entry{}, fmt.Errorf(messages.ManifestMissingPathEntryFmt, root)
}
