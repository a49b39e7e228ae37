// Package release defines the build identity and manifest types exchanged between
// the release API, the on-disk trees, and the orchestrator.
package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conn-castle/updated/internal/fsutil"
	"github.com/conn-castle/updated/internal/messages"
)

// MetadataFileName is the build metadata file at the top of every release tree.
const MetadataFileName = "build.json"

// Identity describes a release build. Two identities name the same release iff
// their channel and commit match; see Same.
type Identity struct {
	Channel      string
	Version      string
	Commit       string
	ReleaseNotes string
	Origin       string
	CommitDate   string
	BuildStyle   string
	Dirty        bool
}

type identityFile struct {
	Channel string      `json:"channel"`
	Release releaseInfo `json:"release"`
}

type releaseInfo struct {
	Version       string `json:"version"`
	ReleaseNotes  string `json:"release_notes"`
	GitCommit     string `json:"git_commit"`
	GitOrigin     string `json:"git_origin"`
	GitCommitDate string `json:"git_commit_date"`
	BuildStyle    string `json:"build_style"`
	IsDirty       bool   `json:"is_dirty"`
}

// Same reports whether a and b identify the same release: channel and commit match.
// The channel is part of the identity, so equal commits on different channels differ.
func Same(a Identity, b Identity) bool {
	return a.Channel == b.Channel && a.Commit == b.Commit
}

// Description renders the human-readable "<version> / <channel>" label.
func (id Identity) Description() string {
	version := id.Version
	if strings.TrimSpace(version) == "" {
		version = messages.ReleaseDescriptionUnknown
	}
	return fmt.Sprintf(messages.ReleaseDescriptionFmt, version, id.Channel)
}

// ShortCommit returns the first 12 characters of the commit for log lines.
func (id Identity) ShortCommit() string {
	if len(id.Commit) > 12 {
		return id.Commit[:12]
	}
	return id.Commit
}

// MarshalJSON encodes the identity in the build metadata wire shape.
func (id Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(identityFile{
		Channel: id.Channel,
		Release: releaseInfo{
			Version:       id.Version,
			ReleaseNotes:  id.ReleaseNotes,
			GitCommit:     id.Commit,
			GitOrigin:     id.Origin,
			GitCommitDate: id.CommitDate,
			BuildStyle:    id.BuildStyle,
			IsDirty:       id.Dirty,
		},
	})
}

// UnmarshalJSON decodes the build metadata wire shape.
func (id *Identity) UnmarshalJSON(data []byte) error {
	var raw identityFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*id = Identity{
		Channel:      raw.Channel,
		Version:      raw.Release.Version,
		Commit:       raw.Release.GitCommit,
		ReleaseNotes: raw.Release.ReleaseNotes,
		Origin:       raw.Release.GitOrigin,
		CommitDate:   raw.Release.GitCommitDate,
		BuildStyle:   raw.Release.BuildStyle,
		Dirty:        raw.Release.IsDirty,
	}
	return nil
}

// ReadIdentity reads the build metadata of the tree rooted at dir.
// A missing metadata file is reported as ok == false with a nil error.
func ReadIdentity(dir string) (Identity, bool, error) {
	path := filepath.Join(dir, MetadataFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Identity{}, false, nil
		}
		return Identity{}, false, fmt.Errorf(messages.ReleaseReadMetadataFmt, path, err)
	}
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return Identity{}, false, fmt.Errorf(messages.ReleaseDecodeMetadataFmt, path, err)
	}
	if strings.TrimSpace(id.Channel) == "" {
		return Identity{}, false, fmt.Errorf(messages.ReleaseMetadataChannelFmt, path)
	}
	return id, true, nil
}

// WriteIdentity records id as the build metadata of the tree rooted at dir.
// It is called once when a release tree is assembled.
func WriteIdentity(dir string, id Identity) error {
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf(messages.ReleaseEncodeMetadataFmt, err)
	}
	data = append(data, '\n')
	path := filepath.Join(dir, MetadataFileName)
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf(messages.ReleaseWriteMetadataFmt, path, err)
	}
	return nil
}
