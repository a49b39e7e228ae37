// Package deltasync is the call boundary to the external delta-sync tool
// (casync-compatible) used to extract release trees and compute their digests.
package deltasync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/conn-castle/updated/internal/envfile"
	"github.com/conn-castle/updated/internal/messages"
)

// ErrExtractionFailed marks any failed extract or digest call. The destination
// of a failed extraction must be discarded, never repaired.
var ErrExtractionFailed = errors.New("delta-sync extraction failed")

// DefaultTool is the delta-sync binary looked up on PATH.
const DefaultTool = "casync"

// DefaultArgs are appended to every invocation so symlinks and timestamps
// round-trip through the content index.
var DefaultArgs = []string{"--with=symlinks", "--with=sec-time"}

const maxStderrInError = 2048

// Config configures a Gateway.
type Config struct {
	// Tool is the delta-sync executable; defaults to DefaultTool.
	Tool string
	// Args are extra arguments passed to both extract and digest.
	Args []string
	// WorkDir is exported as TMPDIR to the tool. Required.
	WorkDir string
	// EnvFile optionally names a KEY=VALUE file merged into the tool environment.
	EnvFile string
}

// Gateway runs the delta-sync tool.
type Gateway struct {
	cfg Config
	sys System
}

// New returns a Gateway for cfg. A nil sys uses RealSystem.
func New(cfg Config, sys System) (*Gateway, error) {
	if sys == nil {
		sys = RealSystem{}
	}
	if strings.TrimSpace(cfg.Tool) == "" {
		cfg.Tool = DefaultTool
	}
	if strings.TrimSpace(cfg.WorkDir) == "" {
		return nil, errors.New(messages.DeltaSyncWorkDirRequired)
	}
	return &Gateway{cfg: cfg, sys: sys}, nil
}

// Extract materializes the tree addressed by index into dest, using seed as a
// local reference when it exists. The caller clears dest beforehand.
func (g *Gateway) Extract(ctx context.Context, index string, dest string, seed string) error {
	if strings.TrimSpace(index) == "" {
		return failed(errors.New(messages.DeltaSyncIndexRequired))
	}
	if strings.TrimSpace(dest) == "" {
		return failed(errors.New(messages.DeltaSyncDestRequired))
	}
	args := []string{"extract", index, dest}
	if seed != "" {
		if info, err := g.sys.Stat(seed); err == nil && info.IsDir() {
			args = append(args, "--seed="+seed)
		}
	}
	args = append(args, g.cfg.Args...)

	if _, err := g.run(ctx, args); err != nil {
		return failed(fmt.Errorf(messages.DeltaSyncExtractFailedFmt, index, dest, err))
	}
	if info, err := g.sys.Stat(dest); err != nil || !info.IsDir() {
		return failed(fmt.Errorf(messages.DeltaSyncDestMissingFmt, index, dest))
	}
	return nil
}

// Digest returns the content digest of dir as printed by the tool.
func (g *Gateway) Digest(ctx context.Context, dir string) (string, error) {
	args := append([]string{"digest"}, g.cfg.Args...)
	args = append(args, dir)
	out, err := g.run(ctx, args)
	if err != nil {
		return "", failed(fmt.Errorf(messages.DeltaSyncDigestFailedFmt, dir, err))
	}
	digest := strings.TrimSpace(out)
	if digest == "" {
		return "", failed(fmt.Errorf(messages.DeltaSyncDigestEmptyFmt, dir))
	}
	return digest, nil
}

func (g *Gateway) run(ctx context.Context, args []string) (string, error) {
	env, err := g.environ()
	if err != nil {
		return "", err
	}
	var stdout, stderr bytes.Buffer
	err = g.sys.Run(ctx, Command{
		Path:   g.cfg.Tool,
		Args:   args,
		Env:    env,
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		return "", fmt.Errorf(messages.DeltaSyncCommandFailedFmt, g.cfg.Tool, err, truncate(strings.TrimSpace(stderr.String())))
	}
	return stdout.String(), nil
}

// environ builds the tool environment: the process environment, then the env
// file, then TMPDIR pointing at the private working directory.
func (g *Gateway) environ() ([]string, error) {
	if err := g.sys.MkdirAll(g.cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf(messages.DeltaSyncWorkDirFmt, g.cfg.WorkDir, err)
	}
	overrides := map[string]string{}
	if g.cfg.EnvFile != "" {
		data, err := g.sys.ReadFile(g.cfg.EnvFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf(messages.DeltaSyncReadEnvFileFmt, g.cfg.EnvFile, err)
		default:
			parsed, err := envfile.Parse(string(data))
			if err != nil {
				return nil, fmt.Errorf(messages.DeltaSyncInvalidEnvFileFmt, g.cfg.EnvFile, err)
			}
			overrides = parsed
		}
	}
	overrides["TMPDIR"] = g.cfg.WorkDir
	return envfile.Merge(g.sys.Environ(), overrides), nil
}

func truncate(s string) string {
	if len(s) <= maxStderrInError {
		return s
	}
	return s[:maxStderrInError] + "..."
}

func failed(err error) error {
	return fmt.Errorf("%w: %w", ErrExtractionFailed, err)
}
