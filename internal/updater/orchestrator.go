// Package updater runs the update state machine: check the remote channel,
// pull a new tree into staging, and finalize it for the next boot.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/conn-castle/updated/internal/basestate"
	"github.com/conn-castle/updated/internal/deltasync"
	"github.com/conn-castle/updated/internal/messages"
	"github.com/conn-castle/updated/internal/params"
	"github.com/conn-castle/updated/internal/release"
	"github.com/conn-castle/updated/internal/status"
)

var (
	// ErrFirmwareFailed marks a failed platform firmware step.
	ErrFirmwareFailed = errors.New("firmware update failed")
	// ErrDigestMismatch marks a staged tree whose digest differs from the
	// manifest. It is an extraction failure.
	ErrDigestMismatch = fmt.Errorf("%w: digest mismatch", deltasync.ErrExtractionFailed)
	// ErrNoChannel means no target channel could be resolved.
	ErrNoChannel = errors.New(messages.UpdaterNoChannel)
)

// DefaultInterval is the pause between background cycles.
const DefaultInterval = 60 * time.Second

// Deps are the collaborators of an Orchestrator. Firmware, Logger and Tracer
// are optional.
type Deps struct {
	Fetcher   Fetcher
	Inspector Inspector
	DeltaSync DeltaSync
	Staging   Stager
	Params    ParamStore
	Publisher status.Publisher
	Firmware  Firmware
	Logger    *slog.Logger
	Tracer    trace.Tracer
}

// Options configure an Orchestrator.
type Options struct {
	// InstallRoot is the running installation. It is inspected every cycle
	// and seeds every extraction.
	InstallRoot string
	// ManifestPath is the path entry to extract from the release manifest.
	// Empty means InstallRoot.
	ManifestPath string
	// DefaultChannel is the fallback when neither the params store nor the
	// running build names a channel.
	DefaultChannel string
	// Interval is the pause between background cycles.
	Interval time.Duration
}

// Outcome describes one finished cycle.
type Outcome struct {
	CycleID string
	Request Request
	Channel string
	// Status is the last snapshot published by the cycle.
	Status          status.Snapshot
	Base            basestate.Base
	Remote          release.Identity
	UpdateAvailable bool
	// Finalized is true when the cycle produced a new finalized tree.
	Finalized bool
	Err       error
}

// Orchestrator sequences inspection, fetch, extraction and finalize.
type Orchestrator struct {
	deps  Deps
	opts  Options
	waker *Waker
	log   *slog.Logger
}

// New validates deps and returns an Orchestrator.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	required := []struct {
		name string
		set  bool
	}{
		{"Fetcher", deps.Fetcher != nil},
		{"Inspector", deps.Inspector != nil},
		{"DeltaSync", deps.DeltaSync != nil},
		{"Staging", deps.Staging != nil},
		{"Params", deps.Params != nil},
		{"Publisher", deps.Publisher != nil},
	}
	for _, r := range required {
		if !r.set {
			return nil, fmt.Errorf(messages.UpdaterDependencyRequired, r.name)
		}
	}
	if strings.TrimSpace(opts.InstallRoot) == "" {
		return nil, errors.New(messages.UpdaterInstallRootNeeded)
	}
	if strings.TrimSpace(opts.ManifestPath) == "" {
		opts.ManifestPath = opts.InstallRoot
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Tracer == nil {
		deps.Tracer = nooptrace.NewTracerProvider().Tracer("")
	}
	return &Orchestrator{deps: deps, opts: opts, waker: NewWaker(), log: deps.Logger}, nil
}

// Waker returns the waker used to deliver user requests to Run.
func (o *Orchestrator) Waker() *Waker {
	return o.waker
}

// cycle carries per-cycle state.
type cycle struct {
	*Outcome
	ctx context.Context
	log *slog.Logger
}

// RunCycle runs one complete check/download/finalize cycle. Failures are
// published and returned in the Outcome; they never abort the caller.
func (o *Orchestrator) RunCycle(ctx context.Context, req Request) Outcome {
	out := &Outcome{CycleID: uuid.NewString(), Request: req}
	ctx, span := o.deps.Tracer.Start(ctx, "updater.cycle", trace.WithAttributes(
		attribute.String("cycle.id", out.CycleID),
		attribute.String("cycle.request", req.String()),
	))
	defer span.End()

	c := &cycle{
		Outcome: out,
		ctx:     ctx,
		log:     o.log.With("cycle_id", out.CycleID, "request", req.String()),
	}
	started := time.Now()
	o.run(c)

	if c.Err != nil {
		span.RecordError(c.Err)
		span.SetStatus(codes.Error, c.Err.Error())
		c.log.WarnContext(ctx, "update cycle failed", "state", c.Status.State, "error", c.Err)
	} else {
		c.log.InfoContext(ctx, "update cycle finished",
			"state", c.Status.State,
			"fetch_available", c.Status.FetchAvailable,
			"update_ready", c.Status.UpdateReady,
			"duration", time.Since(started).Round(time.Millisecond),
		)
	}
	span.SetAttributes(
		attribute.String("updater.state", string(c.Status.State)),
		attribute.Bool("updater.fetch_available", c.Status.FetchAvailable),
		attribute.Bool("updater.update_ready", c.Status.UpdateReady),
	)
	return *out
}

func (o *Orchestrator) run(c *cycle) {
	o.publish(c, status.Checking, false, false)

	c.Base = o.inspect(c)
	channel, err := o.resolveChannel(c)
	if err != nil {
		o.fail(c, err, false, false)
		return
	}
	c.Channel = channel
	c.log = c.log.With("channel", channel)

	finalized := o.deps.Staging.Area().Finalized
	ready := o.deps.Staging.IsReady(finalized)
	if c.Base.HasIdentity {
		o.publishBuild(c, "current build", o.deps.Publisher.PublishCurrentBuild, c.Base.Identity)
	}

	remote, manifest, err := o.fetch(c, channel)
	if err != nil {
		o.fail(c, err, false, false)
		return
	}
	c.Remote = remote

	available := updateAvailable(c.Base, remote)
	if available && ready {
		if staged, ok, err := o.deps.Inspector.ReadIdentity(finalized); err != nil {
			c.log.WarnContext(c.ctx, "read finalized build metadata", "error", err)
		} else if ok && release.Same(staged, remote) {
			available = false
		}
	}
	c.UpdateAvailable = available
	c.log.InfoContext(c.ctx, "checked remote channel",
		"remote", remote.Description(),
		"remote_commit", remote.ShortCommit(),
		"current_commit", c.Base.Identity.ShortCommit(),
		"abnormal_base", c.Base.Abnormal,
		"update_available", available,
		"update_ready", ready,
	)
	o.publish(c, status.Idle, available, ready)
	if available {
		o.publishBuild(c, "new build", o.deps.Publisher.PublishNewBuild, remote)
	}
	o.refreshChannels(c)

	if !available {
		return
	}
	if c.Request == RequestCheck {
		c.log.InfoContext(c.ctx, "skipping download, only checking")
		return
	}

	o.publish(c, status.Downloading, false, false)
	stagedTree, err := o.download(c, manifest)
	if err != nil {
		o.fail(c, err, available, ready)
		return
	}

	o.publish(c, status.Finalizing, false, false)
	if err := o.finalize(c, stagedTree); err != nil {
		o.fail(c, err, true, o.deps.Staging.IsReady(finalized))
		return
	}
	ready = o.deps.Staging.IsReady(finalized)
	c.Finalized = ready
	c.UpdateAvailable = false
	if id, ok, err := o.deps.Inspector.ReadIdentity(finalized); err != nil {
		c.log.WarnContext(c.ctx, "read finalized build metadata", "error", err)
	} else if ok {
		o.publishBuild(c, "new build", o.deps.Publisher.PublishNewBuild, id)
	}
	o.publish(c, status.Idle, false, ready)
}

// updateAvailable compares the running base against the remote target. A base
// without metadata never counts as the same release. A version-controlled base is
// compared by its declared metadata like any other.
func updateAvailable(base basestate.Base, remote release.Identity) bool {
	if !base.HasIdentity {
		return true
	}
	return !release.Same(base.Identity, remote)
}

func (o *Orchestrator) inspect(c *cycle) basestate.Base {
	base, err := o.deps.Inspector.Inspect(c.ctx, o.opts.InstallRoot)
	if err != nil {
		c.log.WarnContext(c.ctx, "inspect install root", "dir", o.opts.InstallRoot, "error", err)
		return basestate.Base{Dir: o.opts.InstallRoot}
	}
	if base.Abnormal {
		c.log.WarnContext(c.ctx, "install root is a version-controlled checkout",
			"dir", base.Dir, "vcs_root", base.VCSRoot, "vcs_head", base.VCSHead)
	}
	return base
}

// resolveChannel returns the persisted target channel, falling back to the
// running build's channel and then the configured default. A fallback is
// persisted so later cycles keep following it.
func (o *Orchestrator) resolveChannel(c *cycle) (string, error) {
	channel, ok, err := o.deps.Params.Get(params.KeyTargetBranch)
	if err != nil {
		return "", fmt.Errorf(messages.UpdaterReadChannelFmt, err)
	}
	channel = strings.TrimSpace(channel)
	if ok && channel != "" {
		return channel, nil
	}
	switch {
	case c.Base.HasIdentity && c.Base.Identity.Channel != "":
		channel = c.Base.Identity.Channel
	case o.opts.DefaultChannel != "":
		channel = o.opts.DefaultChannel
	default:
		return "", ErrNoChannel
	}
	if err := o.deps.Params.Put(params.KeyTargetBranch, channel); err != nil {
		return "", fmt.Errorf(messages.UpdaterPersistChannelFmt, channel, err)
	}
	return channel, nil
}

func (o *Orchestrator) fetch(c *cycle, channel string) (release.Identity, release.Manifest, error) {
	ctx, span := o.deps.Tracer.Start(c.ctx, "updater.fetch", trace.WithAttributes(attribute.String("channel", channel)))
	defer span.End()
	remote, manifest, err := o.deps.Fetcher.FetchChannel(ctx, channel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return remote, manifest, err
}

// refreshChannels publishes the remote channel list. Failures only matter to
// the channel picker, so they are logged and otherwise ignored.
func (o *Orchestrator) refreshChannels(c *cycle) {
	channels, err := o.deps.Fetcher.FetchChannels(c.ctx)
	if err != nil {
		c.log.WarnContext(c.ctx, "fetch available channels", "error", err)
		return
	}
	if err := o.deps.Publisher.PublishChannels(channels); err != nil {
		c.log.WarnContext(c.ctx, "publish available channels", "error", err)
	}
}

// download repopulates the staging tree and returns its path.
func (o *Orchestrator) download(c *cycle, manifest release.Manifest) (string, error) {
	ctx, span := o.deps.Tracer.Start(c.ctx, "updater.download")
	defer span.End()
	tree, err := o.extract(ctx, c, manifest)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return tree, err
}

func (o *Orchestrator) extract(ctx context.Context, c *cycle, manifest release.Manifest) (string, error) {
	entry, err := manifest.PathEntry(o.opts.ManifestPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", deltasync.ErrExtractionFailed, err)
	}
	area, err := o.deps.Staging.Prepare()
	if err != nil {
		return "", fmt.Errorf(messages.UpdaterPrepareStagingFmt, err)
	}
	if err := o.deps.Staging.Reset(); err != nil {
		return "", fmt.Errorf(messages.UpdaterPrepareStagingFmt, err)
	}

	c.log.InfoContext(ctx, "extracting update", "index", entry.Casync.Index, "dest", area.Tree, "seed", o.opts.InstallRoot)
	if err := o.deps.DeltaSync.Extract(ctx, entry.Casync.Index, area.Tree, o.opts.InstallRoot); err != nil {
		return "", err
	}
	if want := strings.TrimSpace(entry.Casync.Digest); want != "" {
		got, err := o.deps.DeltaSync.Digest(ctx, area.Tree)
		if err != nil {
			return "", err
		}
		if got != want {
			return "", fmt.Errorf("%w: "+messages.UpdaterDigestMismatchFmt, ErrDigestMismatch, got, want)
		}
	}
	if o.deps.Firmware != nil {
		if err := o.deps.Firmware.Update(ctx, area.Tree); err != nil {
			return "", fmt.Errorf("%w: "+messages.UpdaterFirmwareFailedFmt, ErrFirmwareFailed, area.Tree, err)
		}
	}
	return area.Tree, nil
}

func (o *Orchestrator) finalize(c *cycle, stagedTree string) error {
	ctx, span := o.deps.Tracer.Start(c.ctx, "updater.finalize")
	defer span.End()
	if err := o.deps.Staging.Finalize(ctx, stagedTree); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (o *Orchestrator) fail(c *cycle, err error, fetchAvailable, ready bool) {
	c.Err = err
	o.publish(c, status.Failed, fetchAvailable, ready)
}

func (o *Orchestrator) publish(c *cycle, state status.State, fetchAvailable, ready bool) {
	c.Status = status.Snapshot{State: state, FetchAvailable: fetchAvailable, UpdateReady: ready}
	if err := o.deps.Publisher.PublishStatus(c.Status); err != nil {
		c.log.WarnContext(c.ctx, "publish status", "state", state, "error", err)
	}
}

func (o *Orchestrator) publishBuild(c *cycle, what string, fn func(release.Identity) error, id release.Identity) {
	if err := fn(id); err != nil {
		c.log.WarnContext(c.ctx, "publish "+what, "build", id.Description(), "error", err)
	}
}
