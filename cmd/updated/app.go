package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"

	"github.com/conn-castle/updated/internal/basestate"
	"github.com/conn-castle/updated/internal/config"
	"github.com/conn-castle/updated/internal/deltasync"
	"github.com/conn-castle/updated/internal/manifest"
	"github.com/conn-castle/updated/internal/messages"
	"github.com/conn-castle/updated/internal/observability"
	"github.com/conn-castle/updated/internal/params"
	"github.com/conn-castle/updated/internal/staging"
	"github.com/conn-castle/updated/internal/status"
	"github.com/conn-castle/updated/internal/updater"
)

var initObservability = observability.Init

// app is the fully wired updater for one process.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	tracer       trace.Tracer
	shutdown     func(context.Context) error
	registry     *prometheus.Registry
	orchestrator *updater.Orchestrator
}

// newApp builds logging, tracing, metrics and the orchestrator from cfg.
func newApp(ctx context.Context, cfg *config.Config, logOutput io.Writer) (*app, error) {
	level, err := observability.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	providers, err := initObservability(ctx, observability.Config{
		ServiceName:    messages.RootUse,
		ServiceVersion: Version,
		LogLevel:       level,
		LogJSON:        cfg.Log.JSONLogs(),
		LogOutput:      logOutput,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		logger:   providers.Logger,
		tracer:   providers.Tracer,
		shutdown: providers.Shutdown,
		registry: prometheus.NewRegistry(),
	}
	if err := a.wire(); err != nil {
		_ = a.shutdown(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := status.NewMetricsPublisher(a.registry)
	if err != nil {
		return err
	}
	fetcher, err := newFetcher(a.cfg)
	if err != nil {
		return err
	}
	stager, err := staging.NewManager(a.cfg.Staging.Root, a.logger)
	if err != nil {
		return err
	}
	gateway, err := deltasync.New(deltasync.Config{
		Tool:    a.cfg.DeltaSync.Tool,
		Args:    a.cfg.DeltaSync.Args,
		WorkDir: stager.Area().WorkDir,
		EnvFile: a.cfg.DeltaSync.EnvFile,
	}, nil)
	if err != nil {
		return err
	}
	store, err := params.NewStore(a.cfg.Updater.ParamsDir)
	if err != nil {
		return err
	}
	var firmware updater.Firmware
	if len(a.cfg.Updater.FirmwareCommand) > 0 {
		firmware = updater.CommandFirmware{Argv: a.cfg.Updater.FirmwareCommand}
	}

	a.orchestrator, err = updater.New(updater.Deps{
		Fetcher:   fetcher,
		Inspector: basestate.NewInspector(basestate.RealSystem{}),
		DeltaSync: gateway,
		Staging:   stager,
		Params:    store,
		Publisher: status.Fanout{status.NewParamsPublisher(store), metrics},
		Firmware:  firmware,
		Logger:    a.logger,
		Tracer:    a.tracer,
	}, updater.Options{
		InstallRoot:    a.cfg.Updater.InstallRoot,
		ManifestPath:   a.cfg.Remote.ManifestPath,
		DefaultChannel: a.cfg.Updater.DefaultChannel,
		Interval:       a.cfg.Updater.PollInterval.Duration,
	})
	return err
}

func newFetcher(cfg *config.Config) (*manifest.Fetcher, error) {
	return manifest.NewFetcher(cfg.Remote.APIHost,
		manifest.WithChannelsRoot(cfg.Remote.ChannelsRoot),
		manifest.WithTimeout(cfg.Remote.Timeout.Duration),
	)
}
