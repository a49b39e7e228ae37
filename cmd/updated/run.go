package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/conn-castle/updated/internal/messages"
	"github.com/conn-castle/updated/internal/staging"
	"github.com/conn-castle/updated/internal/updater"
)

// signalCheck and signalDownload are the user-request signals understood by
// a running updater.
const (
	signalCheck    = unix.SIGHUP
	signalDownload = unix.SIGUSR1
)

const metricsShutdownTimeout = 5 * time.Second

var (
	geteuid       = os.Geteuid
	acquireLock   = staging.AcquireInstanceLock
	notifySignals = signal.Notify
	stopSignals   = signal.Stop
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.RunUse,
		Short: messages.RunShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, unix.SIGTERM)
			defer stop()
			return withApp(ctx, cmd, opts, func(ctx context.Context, a *app) error {
				stopForwarding := forwardSignals(ctx, a.logger, a.orchestrator.Waker())
				defer stopForwarding()
				if addr := a.cfg.Telemetry.MetricsListen; addr != "" {
					stopMetrics, err := serveMetrics(ctx, a.logger, addr, a.registry)
					if err != nil {
						return err
					}
					defer stopMetrics()
				}
				return a.orchestrator.Run(ctx)
			})
		},
	}
}

// withApp holds the instance lock and a wired app for the duration of fn.
func withApp(ctx context.Context, cmd *cobra.Command, opts *globalOptions, fn func(context.Context, *app) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if geteuid() != 0 {
		return errors.New(messages.RunNotPrivileged)
	}
	lock, err := acquireLock(cfg.Updater.LockFile)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = a.shutdown(context.WithoutCancel(ctx)) }()
	return fn(ctx, a)
}

// requestForSignal maps a user-request signal to the request it carries.
func requestForSignal(sig os.Signal) updater.Request {
	switch sig {
	case signalCheck:
		return updater.RequestCheck
	case signalDownload:
		return updater.RequestDownload
	default:
		return updater.RequestNone
	}
}

// forwardSignals turns user-request signals into waker requests until the
// returned stop function is called.
func forwardSignals(ctx context.Context, logger *slog.Logger, waker *updater.Waker) func() {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 1)
	notifySignals(ch, signalCheck, signalDownload)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				req := requestForSignal(sig)
				logger.InfoContext(ctx, "user request received", "signal", sig.String(), "request", req.String())
				waker.Request(req)
			}
		}
	}()
	return func() {
		stopSignals(ch)
		cancel()
		<-done
	}
}

// serveMetrics exposes reg on addr at /metrics until the returned stop
// function is called.
func serveMetrics(ctx context.Context, logger *slog.Logger, addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: metricsShutdownTimeout}

	logger.InfoContext(ctx, "serving metrics", "addr", ln.Addr().String())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "metrics listener stopped", "addr", addr, "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-done
	}, nil
}

