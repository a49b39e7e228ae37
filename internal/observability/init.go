// Package observability wires structured logging and OpenTelemetry tracing for
// the updater daemon.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// TracerName names the tracer used by the updater packages.
const TracerName = "github.com/conn-castle/updated"

const defaultShutdownTimeout = 5 * time.Second

// Config selects log output and the trace exporter.
type Config struct {
	ServiceName    string
	ServiceVersion string
	LogLevel       slog.Level
	LogJSON        bool
	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer
	// OTLPEndpoint enables span export over gRPC; empty means no-op tracing.
	OTLPEndpoint string
	OTLPInsecure bool
	// SampleRatio is the root sampling ratio; values <= 0 or >= 1 sample everything.
	SampleRatio     float64
	ShutdownTimeout time.Duration
}

// Providers holds the initialized observability providers.
type Providers struct {
	Tracer trace.Tracer
	Logger *slog.Logger
	// Shutdown flushes pending spans. Must be called before process exit.
	Shutdown func(ctx context.Context) error
}

// ParseLevel maps a config level name (debug, info, warn, error) to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", name, err)
	}
	return level, nil
}

// Init builds the logger and tracer provider and installs them globally.
func Init(ctx context.Context, cfg Config) (Providers, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "updated"
	}
	tp, shutdownTracer, err := buildTracerProvider(ctx, cfg)
	if err != nil {
		return Providers{}, fmt.Errorf("build tracer provider: %w", err)
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger := NewLogger(cfg)

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdown := func(shutdownCtx context.Context) error {
		deadlineCtx, cancel := context.WithTimeout(shutdownCtx, timeout)
		defer cancel()
		return shutdownTracer(deadlineCtx)
	}

	return Providers{
		Tracer:   tp.Tracer(TracerName),
		Logger:   logger,
		Shutdown: shutdown,
	}, nil
}

// NewLogger returns the daemon logger for cfg without touching tracing.
func NewLogger(cfg Config) *slog.Logger {
	out := cfg.LogOutput
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var inner slog.Handler
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(out, opts)
	} else {
		inner = slog.NewTextHandler(out, opts)
	}
	return slog.New(NewTracingHandler(inner, cfg.ServiceName, cfg.ServiceVersion))
}

type shutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

func buildTracerProvider(ctx context.Context, cfg Config) (trace.TracerProvider, shutdownFunc, error) {
	if cfg.OTLPEndpoint == "" {
		return nooptrace.NewTracerProvider(), noopShutdown, nil
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(selectSampler(cfg.SampleRatio)),
	)
	return tp, func(ctx context.Context) error {
		return errors.Join(tp.ForceFlush(ctx), tp.Shutdown(ctx))
	}, nil
}

func buildResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceName(cfg.ServiceName))}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.ServiceVersion)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	return res, nil
}

func selectSampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
