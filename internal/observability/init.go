package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "synthfuzz"
	meterName  = "synthfuzz"

	defaultShutdownTimeout   = 5 * time.Second
	metricsReadHeaderTimeout = 5 * time.Second
)

// Providers holds the initialized observability collaborators: a tracer
// (used only to generate trace/span IDs for log correlation — this module
// has no remote collector to export spans to), a meter backed by a local
// Prometheus registry, and the structured logger.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// Shutdown stops the metrics HTTP server (if one was started) and
	// flushes the tracer provider.
	Shutdown func(ctx context.Context) error
}

// Init wires tracing, metrics, and logging per cfg. Unlike the teacher's
// pkg/observability.Init, which exports traces and metrics to a remote OTLP
// collector, this wires the OTel metric SDK to a local Prometheus registry
// (go.opentelemetry.io/otel/exporters/prometheus -> prometheus/client_golang)
// because the module has no remote collector in scope; see DESIGN.md.
func Init(cfg Config) (Providers, error) {
	res, err := buildResource(cfg)
	if err != nil {
		return Providers{}, err
	}

	registry := prometheus.NewRegistry()

	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registry))
	if err != nil {
		return Providers{}, fmt.Errorf("observability: create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter), sdkmetric.WithResource(res))

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	logger := buildLogger(cfg)

	var httpServer *http.Server

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		httpServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: metricsReadHeaderTimeout,
		}

		go func() {
			if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", serveErr)
			}
		}()
	}

	shutdown := func(ctx context.Context) error {
		deadline, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
		defer cancel()

		var errs []error

		if httpServer != nil {
			errs = append(errs, httpServer.Shutdown(deadline))
		}

		errs = append(errs, tp.Shutdown(deadline), mp.Shutdown(deadline))

		return errors.Join(errs...)
	}

	return Providers{
		Tracer:   tp.Tracer(tracerName),
		Meter:    mp.Meter(meterName),
		Logger:   logger,
		Shutdown: shutdown,
	}, nil
}

func buildResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}

	if cfg.Mode != "" {
		attrs = append(attrs, attribute.String("app.mode", string(cfg.Mode)))
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	return res, nil
}

func buildLogger(cfg Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var inner slog.Handler
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, handlerOpts)
	}

	return slog.New(NewTracingHandler(inner, cfg.ServiceName, cfg.Environment, cfg.Mode))
}
