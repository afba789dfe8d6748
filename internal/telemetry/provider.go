package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/vaultsandbox/signbroker-go"

// Config configures metric export.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint is a host:port for OTLP over gRPC. Empty disables export;
	// instruments still work but nothing leaves the process.
	OTLPEndpoint string
	Insecure     bool
	Interval     time.Duration
}

// Provider owns the meter provider and the Authority's instruments.
type Provider struct {
	mp      *sdkmetric.MeterProvider
	metrics *Metrics
	logger  *slog.Logger
}

// Setup builds a Provider from cfg. Extra readers are attached as well,
// which tests use to collect in-process.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger, readers ...sdkmetric.Reader) (*Provider, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "telemetry")
	if cfg.ServiceName == "" {
		cfg.ServiceName = "signbrokerd"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	if cfg.OTLPEndpoint != "" {
		expOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			expOpts = append(expOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, expOpts...)
		if err != nil {
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(cfg.Interval),
		)))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	metrics, err := NewMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create instruments: %w", err), mp.Shutdown(ctx))
	}

	logger.InfoContext(ctx, "telemetry initialized",
		"service", cfg.ServiceName,
		"endpoint", cfg.OTLPEndpoint,
		"export", cfg.OTLPEndpoint != "",
	)
	return &Provider{mp: mp, metrics: metrics, logger: logger}, nil
}

// Metrics returns the instruments for signbroker.WithMetrics.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Shutdown flushes and stops export.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.mp.Shutdown(ctx); err != nil {
		p.logger.ErrorContext(ctx, "shutdown meter provider", "error", err)
		return err
	}
	return nil
}
