package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"
)

// MetricsConfig configures the OTLP metric exporter
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
	Interval time.Duration
}

// InitMetrics installs a global meter provider. When export is enabled
// measurements are pushed over OTLP/HTTP on a fixed interval; otherwise they
// are aggregated in process behind a manual reader. The returned function
// flushes and shuts the provider down.
func InitMetrics(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*sdkmetric.MeterProvider, func(context.Context) error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(ServiceName),
	)

	reader := sdkmetric.Reader(sdkmetric.NewManualReader())
	if cfg.Enabled {
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4318"
		}
		interval := cfg.Interval
		if interval <= 0 {
			interval = 30 * time.Second
		}

		exporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			logger.Warn("failed to create OTLP metric exporter, metrics kept in process", zap.Error(err))
		} else {
			reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
			logger.Info("metrics exporter initialized",
				zap.String("endpoint", endpoint),
				zap.Duration("interval", interval))
		}
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return mp, mp.Shutdown
}

// Metrics records pipeline measurements.
type Metrics interface {
	RecordDecision(ctx context.Context, mode string)
	RecordLatency(ctx context.Context, ms float64, outcome string)
	RecordAuditFailure(ctx context.Context, sink string)
}

type otelMetrics struct {
	decisions     metric.Int64Counter
	latency       metric.Float64Histogram
	auditFailures metric.Int64Counter
}

// NewMetrics creates instruments on provider, or on the global meter
// provider when provider is nil.
func NewMetrics(provider metric.MeterProvider) (Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(ServiceName)

	decisions, err := meter.Int64Counter("gate.decisions",
		metric.WithDescription("Answer gate outcomes by decision mode"))
	if err != nil {
		return nil, fmt.Errorf("failed to create decisions counter: %w", err)
	}

	latency, err := meter.Float64Histogram("query.duration",
		metric.WithDescription("End-to-end query latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}

	auditFailures, err := meter.Int64Counter("audit.write_failures",
		metric.WithDescription("Audit records that could not be written"))
	if err != nil {
		return nil, fmt.Errorf("failed to create audit failure counter: %w", err)
	}

	return &otelMetrics{
		decisions:     decisions,
		latency:       latency,
		auditFailures: auditFailures,
	}, nil
}

func (m *otelMetrics) RecordDecision(ctx context.Context, mode string) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

func (m *otelMetrics) RecordLatency(ctx context.Context, ms float64, outcome string) {
	m.latency.Record(ctx, ms, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *otelMetrics) RecordAuditFailure(ctx context.Context, sink string) {
	m.auditFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) RecordDecision(context.Context, string)         {}
func (nopMetrics) RecordLatency(context.Context, float64, string) {}
func (nopMetrics) RecordAuditFailure(context.Context, string)     {}
