package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// MeterName names the meter used for ledger instruments
const MeterName = "reseller-backend/ledger"

// MetricsConfig holds meter provider configuration
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration
	ServiceName       string
	ServiceVersion    string
	Insecure          bool
}

// MeterProvider owns the SDK meter provider. Disabled, it hands out meters
// from the global no-op provider.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
}

// NewMeterProvider creates a provider that pushes to an OTLP/gRPC collector
// on a fixed interval and installs it globally.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger}
	if !cfg.Enabled {
		logger.Info("metrics disabled")
		return mp, nil
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = time.Minute
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("metrics enabled",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", interval),
	)
	return mp, nil
}

// Meter returns the ledger meter
func (mp *MeterProvider) Meter() metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(MeterName)
	}
	return mp.provider.Meter(MeterName)
}

// Shutdown flushes pending measurements and stops the exporter
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mp.provider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	mp.logger.Info("meter provider shut down")
	return nil
}

// LedgerMetrics records stock movements. A nil *LedgerMetrics records
// nothing, so services can run without one.
type LedgerMetrics struct {
	transitions   metric.Int64Counter
	unitsMoved    metric.Int64Counter
	discrepancies metric.Int64Counter
	sweepDuration metric.Float64Histogram
	sweepShort    metric.Int64Gauge
}

// NewLedgerMetrics registers the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	m := &LedgerMetrics{}
	var err error
	if m.transitions, err = meter.Int64Counter("ledger.transitions",
		metric.WithDescription("Applied fulfillment transitions by outcome"),
		metric.WithUnit("{transition}")); err != nil {
		return nil, fmt.Errorf("failed to create ledger.transitions: %w", err)
	}
	if m.unitsMoved, err = meter.Int64Counter("ledger.units_moved",
		metric.WithDescription("Units consumed from or restored to lots"),
		metric.WithUnit("{unit}")); err != nil {
		return nil, fmt.Errorf("failed to create ledger.units_moved: %w", err)
	}
	if m.discrepancies, err = meter.Int64Counter("ledger.discrepancy_units",
		metric.WithDescription("Units left unbacked by forced transitions"),
		metric.WithUnit("{unit}")); err != nil {
		return nil, fmt.Errorf("failed to create ledger.discrepancy_units: %w", err)
	}
	if m.sweepDuration, err = meter.Float64Histogram("ledger.reconcile.duration",
		metric.WithDescription("Duration of reconciliation sweeps"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30)); err != nil {
		return nil, fmt.Errorf("failed to create ledger.reconcile.duration: %w", err)
	}
	if m.sweepShort, err = meter.Int64Gauge("ledger.reconcile.short_units",
		metric.WithDescription("Delivered units without lot backing after the last sweep"),
		metric.WithUnit("{unit}")); err != nil {
		return nil, fmt.Errorf("failed to create ledger.reconcile.short_units: %w", err)
	}
	return m, nil
}

// RecordTransition counts one applied transition. discrepancy is the
// shortage of a forced delivery or the unreverted units of a forced release.
func (m *LedgerMetrics) RecordTransition(ctx context.Context, transition, outcome string, moved, discrepancy int) {
	if m == nil {
		return
	}
	kind := attribute.String("transition", transition)
	m.transitions.Add(ctx, 1, metric.WithAttributes(kind, attribute.String("outcome", outcome)))
	if moved > 0 {
		m.unitsMoved.Add(ctx, int64(moved), metric.WithAttributes(kind))
	}
	if discrepancy > 0 {
		m.discrepancies.Add(ctx, int64(discrepancy), metric.WithAttributes(kind))
	}
}

// RecordReconciliation records a finished sweep
func (m *LedgerMetrics) RecordReconciliation(ctx context.Context, elapsed time.Duration, shortUnits int) {
	if m == nil {
		return
	}
	m.sweepDuration.Record(ctx, elapsed.Seconds())
	m.sweepShort.Record(ctx, int64(shortUnits))
}
