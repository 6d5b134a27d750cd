package stock

import "github.com/reseller/backend/internal/infrastructure/telemetry"

// Option configures the engine and the reconciliation service
type Option func(*options)

type options struct {
	metrics *telemetry.LedgerMetrics
}

// WithMetrics records transitions and sweeps on m
func WithMetrics(m *telemetry.LedgerMetrics) Option {
	return func(o *options) { o.metrics = m }
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
