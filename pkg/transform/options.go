package transform

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// options holds the internal configuration of a Transformer.
type options struct {
	logger   *slog.Logger
	registry prometheus.Registerer
}

// Option defines a functional option for configuring a Transformer.
type Option func(*options)

// WithLogger sets the logger used for per-call tracing. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records hook counters and latencies on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = reg
	}
}
