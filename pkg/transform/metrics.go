package transform

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the Prometheus collectors of a Transformer.
// A nil *metrics records nothing.
type metrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// newMetrics registers the collectors on reg. Collectors already registered
// by another Transformer on the same registry are shared.
func newMetrics(reg prometheus.Registerer) *metrics {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "veneer_transform_hook_calls_total",
		Help: "Total number of transform hook invocations",
	}, []string{"hook", "op", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veneer_transform_hook_duration_seconds",
		Help:    "Duration of transform hook invocations",
		Buckets: prometheus.DefBuckets,
	}, []string{"hook", "op"})

	return &metrics{
		calls:   register(reg, calls),
		latency: register(reg, latency),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) observe(hook string, op Op, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(hook, string(op), outcome).Inc()
	m.latency.WithLabelValues(hook, string(op)).Observe(d.Seconds())
}
