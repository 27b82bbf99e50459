package kindred

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors an Engine reports to.
// A nil *Metrics records nothing.
type Metrics struct {
	// Cache population
	CacheMissesTotal *prometheus.CounterVec

	// Conversion metrics
	ConversionsTotal   *prometheus.CounterVec
	ConversionDuration *prometheus.HistogramVec

	// Listener metrics
	HookInvocationsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.CacheMissesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kindred_cache_misses_total",
			Help: "Total number of cache entries built, by cache",
		},
		[]string{"cache"},
	)

	m.ConversionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kindred_conversions_total",
			Help: "Total number of entity conversions",
		},
		[]string{"operation", "status"},
	)

	m.ConversionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kindred_conversion_duration_seconds",
			Help:    "Duration of entity conversions in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
		[]string{"operation"},
	)

	m.HookInvocationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kindred_hook_invocations_total",
			Help: "Total number of lifecycle hook invocations",
		},
		[]string{"event", "scope"},
	)

	return m
}

func (m *Metrics) cacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordConversion records one encode or decode.
func (m *Metrics) RecordConversion(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ConversionsTotal.WithLabelValues(operation, status).Inc()
	m.ConversionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) hookInvoked(ev Event, scope Scope) {
	if m == nil {
		return
	}
	m.HookInvocationsTotal.WithLabelValues(ev.String(), scope.String()).Inc()
}
