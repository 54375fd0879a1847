package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "pillbox"

var labels = []string{"service", "operation"}

// Metrics holds the fixture counters.
type Metrics struct {
	recorded *prometheus.CounterVec
	replayed *prometheus.CounterVec
	missed   *prometheus.CounterVec
	wrapped  *prometheus.CounterVec
	bytes    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is handy in tests that read values directly.
// When reg already holds pillbox collectors, New shares them, so several
// controllers can report into one registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		recorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fixtures",
			Name:      "recorded_total",
			Help:      "Responses written to the fixture store.",
		}, labels),
		replayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fixtures",
			Name:      "replayed_total",
			Help:      "Responses served from the fixture store in playback.",
		}, labels),
		missed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fixtures",
			Name:      "missed_total",
			Help:      "Playback lookups with no stored fixture.",
		}, labels),
		wrapped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fixtures",
			Name:      "wrapped_total",
			Help:      "Playback sequences that wrapped back to the oldest fixture.",
		}, labels),
		bytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "fixture_bytes",
			Help:      "Encoded size of written fixtures.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}, labels),
	}
	if reg != nil {
		m.recorded = register(reg, m.recorded)
		m.replayed = register(reg, m.replayed)
		m.missed = register(reg, m.missed)
		m.wrapped = register(reg, m.wrapped)
		m.bytes = register(reg, m.bytes)
	}
	return m
}

// register adds c to reg, or returns the equal collector reg already has.
// Any other registration error is a programming error and panics, as
// MustRegister does.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}

// Recorded counts a written fixture of size bytes.
func (m *Metrics) Recorded(service, operation string, size int) {
	if m == nil {
		return
	}
	m.recorded.WithLabelValues(service, operation).Inc()
	m.bytes.WithLabelValues(service, operation).Observe(float64(size))
}

// Replayed counts a fixture served in playback.
func (m *Metrics) Replayed(service, operation string) {
	if m == nil {
		return
	}
	m.replayed.WithLabelValues(service, operation).Inc()
}

// Missed counts a playback lookup that found nothing.
func (m *Metrics) Missed(service, operation string) {
	if m == nil {
		return
	}
	m.missed.WithLabelValues(service, operation).Inc()
}

// Wrapped counts a sequence restarting from its oldest fixture.
func (m *Metrics) Wrapped(service, operation string) {
	if m == nil {
		return
	}
	m.wrapped.WithLabelValues(service, operation).Inc()
}
