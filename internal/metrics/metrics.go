package metrics

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookingcrm/backend/internal/domain"
)

const namespace = "bookingcrm"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	checks        *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	conflicts     *prometheus.CounterVec
	writes        *prometheus.CounterVec
}

func New(serviceName string) *Metrics {
	constLabels := prometheus.Labels{"service": serviceName}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "conflicts",
			Name:        "checks_total",
			Help:        "Conflict checks by resource kind and outcome.",
			ConstLabels: constLabels,
		}, []string{"kind", "outcome"}),
		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "conflicts",
			Name:        "check_duration_seconds",
			Help:        "Conflict check latency, store reads included.",
			ConstLabels: constLabels,
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"kind"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "conflicts",
			Name:        "found_total",
			Help:        "Conflicts reported to callers.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "bookings",
			Name:        "writes_total",
			Help:        "Guarded booking writes by operation and result.",
			ConstLabels: constLabels,
		}, []string{"op", "result"}),
	}

	m.registry.MustRegister(
		m.checks,
		m.checkDuration,
		m.conflicts,
		m.writes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveCheck(kind domain.ResourceKind, outcome string, conflicts int, elapsed time.Duration) {
	k := kindLabel(kind)
	m.checks.WithLabelValues(k, outcome).Inc()
	m.checkDuration.WithLabelValues(k).Observe(elapsed.Seconds())
	if conflicts > 0 {
		m.conflicts.WithLabelValues(k).Add(float64(conflicts))
	}
}

func (m *Metrics) ObserveWrite(op, result string) {
	m.writes.WithLabelValues(op, result).Inc()
}

// RegisterDB exposes database/sql pool stats of the named database.
func (m *Metrics) RegisterDB(name string, db *sql.DB) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, name))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func kindLabel(kind domain.ResourceKind) string {
	if kind == "" {
		return "none"
	}
	return string(kind)
}
