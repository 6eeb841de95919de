// Package metrics exposes scan activity to Prometheus.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maxvaer/dirscan/internal/scanner"
)

var _ scanner.LifecycleObserver = (*Collector)(nil)

// Collector records probe and session metrics in its own registry.
type Collector struct {
	registry *prometheus.Registry

	probesTotal      *prometheus.CounterVec
	statusTotal      *prometheus.CounterVec
	probeDuration    *prometheus.HistogramVec
	sessionsStarted  prometheus.Counter
	sessionsFinished *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
	findingsTotal    prometheus.Counter
}

// New creates a collector. Process and Go runtime metrics are included.
func New() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dirscan_probes_total",
				Help: "Total number of probes by outcome",
			},
			[]string{"outcome"},
		),
		statusTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dirscan_probe_status_total",
				Help: "Total number of answered probes by status class",
			},
			[]string{"class"},
		),
		probeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dirscan_probe_duration_seconds",
				Help:    "Probe duration including a 405 retry",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"outcome"},
		),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dirscan_sessions_started_total",
			Help: "Total number of scan sessions started",
		}),
		sessionsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dirscan_sessions_finished_total",
				Help: "Total number of scan sessions finished by final status",
			},
			[]string{"status"},
		),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dirscan_sessions_active",
			Help: "Number of scan sessions with running workers",
		}),
		findingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dirscan_findings_total",
			Help: "Total number of discovered paths",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.probesTotal,
		c.statusTotal,
		c.probeDuration,
		c.sessionsStarted,
		c.sessionsFinished,
		c.sessionsActive,
		c.findingsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return c, nil
}

// ObserveProbe records one probe outcome.
func (c *Collector) ObserveProbe(out scanner.Outcome) {
	kind := out.Kind.String()
	c.probesTotal.WithLabelValues(kind).Inc()
	c.probeDuration.WithLabelValues(kind).Observe(out.Duration.Seconds())
	if out.StatusCode > 0 {
		c.statusTotal.WithLabelValues(statusClass(out.StatusCode)).Inc()
	}
	if out.Kind == scanner.OutcomeFound {
		c.findingsTotal.Inc()
	}
}

// SessionStarted records a new session.
func (c *Collector) SessionStarted() {
	c.sessionsStarted.Inc()
	c.sessionsActive.Inc()
}

// SessionFinished records a session reaching a terminal state.
func (c *Collector) SessionFinished(snap scanner.Snapshot) {
	c.sessionsActive.Dec()
	c.sessionsFinished.WithLabelValues(snap.Status.String()).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry exposes the underlying registry for additional collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
