// Package metrics exposes escrow activity as Prometheus series.
package metrics

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-escrow"
)

const namespace = "escrow"

// Metrics records escrow activity. It implements escrow.ActivitySink.
type Metrics struct {
	registry    *prometheus.Registry
	created     prometheus.Counter
	transitions *prometheus.CounterVec
	sideEffects *prometheus.CounterVec
	joinDenied  prometheus.Counter
}

var _ escrow.ActivitySink = (*Metrics)(nil)

// New registers the escrow collectors on a fresh registry that also
// carries the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "created_total",
			Help:      "Escrows opened by sellers.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "transitions_total",
			Help:      "Committed status transitions segmented by source, target and action.",
		}, []string{"from", "to", "action"}),
		sideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "side_effect_failures_total",
			Help:      "Audit log and notification failures after a committed transition.",
		}, []string{"effect"}),
		joinDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "join",
			Name:      "rate_limited_total",
			Help:      "Join attempts rejected by the rate limiter.",
		}),
	}

	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.created,
		m.transitions,
		m.sideEffects,
		m.joinDenied,
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Record implements escrow.ActivitySink.
func (m *Metrics) Record(_ context.Context, event escrow.ActivityEvent) error {
	switch event.EventType {
	case escrow.ActivityEventCreated:
		m.created.Inc()
		return nil
	case escrow.ActivityEventStatusChanged, escrow.ActivityEventForceCompleted:
		m.transitions.WithLabelValues(label(string(event.FromStatus)), label(string(event.ToStatus)), label(string(event.Action))).Inc()
	default:
		return nil
	}

	if event.AuditFailed {
		m.sideEffects.WithLabelValues("audit").Inc()
	}
	if event.NotifyFailed {
		m.sideEffects.WithLabelValues("notify").Inc()
	}
	return nil
}

// Gauge publishes fn as a gauge sampled at scrape time, used for in-memory
// store sizes.
func (m *Metrics) Gauge(subsystem, name, help string, fn func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, func() float64 {
		return float64(fn())
	}))
}

// JoinLimiter counts the rejections of next.
func (m *Metrics) JoinLimiter(next escrow.JoinLimiter) escrow.JoinLimiter {
	return joinLimiter{next: next, denied: m.joinDenied}
}

type joinLimiter struct {
	next   escrow.JoinLimiter
	denied prometheus.Counter
}

func (l joinLimiter) Allow(actorID string) bool {
	if l.next.Allow(actorID) {
		return true
	}
	l.denied.Inc()
	return false
}

func label(s string) string {
	if v := strings.TrimSpace(s); v != "" {
		return v
	}
	return "none"
}
