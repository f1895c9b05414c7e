// Package metrics exposes ledger counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
)

const namespace = "loyalty"

// Metrics groups every collector of the service on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	durations     *prometheus.HistogramVec
	operations    *prometheus.CounterVec
	points        *prometheus.CounterVec
	retries       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	expired       prometheus.Counter
}

// New registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests segmented by route, method and status.",
		}, []string{"route", "method", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger operations segmented by operation and outcome code.",
		}, []string{"operation", "outcome"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_total",
			Help:      "Points moved through the ledger segmented by movement kind.",
		}, []string{"kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Retries caused by concurrency conflicts.",
		}, []string{"operation"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "events_total",
			Help:      "Notification events segmented by outcome.",
		}, []string{"outcome"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_expired_total",
			Help:      "Redemptions moved to expired by the sweeper.",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.durations, m.operations, m.points, m.retries, m.notifications, m.expired,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.durations.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Operation counts one facade call; the outcome is "ok" or the domain error code.
func (m *Metrics) Operation(name string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = domainErrors.Code(err)
	}
	m.operations.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) Points(kind string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.points.WithLabelValues(kind).Add(float64(amount))
}

func (m *Metrics) Retry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

// Notification counts a notification outcome: sent, failed or dropped.
func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Expired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}
