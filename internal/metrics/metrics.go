// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "patient_registry"

// Collector records request, authentication, gate and record-store metrics.
type Collector struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	authAttempts *prometheus.CounterVec
	gateDecision *prometheus.CounterVec
	recordWrites *prometheus.CounterVec
}

// New creates a collector on its own registry, including Go and process collectors.
func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		authAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Total number of authentication attempts",
			},
			[]string{"method", "status"},
		),
		gateDecision: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_decisions_total",
				Help:      "Access gate outcomes",
			},
			[]string{"decision"},
		),
		recordWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "record_writes_total",
				Help:      "Patient record mutations",
			},
			[]string{"op", "status"},
		),
	}
	c.reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.authAttempts,
		c.gateDecision,
		c.recordWrites,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry for extra collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// RecordHTTPRequest records HTTP request metrics.
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordAuthAttempt counts a login by method ("password", "remember-me") and outcome.
func (c *Collector) RecordAuthAttempt(method, status string) {
	c.authAttempts.WithLabelValues(method, status).Inc()
}

// RecordGateDecision counts access gate outcomes.
func (c *Collector) RecordGateDecision(decision string) {
	c.gateDecision.WithLabelValues(decision).Inc()
}

// RecordWrite counts a save or delete and whether it succeeded.
func (c *Collector) RecordWrite(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.recordWrites.WithLabelValues(op, status).Inc()
}

// PoolStats reports connection pool occupancy.
type PoolStats func() (acquired, idle, total int32)

// RegisterPool exposes connection pool gauges sampled at scrape time.
func (c *Collector) RegisterPool(stats PoolStats) {
	gauge := func(name, help string, pick func(a, i, t int32) int32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 {
			a, i, t := stats()
			return float64(pick(a, i, t))
		})
	}
	c.reg.MustRegister(
		gauge("db_connections_acquired", "Connections currently in use", func(a, _, _ int32) int32 { return a }),
		gauge("db_connections_idle", "Idle connections", func(_, i, _ int32) int32 { return i }),
		gauge("db_connections_total", "Open connections", func(_, _, t int32) int32 { return t }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}
