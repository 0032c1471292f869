// Package metrics exposes prometheus collectors for contract traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. Each App owns its own registry so tests can
// build several without duplicate registration panics.
type Metrics struct {
	Registry         *prometheus.Registry
	writes           *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	confirmations    *prometheus.CounterVec
	receiptWait      *prometheus.HistogramVec
	reads            *prometheus.CounterVec
	requestCounter   *prometheus.CounterVec
	requestDurations *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordlechain",
			Subsystem: "contract",
			Name:      "writes_total",
			Help:      "Contract write calls by method and outcome",
		}, []string{"method", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordlechain",
			Subsystem: "contract",
			Name:      "preflight_rejections_total",
			Help:      "Submissions refused before any contract call",
		}, []string{"reason"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordlechain",
			Subsystem: "contract",
			Name:      "receipts_total",
			Help:      "Transaction receipts observed by kind and status",
		}, []string{"kind", "status"}),
		receiptWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wordlechain",
			Subsystem: "contract",
			Name:      "receipt_wait_seconds",
			Help:      "Time from write to receipt",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 80, 160, 320},
		}, []string{"kind"}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordlechain",
			Subsystem: "contract",
			Name:      "reads_total",
			Help:      "Contract reads by source",
		}, []string{"method", "source"}),
		requestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordlechain",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "path", "status"}),
		requestDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wordlechain",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "path"}),
	}
	m.Registry.MustRegister(m.writes, m.rejections, m.confirmations, m.receiptWait,
		m.reads, m.requestCounter, m.requestDurations)
	return m
}

func (m *Metrics) Write(method, outcome string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) Receipt(kind, status string, waited time.Duration) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(kind, status).Inc()
	m.receiptWait.WithLabelValues(kind).Observe(waited.Seconds())
}

// Read counts a contract read; source is "cache" or "chain".
func (m *Metrics) Read(method, source string) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(method, source).Inc()
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestCounter.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDurations.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
