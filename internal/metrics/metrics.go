// Package metrics exposes Prometheus instrumentation for the HTTP surface,
// submissions and the question bank cache.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	submissions       *prometheus.CounterVec
	bands             *prometheus.CounterVec
	closeness         prometheus.Histogram
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec
}

// New builds the collectors on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "design_test_submissions_total",
			Help: "Submissions by outcome.",
		}, []string{"outcome"}),
		bands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "design_test_attempts_by_band_total",
			Help: "Recorded attempts by band.",
		}, []string{"band"}),
		closeness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "design_test_overall_closeness",
			Help:    "Overall closeness of recorded attempts.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits observed.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses observed.",
		}, []string{"cache"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "design_test_events_published_total",
			Help: "Attempt events handed to Kafka by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.submissions,
		m.bands,
		m.closeness,
		m.cacheHits,
		m.cacheMisses,
		m.eventsPublished,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency by matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// AttemptRecorded observes a newly stored attempt.
func (m *Metrics) AttemptRecorded(band string, overall float64) {
	if m == nil {
		return
	}
	m.bands.WithLabelValues(band).Inc()
	m.closeness.Observe(overall)
}

func (m *Metrics) CacheHit(name string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(name).Inc()
}

func (m *Metrics) CacheMiss(name string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(name).Inc()
}

func (m *Metrics) EventPublished(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "fail"
	}
	m.eventsPublished.WithLabelValues(result).Inc()
}
