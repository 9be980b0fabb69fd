package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a process-local prometheus registry plus the recent
// request-timing buffer. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry       *prometheus.Registry
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	jobRows        *prometheus.CounterVec
	archiveFlushed prometheus.Counter
	archiveDropped prometheus.Counter

	Timings *TimingBuffer
}

func NewMetrics(timingCapacity int) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insightflow_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "insightflow_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insightflow_cache_lookups_total",
			Help: "Metrics cache lookups by key and result.",
		}, []string{"key", "result"}),
		jobRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insightflow_job_rows_affected_total",
			Help: "Rows changed by batch correction jobs.",
		}, []string{"job"}),
		archiveFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insightflow_archive_flushed_total",
			Help: "Records written to the archive sink.",
		}),
		archiveDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insightflow_archive_dropped_total",
			Help: "Records dropped because the archive queue was full or the sink failed.",
		}),
		Timings: NewTimingBuffer(timingCapacity),
	}
	reg.MustRegister(
		m.httpRequests,
		m.httpLatency,
		m.cacheLookups,
		m.jobRows,
		m.archiveFlushed,
		m.archiveDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveRequest(method, route string, status int, latency time.Duration, cacheStatus string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(latency.Seconds())
	m.Timings.Record(RequestTiming{Route: route, Latency: latency, Cache: cacheStatus})
}

func (m *Metrics) CacheLookup(key string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(key, result).Inc()
}

func (m *Metrics) JobRows(job string, n int64) {
	if m == nil {
		return
	}
	m.jobRows.WithLabelValues(job).Add(float64(n))
}

func (m *Metrics) ArchiveFlushed(n int) {
	if m == nil {
		return
	}
	m.archiveFlushed.Add(float64(n))
}

func (m *Metrics) ArchiveDropped(n int) {
	if m == nil {
		return
	}
	m.archiveDropped.Add(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
