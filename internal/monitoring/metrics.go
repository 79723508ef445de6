// Package monitoring - metrics.go provides operational counters.
//
// DESIGN: Two views over the same events:
//   - In-memory atomic counters for the JSON /stats endpoint
//   - Prometheus collectors on a per-collector registry for /metrics
//
// A private registry (instead of the global default) lets several gateways
// coexist in one process, which tests rely on.
package monitoring

import (
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "erp_gateway"

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	startedAt time.Time
	registry  *prometheus.Registry

	// Request counters
	requests  atomic.Int64
	successes atomic.Int64

	// Cache counters
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	cacheBypasses atomic.Int64

	// Failure counters by taxonomy
	authFailures    atomic.Int64
	upstreamErrors  atomic.Int64
	networkErrors   atomic.Int64
	malformedErrors atomic.Int64

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamDuration prometheus.Histogram
	cacheLookups     *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
}

// NewMetricsCollector creates a new metrics collector with its own registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &MetricsCollector{
		startedAt: time.Now(),
		registry:  reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Proxied ERP requests by method, status code and cache status",
		}, []string{"method", "code", "cache"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end latency of proxied ERP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		upstreamDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "upstream_duration_seconds",
			Help:      "Latency of outbound calls to the legacy ERP server",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Cache layer outcomes (HIT, MISS, BYPASS)",
		}, []string{"result"}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Failed ERP requests by error kind",
		}, []string{"kind"}),
	}
}

// RecordRequest records a completed proxied request.
func (mc *MetricsCollector) RecordRequest(method string, status int, cache CacheStatus, d time.Duration) {
	mc.requests.Add(1)
	if status < 400 {
		mc.successes.Add(1)
	}
	mc.requestsTotal.WithLabelValues(method, strconv.Itoa(status), string(cache)).Inc()
	mc.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordCache records a cache layer outcome.
func (mc *MetricsCollector) RecordCache(status CacheStatus) {
	switch status {
	case CacheHit:
		mc.cacheHits.Add(1)
	case CacheMiss:
		mc.cacheMisses.Add(1)
	case CacheBypass:
		mc.cacheBypasses.Add(1)
	default:
		return
	}
	mc.cacheLookups.WithLabelValues(string(status)).Inc()
}

// RecordError records a failure by its taxonomy kind.
func (mc *MetricsCollector) RecordError(kind string) {
	switch kind {
	case ErrKindAuthenticationMissing:
		mc.authFailures.Add(1)
	case ErrKindUpstreamFailure:
		mc.upstreamErrors.Add(1)
	case ErrKindNetworkFailure:
		mc.networkErrors.Add(1)
	case ErrKindMalformedResponse:
		mc.malformedErrors.Add(1)
	}
	mc.errorsTotal.WithLabelValues(kind).Inc()
}

// ObserveUpstream records the latency of one legacy call.
func (mc *MetricsCollector) ObserveUpstream(d time.Duration) {
	mc.upstreamDuration.Observe(d.Seconds())
}

// RegisterGauge exposes fn as a gauge, e.g. live session count.
func (mc *MetricsCollector) RegisterGauge(name, help string, fn func() float64) {
	mc.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the Prometheus exposition format.
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{Registry: mc.registry})
}

// Registry returns the underlying Prometheus registry.
func (mc *MetricsCollector) Registry() *prometheus.Registry { return mc.registry }

// FullStats returns all metrics in a structured format for the /stats endpoint.
func (mc *MetricsCollector) FullStats() StatsResponse {
	uptime := time.Since(mc.startedAt)
	requests := mc.requests.Load()
	successes := mc.successes.Load()
	hits := mc.cacheHits.Load()
	misses := mc.cacheMisses.Load()

	var cacheHitRate float64
	if total := hits + misses; total > 0 {
		cacheHitRate = float64(hits) / float64(total) * 100
	}

	return StatsResponse{
		Uptime:        formatDuration(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		StartedAt:     mc.startedAt.Format(time.RFC3339),
		Requests: RequestStats{
			Total:      requests,
			Successful: successes,
			Failed:     requests - successes,
		},
		Cache: CacheStats{
			Hits:     hits,
			Misses:   misses,
			Bypasses: mc.cacheBypasses.Load(),
			HitRate:  cacheHitRate,
		},
		Errors: ErrorStats{
			AuthenticationMissing: mc.authFailures.Load(),
			UpstreamFailure:       mc.upstreamErrors.Load(),
			NetworkFailure:        mc.networkErrors.Load(),
			MalformedResponse:     mc.malformedErrors.Load(),
		},
	}
}

// StatsResponse is the structured response for the /stats endpoint.
type StatsResponse struct {
	Uptime        string       `json:"uptime"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartedAt     string       `json:"started_at"`
	Requests      RequestStats `json:"requests"`
	Cache         CacheStats   `json:"cache"`
	Errors        ErrorStats   `json:"errors"`
}

// RequestStats holds request count metrics.
type RequestStats struct {
	Total      int64 `json:"total"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
}

// CacheStats holds cache layer metrics.
type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Bypasses int64   `json:"bypasses"`
	HitRate  float64 `json:"hit_rate"`
}

// ErrorStats counts failures per error kind.
type ErrorStats struct {
	AuthenticationMissing int64 `json:"authentication_missing"`
	UpstreamFailure       int64 `json:"upstream_failure"`
	NetworkFailure        int64 `json:"network_failure"`
	MalformedResponse     int64 `json:"malformed_response"`
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
