package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nsmapd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nsmapd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	lookupRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nsmapd",
			Subsystem: "socketmap",
			Name:      "requests_total",
			Help:      "Socketmap lookups by map and reply status.",
		},
		[]string{"map", "status"},
	)
	lookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nsmapd",
			Subsystem: "socketmap",
			Name:      "request_duration_seconds",
			Help:      "Socketmap lookup duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"map", "status"},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nsmapd",
			Subsystem: "socketmap",
			Name:      "decode_errors_total",
			Help:      "Requests dropped before dispatch, by decode error kind.",
		},
		[]string{"kind"},
	)
	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nsmapd",
			Subsystem: "socketmap",
			Name:      "active_connections",
			Help:      "Open socketmap client connections.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			lookupRequests, lookupDuration,
			decodeErrors, activeConnections,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordLookup(mapName, status string, duration time.Duration) {
	RegisterMetrics()
	lookupRequests.WithLabelValues(mapName, status).Inc()
	lookupDuration.WithLabelValues(mapName, status).Observe(duration.Seconds())
}

func RecordDecodeError(kind string) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(kind).Inc()
}

func ConnectionOpened() {
	RegisterMetrics()
	activeConnections.Inc()
}

func ConnectionClosed() {
	RegisterMetrics()
	activeConnections.Dec()
}
