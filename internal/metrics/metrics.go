// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	// Declared as ObserverVec because MustCurryWith returns the
	// interface, not *HistogramVec.
	HTTPRequestDurationSeconds prometheus.ObserverVec = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	PushSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_sends_total",
			Help: "Push notification sends by outcome.",
		},
		[]string{"outcome"},
	)

	TasksDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_dispatched_total",
			Help: "Async tasks handed to the dispatcher, by operation.",
		},
		[]string{"operation"},
	)

	TasksHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_handled_total",
			Help: "Async tasks executed by the runner, by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	SnapshotRepairsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_repairs_total",
			Help: "Sender snapshots rewritten by consistency repair.",
		},
	)
)

// MustRegister installs every metric into the default registry, with
// the HTTP metrics curried to this service's name. Call once at
// startup, before the first request.
func MustRegister(serviceName string) {
	HTTPRequestsTotal = HTTPRequestsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	HTTPRequestDurationSeconds = HTTPRequestDurationSeconds.MustCurryWith(prometheus.Labels{"service": serviceName})

	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		PushSendsTotal,
		TasksDispatchedTotal,
		TasksHandledTotal,
		SnapshotRepairsTotal,
	)
}

// HTTP records request count and duration per route. The route
// template (not the raw URL) keeps label cardinality bounded.
func HTTP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		HTTPRequestDurationSeconds.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
