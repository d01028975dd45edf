// Package middleware contains the shared Gin middleware for the HTTP layer.
//
// This file exposes Prometheus instrumentation. HTTP collectors are labeled
// with method, registered route path, and status so cardinality stays
// bounded; raw URLs are only used when no route matched. Guard collectors
// count write-protection outcomes so a dashboard can watch how often the
// throttle, uniqueness, and dedup gates fire.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Status is omitted from the latency histogram to keep its cardinality
	// lower.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	guardRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_rejections_total",
			Help: "Write submissions rejected by a guard gate.",
		},
		[]string{"gate"},
	)

	sessionExtensions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_extensions_total",
			Help: "Session expiry extensions granted on qualifying activity.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, guardRejections, sessionExtensions)
}

// ObserveGuardRejection counts one rejection by the named gate
// ("throttle", "uniqueness", "dedupe").
func ObserveGuardRejection(gate string) {
	guardRejections.WithLabelValues(gate).Inc()
}

// ObserveSessionExtension counts one sliding-expiry extension.
func ObserveSessionExtension() {
	sessionExtensions.Inc()
}

// Metrics returns a Gin middleware that instruments requests with
// Prometheus. Mount the scrape endpoint separately:
//
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
