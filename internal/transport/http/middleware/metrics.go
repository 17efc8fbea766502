package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetricsOptions configures the request instrumentation collectors.
type HTTPMetricsOptions struct {
	Registerer prometheus.Registerer
	Buckets    []float64
}

// HTTPMetrics instruments lockout API traffic by method, route, and status.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewHTTPMetrics registers the collectors under the lockout namespace.
func NewHTTPMetrics(opts HTTPMetricsOptions) *HTTPMetrics {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	factory := promauto.With(reg)
	labels := []string{"method", "route", "status"}

	return &HTTPMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lockout",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Lockout API requests partitioned by method, route, and status code.",
		}, labels),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lockout",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Lockout API request latency in seconds.",
			Buckets:   buckets,
		}, labels),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lockout",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Lockout API requests currently being served.",
		}),
	}
}

// Requests exposes the request counter, primarily for tests.
func (m *HTTPMetrics) Requests() *prometheus.CounterVec { return m.requests }

// InFlight exposes the in-flight gauge, primarily for tests.
func (m *HTTPMetrics) InFlight() prometheus.Gauge { return m.inFlight }

// Handler returns the Gin middleware recording the collectors. A nil receiver
// yields a pass-through so instrumentation stays optional in tests.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		m.requests.With(labels).Inc()
		m.duration.With(labels).Observe(time.Since(start).Seconds())
	}
}
