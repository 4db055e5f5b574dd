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

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpInflight prometheus.Gauge

	StoriesCreated prometheus.Counter
	FlowersToggled prometheus.Counter
	LoginFailures  prometheus.Counter
	FeedClients    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyline_http_requests_total",
				Help: "HTTP requests by method, route and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storyline_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storyline_http_requests_inflight",
			Help: "Requests currently being served.",
		}),
		StoriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyline_stories_created_total",
			Help: "Stories accepted.",
		}),
		FlowersToggled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyline_flowers_toggled_total",
			Help: "Flower toggles.",
		}),
		LoginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyline_login_failures_total",
			Help: "Logins rejected for bad credentials.",
		}),
		FeedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storyline_feed_clients",
			Help: "Open live feed connections.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpLatency,
		m.httpInflight,
		m.StoriesCreated,
		m.FlowersToggled,
		m.LoginFailures,
		m.FeedClients,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency. The path label is the
// registered route so ids in URLs do not explode cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.httpInflight.Inc()
		defer m.httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpLatency.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
