// Package metrics defines the recording surface for request counts,
// active connections, worker pool depth, and rate-limit rejections,
// backed by github.com/prometheus/client_golang collectors so the values
// are scrapeable rather than plain in-memory counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the recording surface the accept loop and the per-request
// handler built in cmd/server push into.
type Metrics interface {
	RequestCompleted(method string, status int, duration time.Duration, responseBytes int64)
	ConnectionOpened()
	ConnectionClosed()
	WorkerQueueDepth(depth int)
	RequestRejected(reason string)
}

type promMetrics struct {
	requests      *prometheus.CounterVec
	activeConns   prometheus.Gauge
	queueDepth    prometheus.Gauge
	rejections    *prometheus.CounterVec
	duration      prometheus.Histogram
	responseBytes prometheus.Histogram
}

// New registers the server's collectors against reg and returns a
// Metrics backed by them.
func New(reg *prometheus.Registry) Metrics {
	factory := promauto.With(reg)
	return &promMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "originserver_requests_total",
			Help: "Completed requests by method and status class.",
		}, []string{"method", "status"}),
		activeConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "originserver_active_connections",
			Help: "Currently open client connections.",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "originserver_worker_queue_depth",
			Help: "Jobs currently queued for the worker pool.",
		}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "originserver_requests_rejected_total",
			Help: "Requests rejected at admission or connections shed at accept, by reason.",
		}, []string{"reason"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "originserver_request_duration_seconds",
			Help:    "Time from parsed request to serialized response.",
			Buckets: prometheus.DefBuckets,
		}),
		responseBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "originserver_response_bytes",
			Help:    "Response body sizes.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		}),
	}
}

func (m *promMetrics) RequestCompleted(method string, status int, duration time.Duration, responseBytes int64) {
	m.requests.WithLabelValues(method, statusBucket(status)).Inc()
	m.duration.Observe(duration.Seconds())
	m.responseBytes.Observe(float64(responseBytes))
}

func (m *promMetrics) ConnectionOpened() { m.activeConns.Inc() }
func (m *promMetrics) ConnectionClosed() { m.activeConns.Dec() }

func (m *promMetrics) WorkerQueueDepth(depth int) { m.queueDepth.Set(float64(depth)) }

func (m *promMetrics) RequestRejected(reason string) { m.rejections.WithLabelValues(reason).Inc() }

func statusBucket(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Handler returns the promhttp scrape endpoint for the optional metrics
// listener.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
