package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery path labels.
const (
	PathImmediate = "immediate"
	PathRetry     = "retry"
	PathCountdown = "countdown"
)

// Metrics stores Prometheus collectors used by the dispatch, sweep and countdown flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	pushesSentTotal       *prometheus.CounterVec
	pushesFailedTotal     *prometheus.CounterVec
	pushSendDuration      *prometheus.HistogramVec
	recordsSkippedTotal   *prometheus.CounterVec
	retryIncrementedTotal prometheus.Counter
	retryExhaustedTotal   prometheus.Counter
	sweepDuration         prometheus.Histogram
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pair_notify",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pair_notify",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		pushesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pair_notify",
				Name:      "pushes_sent_total",
				Help:      "Total number of pushes accepted by the transport, by delivery path.",
			},
			[]string{"path"},
		),
		pushesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pair_notify",
				Name:      "pushes_failed_total",
				Help:      "Total number of failed push attempts by delivery path and reason.",
			},
			[]string{"path", "reason"},
		),
		pushSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pair_notify",
				Name:      "push_send_duration_seconds",
				Help:      "Push transport call duration in seconds by delivery path.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"path"},
		),
		recordsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pair_notify",
				Name:      "records_skipped_total",
				Help:      "Total number of sends skipped before reaching the transport, by path and reason.",
			},
			[]string{"path", "reason"},
		),
		retryIncrementedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pair_notify",
				Name:      "retry_incremented_total",
				Help:      "Total number of sweep failures recorded against a notification's retry budget.",
			},
		),
		retryExhaustedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pair_notify",
				Name:      "retry_exhausted_total",
				Help:      "Total number of notifications that used up their retry budget.",
			},
		),
		sweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pair_notify",
				Name:      "sweep_duration_seconds",
				Help:      "Duration of one retry sweep in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.pushesSentTotal,
		m.pushesFailedTotal,
		m.pushSendDuration,
		m.recordsSkippedTotal,
		m.retryIncrementedTotal,
		m.retryExhaustedTotal,
		m.sweepDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncPushSent(path string) {
	if m == nil {
		return
	}
	m.pushesSentTotal.WithLabelValues(normalizeLabel(path)).Inc()
}

func (m *Metrics) IncPushFailed(path string, reason string) {
	if m == nil {
		return
	}
	m.pushesFailedTotal.WithLabelValues(normalizeLabel(path), normalizeLabel(reason)).Inc()
}

func (m *Metrics) ObservePushSendDuration(path string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.pushSendDuration.WithLabelValues(normalizeLabel(path)).Observe(seconds)
}

func (m *Metrics) IncRecordSkipped(path string, reason string) {
	if m == nil {
		return
	}
	m.recordsSkippedTotal.WithLabelValues(normalizeLabel(path), normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncRetryIncremented() {
	if m == nil {
		return
	}
	m.retryIncrementedTotal.Inc()
}

func (m *Metrics) IncRetryExhausted() {
	if m == nil {
		return
	}
	m.retryExhaustedTotal.Inc()
}

func (m *Metrics) ObserveSweepDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
