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

// Metrics stores Prometheus collectors used by the API and task workers.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	tasksTotal             *prometheus.CounterVec
	tasksInflight          prometheus.Gauge
	recordsProcessedTotal  *prometheus.CounterVec
	recordProcessDuration  *prometheus.HistogramVec
	provisionAttemptsTotal *prometheus.CounterVec
	checkpointSavesTotal   prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "enroll_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "enroll_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "enroll_engine",
				Name:      "tasks_total",
				Help:      "Total number of tasks reaching each terminal outcome.",
			},
			[]string{"outcome"},
		),
		tasksInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "enroll_engine",
				Name:      "tasks_inflight",
				Help:      "Current number of tasks being processed.",
			},
		),
		recordsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "enroll_engine",
				Name:      "records_processed_total",
				Help:      "Total number of records processed grouped by outcome status.",
			},
			[]string{"status"},
		),
		recordProcessDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "enroll_engine",
				Name:      "record_process_duration_seconds",
				Help:      "Per-record pipeline duration in seconds grouped by outcome status.",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"status"},
		),
		provisionAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "enroll_engine",
				Name:      "provision_attempts_total",
				Help:      "Browser provisioning attempts grouped by strategy and result.",
			},
			[]string{"strategy", "result"},
		),
		checkpointSavesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "enroll_engine",
				Name:      "checkpoint_saves_total",
				Help:      "Total number of result artifact checkpoint saves.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.tasksTotal,
		m.tasksInflight,
		m.recordsProcessedTotal,
		m.recordProcessDuration,
		m.provisionAttemptsTotal,
		m.checkpointSavesTotal,
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

func (m *Metrics) IncTaskOutcome(outcome string) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncTasksInflight() {
	if m == nil {
		return
	}
	m.tasksInflight.Inc()
}

func (m *Metrics) DecTasksInflight() {
	if m == nil {
		return
	}
	m.tasksInflight.Dec()
}

func (m *Metrics) ObserveRecordProcessed(status string, duration time.Duration) {
	if m == nil {
		return
	}
	label := normalizeLabel(status)
	m.recordsProcessedTotal.WithLabelValues(label).Inc()

	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.recordProcessDuration.WithLabelValues(label).Observe(seconds)
}

func (m *Metrics) IncProvisionAttempt(strategy string, success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.provisionAttemptsTotal.WithLabelValues(normalizeLabel(strategy), result).Inc()
}

func (m *Metrics) IncCheckpointSaved() {
	if m == nil {
		return
	}
	m.checkpointSavesTotal.Inc()
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

func normalizeLabel(label string) string {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
