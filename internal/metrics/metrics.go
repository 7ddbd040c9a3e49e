package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for mailout
type Metrics struct {
	// Message counters
	MessagesSentTotal   *prometheus.CounterVec
	MessagesFailedTotal *prometheus.CounterVec

	// Bulk run metrics
	RunsTotal          prometheus.Counter
	RunDurationSeconds prometheus.Histogram
	RunRecipients      prometheus.Histogram

	// Per-message delivery timing
	SendDurationSeconds prometheus.Histogram

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// System metrics
	UptimeSeconds prometheus.Gauge
	Goroutines    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		MessagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailout_messages_sent_total",
				Help: "Total number of successfully delivered messages",
			},
			[]string{"domain"},
		),
		MessagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailout_messages_failed_total",
				Help: "Total number of failed message deliveries",
			},
			[]string{"domain", "error_type"},
		),

		RunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mailout_runs_total",
				Help: "Total number of completed bulk send runs",
			},
		),
		RunDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailout_run_duration_seconds",
				Help:    "Duration of bulk send runs in seconds",
				Buckets: []float64{.5, 1, 5, 15, 60, 300, 900, 3600},
			},
		),
		RunRecipients: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailout_run_recipients",
				Help:    "Number of recipients per bulk send run",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),

		SendDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailout_send_duration_seconds",
				Help:    "Time spent delivering a single message in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailout_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailout_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailout_api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"error_type"},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailout_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailout_goroutines",
				Help: "Number of active goroutines",
			},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.MessagesSentTotal,
		m.MessagesFailedTotal,
		m.RunsTotal,
		m.RunDurationSeconds,
		m.RunRecipients,
		m.SendDurationSeconds,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.UptimeSeconds,
		m.Goroutines,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncMessagesSent increments the sent message counter
func IncMessagesSent(domain string) {
	m := Global()
	if m != nil {
		m.MessagesSentTotal.WithLabelValues(domain).Inc()
	}
}

// IncMessagesFailed increments the failed message counter
func IncMessagesFailed(domain, errorType string) {
	m := Global()
	if m != nil {
		m.MessagesFailedTotal.WithLabelValues(domain, errorType).Inc()
	}
}

// ObserveSendDuration records the delivery time of one message
func ObserveSendDuration(seconds float64) {
	m := Global()
	if m != nil {
		m.SendDurationSeconds.Observe(seconds)
	}
}

// RecordRun records a completed bulk send run
func RecordRun(recipients int, seconds float64) {
	m := Global()
	if m != nil {
		m.RunsTotal.Inc()
		m.RunRecipients.Observe(float64(recipients))
		m.RunDurationSeconds.Observe(seconds)
	}
}
