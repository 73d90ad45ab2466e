// Package metrics records operational metrics for the bot.
//
// Two sinks are fed from the same call sites. Prometheus collectors back the
// /metrics endpoint of the long-running server. When running inside Lambda,
// task outcomes are also written as CloudWatch Embedded Metrics Format (EMF)
// lines on stdout, which CloudWatch turns into metrics with no API calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const prefix = "shopbot"

var (
	// HTTPRequestsTotal counts requests by method, route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// CommandsTotal counts inbound chat messages by dispatcher route.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_commands_total",
			Help: "Total number of dispatched chat commands",
		},
		[]string{"command"},
	)

	// TasksTotal counts finished background tasks by kind and status.
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_tasks_total",
			Help: "Total number of finished background tasks",
		},
		[]string{"kind", "status"},
	)

	// TaskDuration observes background task latency.
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_task_duration_seconds",
			Help:    "Duration of background tasks in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)

	// FallbacksTotal counts adapter calls replaced by their fallback value.
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_adapter_fallbacks_total",
			Help: "Total number of adapter calls that fell back to a canned value",
		},
		[]string{"adapter"},
	)

	// QueueDepth tracks tasks waiting for a worker.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_task_queue_depth",
			Help: "Number of background tasks waiting for a worker",
		},
	)
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP records one finished HTTP request.
func ObserveHTTP(method, path, status string, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

// RecordCommand increments the dispatcher route counter.
func RecordCommand(command string) {
	CommandsTotal.WithLabelValues(command).Inc()
}

// RecordFallback increments the fallback counter for an adapter.
func RecordFallback(adapter string) {
	FallbacksTotal.WithLabelValues(adapter).Inc()
}

// RecordTask records a finished background task in Prometheus and, inside
// Lambda, as an EMF line.
func RecordTask(kind, status, phase string, d time.Duration) {
	TasksTotal.WithLabelValues(kind, status).Inc()
	TaskDuration.WithLabelValues(kind).Observe(d.Seconds())

	if EMFEnabled() {
		taskLine(kind, status, phase, d).write(emfOut)
	}
}
