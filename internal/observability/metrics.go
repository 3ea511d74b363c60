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
			Namespace: "ampm",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ampm",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ampm",
			Subsystem: "client",
			Name:      "messages_sent_total",
			Help:      "Telemetry messages handed to the transport.",
		},
		[]string{"route", "success"},
	)
	configFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ampm",
			Subsystem: "client",
			Name:      "config_fetches_total",
			Help:      "Configuration document fetches.",
		},
		[]string{"success"},
	)
	messagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ampm",
			Subsystem: "server",
			Name:      "messages_received_total",
			Help:      "Telemetry messages received from apps.",
		},
		[]string{"route"},
	)
	analyticsEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ampm",
			Subsystem: "server",
			Name:      "events_total",
			Help:      "Analytics events by category and action.",
		},
		[]string{"category", "action"},
	)
	appLogs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ampm",
			Subsystem: "server",
			Name:      "logs_total",
			Help:      "App log lines by level.",
		},
		[]string{"level"},
	)
	appsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ampm",
			Subsystem: "server",
			Name:      "apps_active",
			Help:      "Apps heard from within the liveness window.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			messagesSent, configFetches,
			messagesReceived, analyticsEvents, appLogs, appsActive,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSend(route string, success bool) {
	RegisterMetrics()
	messagesSent.WithLabelValues(route, strconv.FormatBool(success)).Inc()
}

func RecordConfigFetch(success bool) {
	RegisterMetrics()
	configFetches.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func RecordReceive(route string) {
	RegisterMetrics()
	messagesReceived.WithLabelValues(route).Inc()
}

func RecordEvent(category, action string) {
	RegisterMetrics()
	analyticsEvents.WithLabelValues(category, action).Inc()
}

func RecordLog(level string) {
	RegisterMetrics()
	appLogs.WithLabelValues(level).Inc()
}

func SetActiveApps(n int) {
	RegisterMetrics()
	appsActive.Set(float64(n))
}
