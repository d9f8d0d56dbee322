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
			Namespace: "mpdctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"server", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mpdctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"server", "method", "path", "status"},
	)
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpdctl",
			Subsystem: "engine",
			Name:      "commands_total",
			Help:      "Resolved MPD commands by outcome.",
		},
		[]string{"outcome"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mpdctl",
			Subsystem: "engine",
			Name:      "command_duration_seconds",
			Help:      "Time from submit to resolution.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpdctl",
			Subsystem: "engine",
			Name:      "dispatches_total",
			Help:      "Wire messages dispatched by kind (command, list, idle, noidle).",
		},
		[]string{"kind"},
	)
	requeuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mpdctl",
			Subsystem: "engine",
			Name:      "requeued_total",
			Help:      "Command list members requeued after an ACK aborted the list.",
		},
	)
	protocolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpdctl",
			Subsystem: "engine",
			Name:      "protocol_errors_total",
			Help:      "ACK responses by code.",
		},
		[]string{"code"},
	)
	malformedLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpdctl",
			Subsystem: "engine",
			Name:      "malformed_lines_total",
			Help:      "Lines that could not be classified, by kind.",
		},
		[]string{"kind"},
	)
	subsystemChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpdctl",
			Subsystem: "engine",
			Name:      "subsystem_changes_total",
			Help:      "Subsystem change notifications received from idle.",
		},
		[]string{"subsystem"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			commandsTotal, commandDuration, batchesTotal, requeuedTotal,
			protocolErrors, malformedLines, subsystemChanges,
		)
	})
}

func RecordHTTPRequest(server, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(server, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(server, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordCommand counts one resolved command; outcome is "ok", "ack" or
// "closed".
func RecordCommand(outcome string, duration time.Duration) {
	RegisterMetrics()
	commandsTotal.WithLabelValues(outcome).Inc()
	commandDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordDispatch(kind string) {
	RegisterMetrics()
	batchesTotal.WithLabelValues(kind).Inc()
}

func RecordRequeued(n int) {
	RegisterMetrics()
	requeuedTotal.Add(float64(n))
}

func RecordProtocolError(code int) {
	RegisterMetrics()
	protocolErrors.WithLabelValues(strconv.Itoa(code)).Inc()
}

func RecordMalformedLine(kind string) {
	RegisterMetrics()
	malformedLines.WithLabelValues(kind).Inc()
}

func RecordSubsystemChanges(subsystems []string) {
	RegisterMetrics()
	for _, s := range subsystems {
		subsystemChanges.WithLabelValues(s).Inc()
	}
}
