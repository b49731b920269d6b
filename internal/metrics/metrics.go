// Package metrics holds the Prometheus collectors exported by brs-dap.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session outcomes.
const (
	OutcomeCompleted    = "completed"
	OutcomeLaunchFailed = "launch_failed"
	OutcomeLost         = "connection_lost"
	OutcomeCompileError = "compile_error"
	OutcomeCrashed      = "cannot_continue"
)

var (
	sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brsdap_sessions_total",
			Help: "Debug sessions that reached Terminated, by outcome",
		},
		[]string{"outcome"},
	)

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brsdap_active_sessions",
		Help: "Debug sessions currently open",
	})

	breakpointsInjected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brsdap_breakpoints_injected_total",
		Help: "Stop statements written into staged source files",
	})

	suspendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brsdap_suspends_total",
			Help: "Suspends reported to the IDE, by stop reason",
		},
		[]string{"reason"},
	)

	deviceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brsdap_device_requests_total",
			Help: "Requests sent to the device debugger, by operation and status",
		},
		[]string{"op", "status"},
	)

	launchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "brsdap_launch_duration_seconds",
		Help:    "Time from launch request to device connection",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	})
)

// SessionOpened records a new session.
func SessionOpened() {
	activeSessions.Inc()
}

// SessionClosed records a session reaching Terminated.
func SessionClosed(outcome string) {
	activeSessions.Dec()
	sessionsTotal.WithLabelValues(outcome).Inc()
}

// BreakpointsInjected records n injected stop statements.
func BreakpointsInjected(n int) {
	if n > 0 {
		breakpointsInjected.Add(float64(n))
	}
}

// Suspended records a stop surfaced to the IDE.
func Suspended(reason string) {
	suspendsTotal.WithLabelValues(reason).Inc()
}

// DeviceRequest records a device operation result.
func DeviceRequest(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	deviceRequests.WithLabelValues(op, status).Inc()
}

// LaunchDuration records how long a successful launch took.
func LaunchDuration(d time.Duration) {
	launchDuration.Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
