package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every rover-bridge collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	// CommandsApplied counts accepted state mutations by command.
	// Override commands share the "override" label to bound cardinality.
	CommandsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rover_commands_applied_total",
			Help: "Total number of commands applied to the control state.",
		},
		[]string{"command"},
	)

	PersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rover_persist_failures_total",
			Help: "Total number of state snapshots that failed to persist.",
		},
	)

	// RelayRequests counts calls to the remote robot host.
	// op: forward/stop/status, result: ok/error
	RelayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rover_relay_requests_total",
			Help: "Total number of requests relayed to the remote robot host.",
		},
		[]string{"op", "result"},
	)

	RelayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rover_relay_latency_seconds",
			Help:    "Latency of requests relayed to the remote robot host.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// RemoteReachable is 1 when the last status fetch succeeded.
	RemoteReachable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rover_remote_reachable",
			Help: "Whether the remote robot host answered the last status request (1=yes).",
		},
	)

	ActuationStale = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rover_actuation_stale_total",
			Help: "Auto-stops and dispatches skipped because a newer command superseded them.",
		},
	)

	// ActuationActive is 1 while a timed actuation is running.
	ActuationActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rover_actuation_active",
			Help: "Whether a timed motor actuation is in flight (1=yes).",
		},
	)

	MotorErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rover_motor_errors_total",
			Help: "Total number of motor driver calls that returned an error.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		CommandsApplied,
		PersistFailures,
		RelayRequests,
		RelayLatency,
		RemoteReachable,
		ActuationStale,
		ActuationActive,
		MotorErrors,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Result maps an error onto the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
