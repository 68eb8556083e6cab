// Package metrics defines the platform's Prometheus collectors and a
// registry carrying them, exposed by cmd/platform and cmd/reconciler at
// /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var PolicyTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetcompliance",
		Subsystem: "policy",
		Name:      "transitions_total",
		Help:      "Total number of policy lifecycle transitions by target status and outcome.",
	},
	[]string{"status", "outcome"},
)

var PermitTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetcompliance",
		Subsystem: "permit",
		Name:      "transitions_total",
		Help:      "Total number of permit lifecycle transitions by target status and outcome.",
	},
	[]string{"status", "outcome"},
)

var ReconcileSweepDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "fleetcompliance",
		Subsystem: "reconciler",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of one full reconciliation sweep across every tenant.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	},
)

var ReconcileExpiredTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetcompliance",
		Subsystem: "reconciler",
		Name:      "expired_total",
		Help:      "Total number of policies/permits auto-expired by the reconciler.",
	},
	[]string{"entity_kind"},
)

var RemindersQueuedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "fleetcompliance",
		Subsystem: "reconciler",
		Name:      "reminders_queued_total",
		Help:      "Total number of expiry reminder notifications buffered by the reconciler.",
	},
)

var LoginAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetcompliance",
		Subsystem: "authn",
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts by outcome.",
	},
	[]string{"outcome"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "fleetcompliance",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds by route and status class.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"route", "status_class"},
)

// All returns every platform collector, for registration against a
// *prometheus.Registry at startup.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		PolicyTransitionsTotal,
		PermitTransitionsTotal,
		ReconcileSweepDuration,
		ReconcileExpiredTotal,
		RemindersQueuedTotal,
		LoginAttemptsTotal,
		HTTPRequestDuration,
	}
}

// NewRegistry builds a registry carrying every platform collector plus the
// default Go runtime/process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	for _, c := range All() {
		reg.MustRegister(c)
	}
	return reg
}
