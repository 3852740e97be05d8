package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	SessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "felt_sessions_active",
			Help: "Number of live sessions by visibility",
		},
		[]string{"visibility"},
	)

	ParticipantsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "felt_participants_total",
			Help: "Number of roster entries by connection status",
		},
		[]string{"status"},
	)

	SessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "felt_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionsRetired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "felt_sessions_retired_total",
			Help: "Total number of retired sessions by reason",
		},
		[]string{"reason"},
	)

	// Transport metrics
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "felt_connections_active",
			Help: "Number of open websocket connections",
		},
	)

	MessagesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "felt_messages_dropped_total",
			Help: "Outbound messages dropped because a connection queue was full",
		},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "felt_rate_limited_total",
			Help: "Requests rejected by the per-connection rate limiter",
		},
	)

	// Operation metrics
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "felt_operations_total",
			Help: "Total number of operations by intent and result",
		},
		[]string{"intent", "result"},
	)

	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "felt_rejections_total",
			Help: "Total number of rejected operations by error kind",
		},
		[]string{"kind"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "felt_operation_duration_seconds",
			Help:    "Time spent applying an operation inside the session loop",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .1},
		},
		[]string{"intent"},
	)

	PanicsRecovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "felt_panics_recovered_total",
			Help: "Operations that panicked and were converted to INTERNAL rejections",
		},
	)

	// Lease metrics
	LeasesActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "felt_leases_active",
			Help: "Number of held leases by subject kind",
		},
		[]string{"subject"},
	)

	LeasesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "felt_leases_expired_total",
			Help: "Leases cleared by the periodic sweep",
		},
	)

	// Background loops
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "felt_reconciliation_duration_seconds",
			Help:    "Time taken by one reconciliation cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	CheckpointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "felt_checkpoints_total",
			Help: "Session checkpoints written by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(ParticipantsTotal)
	prometheus.MustRegister(SessionsCreated)
	prometheus.MustRegister(SessionsRetired)
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(MessagesDropped)
	prometheus.MustRegister(RateLimited)
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(RejectionsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(PanicsRecovered)
	prometheus.MustRegister(LeasesActive)
	prometheus.MustRegister(LeasesExpired)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(CheckpointsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
