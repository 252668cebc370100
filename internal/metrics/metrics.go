package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Payment attempt metrics
	// ============================================
	PaymentAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payclient_payment_attempts_total",
			Help: "Total number of payment attempts by terminal outcome",
		},
		[]string{"outcome"},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payclient_phase_duration_seconds",
			Help:    "Duration of each payment protocol phase in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	// ============================================
	// Recovery and fallback metrics
	// ============================================
	ConflictRecoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payclient_conflict_recoveries_total",
			Help: "Total number of prepare conflicts entering recovery, by result",
		},
		[]string{"result"},
	)

	FallbackSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payclient_fallback_submissions_total",
		Help: "Total number of submissions that fell back to the HTTP path",
	})

	// ============================================
	// Session channel metrics
	// ============================================
	SessionConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payclient_session_connected",
		Help: "Session channel connection status (1=connected, 0=disconnected)",
	})

	SessionCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payclient_session_calls_total",
			Help: "Total number of session channel calls by message type and result",
		},
		[]string{"type", "result"},
	)
)
