package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildx_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "result"},
	)

	// InvitationsSent counts member invitations by outcome (sent|email_failed).
	InvitationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildx_invitations_total",
			Help: "Total number of member invitations dispatched",
		},
		[]string{"result"},
	)

	// OTPVerifications counts one-time-code verification outcomes
	// (success|invalid|expired|used).
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildx_otp_verifications_total",
			Help: "Total number of one-time-code verification attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buildx_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
