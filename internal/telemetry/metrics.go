package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RefundRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_requests_total",
		Help: "Buyer refund requests by action (requested, approved, rejected).",
	}, []string{"action"})

	RefundExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_executions_total",
		Help: "Refund executions by outcome (completed, failed, skipped).",
	}, []string{"status"})

	GatewayAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_gateway_attempts_total",
		Help: "Per-payment gateway refund calls by outcome.",
	}, []string{"outcome"})

	RefundAmount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "refund_amount_cents",
		Help:    "Amount of each created refund log, in cents.",
		Buckets: prometheus.ExponentialBuckets(100, 4, 8),
	})
)

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "refund_http_request_duration_seconds",
	Help:    "Latency of refund API requests.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "status"})
