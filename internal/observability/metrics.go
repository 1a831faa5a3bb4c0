package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifc_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	TokenDecodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifc_token_decodes_total",
			Help: "Token decode attempts by outcome",
		},
		[]string{"outcome"},
	)

	LinkResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifc_link_resolutions_total",
			Help: "Short-link resolutions by outcome",
		},
		[]string{"outcome"},
	)

	IdentityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifc_identity_checks_total",
			Help: "Identity conflict checks by outcome",
		},
		[]string{"outcome"},
	)

	PaymentPolls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ifc_payment_polls_total",
			Help: "Payment status polls issued",
		},
	)

	CheckoutsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifc_checkouts_finished_total",
			Help: "Checkouts that reached a terminal state",
		},
		[]string{"state"},
	)

	RateLimitExceeded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ifc_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(RequestsTotal, TokenDecodes, LinkResolutions, IdentityChecks, PaymentPolls, CheckoutsFinished, RateLimitExceeded)
}
