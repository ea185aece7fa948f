package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_checks_total",
		Help: "Risk checks evaluated, by check and outcome",
	}, []string{"check", "outcome"})

	gateRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_payment_gate_rejections_total",
		Help: "Payment attempts rejected by the gate, by stage",
	}, []string{"stage"})

	fraudTierTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_fraud_tier_total",
		Help: "Fraud scores computed, by risk tier",
	}, []string{"tier"})

	ipBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "risk_ip_blocks_total",
		Help: "Addresses that reached the suspicion threshold",
	})

	sweptKeysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_swept_keys_total",
		Help: "Idle tracker keys removed by the janitor",
	}, []string{"tracker"})

	gateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "risk_payment_gate_duration_seconds",
		Help:    "Time spent evaluating a payment attempt",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
)

func recordCheck(check string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	checksTotal.WithLabelValues(check, outcome).Inc()
}
