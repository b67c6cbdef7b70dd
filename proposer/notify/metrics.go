package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhooksDeliveredCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_webhooks_delivered_total",
		Help: "Webhook deliveries acknowledged by the subscriber.",
	})
	webhookFailureCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_webhook_failures_total",
		Help: "Webhook deliveries that failed or were refused.",
	})
	pinsCompletedCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_pins_completed_total",
		Help: "Bundles pinned for long-term storage.",
	})
	pinFailureCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_pin_failures_total",
		Help: "Pin attempts that failed.",
	})
)
