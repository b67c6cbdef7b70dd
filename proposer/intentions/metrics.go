package intentions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsAcceptedCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_intentions_accepted_total",
		Help: "Submissions that passed the pipeline and entered the pending queue.",
	})
	submissionsRejectedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proposer_intentions_rejected_total",
		Help: "Submissions rejected by the pipeline, labeled by failure kind.",
	}, []string{"kind"})
	pendingQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "proposer_pending_queue_length",
		Help: "Executions waiting for the next bundle tick.",
	})
	vaultsCreatedCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_vaults_created_total",
		Help: "Vaults created through accepted CreateVault intentions.",
	})
)
