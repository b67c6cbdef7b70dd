package sql

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	missingVaultNonceCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_db_missing_vault_nonce_total",
		Help: "Nonce updates skipped because the vault row does not exist.",
	})
	depositsInsertedCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_db_deposits_inserted_total",
		Help: "Deposit rows recorded by discovery, deduplicated by transfer uid.",
	})
)
