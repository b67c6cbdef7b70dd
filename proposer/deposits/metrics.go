package deposits

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transfersScannedCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_deposit_transfers_scanned_total",
		Help: "Provider transfers examined by deposit discovery.",
	})
	scanFailureCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_deposit_scan_failures_total",
		Help: "Deposit discovery passes that ended in an error.",
	})
)
