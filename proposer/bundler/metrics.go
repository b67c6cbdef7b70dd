package bundler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bundlesProposedCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_bundles_proposed_total",
		Help: "Bundles uploaded, anchored, and committed.",
	})
	executionsBundledCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_executions_bundled_total",
		Help: "Executions drained into committed bundles.",
	})
	tickFailureCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_bundle_tick_failures_total",
		Help: "Ticks that drained a snapshot and failed before commit.",
	})
	skippedTickCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_bundle_ticks_skipped_total",
		Help: "Ticker fires dropped because the previous tick was still running.",
	})
	anchorOrphanedCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_anchor_orphaned_total",
		Help: "Bundles anchored on chain whose database commit failed.",
	})
	bundleGzipBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "proposer_bundle_gzip_bytes",
		Help:    "Compressed size of published bundles.",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	})
)
