package ledger

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusLedgerSync          prometheus.Counter
	prometheusLedgerSyncErrors    prometheus.Counter
	prometheusLedgerSoftFailures  prometheus.Counter
	prometheusLedgerRecords       *prometheus.CounterVec
	prometheusLedgerReservations  prometheus.Counter
	prometheusLedgerReleases      prometheus.Counter
	prometheusLedgerScanCacheHits prometheus.Counter

	// only init the metrics once
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusLedgerSync = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "klingwallet",
			Name:      "ledger_sync",
			Help:      "Number of synchronize calls committed",
		},
	)
	prometheusLedgerSyncErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "klingwallet",
			Name:      "ledger_sync_errors",
			Help:      "Number of synchronize calls aborted by a storage error",
		},
	)
	prometheusLedgerSoftFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "klingwallet",
			Name:      "ledger_sync_soft_failures",
			Help:      "Number of stream items skipped because they could not be decoded or scanned",
		},
	)
	prometheusLedgerRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "klingwallet",
			Name:      "ledger_records",
			Help:      "Number of history records appended",
		},
		[]string{
			"direction", // INCOMING or OUTGOING
		},
	)
	prometheusLedgerReservations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "klingwallet",
			Name:      "ledger_reservations",
			Help:      "Number of sends that reserved outputs",
		},
	)
	prometheusLedgerReleases = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "klingwallet",
			Name:      "ledger_releases",
			Help:      "Number of reservations released after a rejected send",
		},
	)
	prometheusLedgerScanCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "klingwallet",
			Name:      "ledger_scan_cache_hits",
			Help:      "Number of stream items skipped by the scan cache",
		},
	)
}
