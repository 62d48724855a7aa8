package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusEngineOpenWallets  prometheus.Gauge
	prometheusEngineSends        prometheus.Counter
	prometheusEngineSendErrors   prometheus.Counter
	prometheusEngineSyncShared   prometheus.Counter
	prometheusEngineSyncDuration prometheus.Histogram

	// only init the metrics once
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusEngineOpenWallets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "klingwallet",
			Name:      "engine_open_wallets",
			Help:      "Number of wallets currently open",
		},
	)
	prometheusEngineSends = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "klingwallet",
			Name:      "engine_sends",
			Help:      "Number of transactions accepted by the node",
		},
	)
	prometheusEngineSendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "klingwallet",
			Name:      "engine_send_errors",
			Help:      "Number of sends that failed to build or submit",
		},
	)
	prometheusEngineSyncShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "klingwallet",
			Name:      "engine_sync_shared",
			Help:      "Number of sync calls served by an in-flight pass",
		},
	)
	prometheusEngineSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "klingwallet",
			Name:      "engine_sync_duration_seconds",
			Help:      "Duration of one wallet sync pass",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)
}
