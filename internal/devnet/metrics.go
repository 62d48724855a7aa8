package devnet

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusDevnetHeight   prometheus.Gauge
	prometheusDevnetPoolSize prometheus.Gauge
	prometheusDevnetRejected prometheus.Counter
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusDevnetHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "klingwallet",
			Subsystem: "devnet",
			Name:      "height",
			Help:      "Height of the devnet tip",
		},
	)
	prometheusDevnetPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "klingwallet",
			Subsystem: "devnet",
			Name:      "mempool_size",
			Help:      "Transactions waiting in the devnet mempool",
		},
	)
	prometheusDevnetRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "klingwallet",
			Subsystem: "devnet",
			Name:      "rejected",
			Help:      "Number of submitted transactions the devnet refused",
		},
	)
}
