package rpc

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusRPCCalls    *prometheus.CounterVec
	prometheusRPCDuration *prometheus.HistogramVec

	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(func() {
		prometheusRPCCalls = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "klingwallet",
				Name:      "rpc_calls_total",
				Help:      "JSON-RPC calls by method and result code (0 = success)",
			},
			[]string{"method", "code"},
		)
		prometheusRPCDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "klingwallet",
				Name:      "rpc_call_duration_seconds",
				Help:      "JSON-RPC handler latency",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"method"},
		)
	})
}

// observeCall records one call. Unknown methods share a single label so
// clients cannot grow the series set.
func observeCall(method string, start time.Time, code int) {
	prometheusRPCCalls.WithLabelValues(method, strconv.Itoa(code)).Inc()
	prometheusRPCDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
