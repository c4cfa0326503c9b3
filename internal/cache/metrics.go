package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheOperations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cardtrack_cache_operations_total",
		Help: "Cache operations by namespace, operation and result",
	},
	[]string{"namespace", "op", "result"},
)

func recordOp(key Key, op, result string) {
	cacheOperations.WithLabelValues(string(key.Namespace), op, result).Inc()
}
