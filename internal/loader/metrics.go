package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tierOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardtrack_loader_tier_total",
			Help: "Set loader tier attempts by game, tier and outcome",
		},
		[]string{"game", "tier", "outcome"},
	)

	loadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardtrack_loader_load_duration_seconds",
			Help:    "Time to run the acquisition chain of a set loader",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"game", "source"},
	)
)
