package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hexframe",
			Subsystem: "syncer",
			Name:      "cycles_total",
			Help:      "Background sync cycles by outcome.",
		},
		[]string{"outcome"},
	)

	syncFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hexframe",
			Subsystem: "syncer",
			Name:      "consecutive_failures_total",
			Help:      "Failed cycles counted toward retry backoff.",
		},
	)
)
