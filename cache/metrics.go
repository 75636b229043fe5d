package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	optimisticAppliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hexframe",
			Subsystem: "mapcache",
			Name:      "optimistic_applies_total",
			Help:      "Optimistic patches applied ahead of server confirmation.",
		},
	)

	rollbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hexframe",
			Subsystem: "mapcache",
			Name:      "rollbacks_total",
			Help:      "Optimistic patches rolled back after server rejection.",
		},
	)

	moveOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hexframe",
			Subsystem: "mapcache",
			Name:      "move_operations_total",
			Help:      "Move/swap orchestrations by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)
