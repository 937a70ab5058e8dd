package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	swapAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harvester",
		Name:      "swap_attempts_total",
		Help:      "Swap attempts by provider, attempt (primary/fallback) and result.",
	}, []string{"provider", "attempt", "result"})

	swapEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harvester",
		Name:      "swap_entries_total",
		Help:      "Final outcome of staged entries per batch run.",
	}, []string{"provider", "outcome"})
)
