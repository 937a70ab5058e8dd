package claim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var claimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "harvester",
	Name:      "claims_total",
	Help:      "Reward claims by result.",
}, []string{"result"})
