package search

import "github.com/prometheus/client_golang/prometheus"

var (
	utterancesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "transducer",
			Subsystem: "search",
			Name:      "utterances_total",
			Help:      "The total number of decoded utterances by strategy.",
		},
		[]string{"strategy"},
	)
	beamExpansions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "transducer",
			Subsystem: "search",
			Name:      "beam_expansions_total",
			Help:      "The total number of hypotheses expanded by beam search.",
		},
	)
)

func init() {
	prometheus.MustRegister(utterancesDecoded)
	prometheus.MustRegister(beamExpansions)
}
