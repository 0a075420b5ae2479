package rnnt

import "github.com/prometheus/client_golang/prometheus"

var (
	predictCalls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "transducer",
			Subsystem: "rnnt",
			Name:      "predict_calls_total",
			Help:      "The total number of prediction network evaluations.",
		},
	)
	jointCalls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "transducer",
			Subsystem: "rnnt",
			Name:      "joint_calls_total",
			Help:      "The total number of joint network evaluations.",
		},
	)
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "transducer",
			Subsystem: "rnnt",
			Name:      "hypothesis_cache_lookups_total",
			Help:      "Hypothesis cache lookups by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(predictCalls)
	prometheus.MustRegister(jointCalls)
	prometheus.MustRegister(cacheLookups)
}

// RecordCacheHit increments the hypothesis cache hit counter.
func RecordCacheHit() {
	cacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss increments the hypothesis cache miss counter.
func RecordCacheMiss() {
	cacheLookups.WithLabelValues("miss").Inc()
}
