package cache

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	clears        prometheus.Counter
}

// newMetrics builds the cache counters and registers them when reg is set.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		hits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tablehand",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Reads served from a fresh cache entry",
			},
			[]string{"entity"},
		),
		misses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tablehand",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Reads that required a fetch",
			},
			[]string{"entity"},
		),
		invalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tablehand",
				Subsystem: "cache",
				Name:      "invalidations_total",
				Help:      "Entries marked for refetch",
			},
			[]string{"entity"},
		),
		clears: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tablehand",
				Subsystem: "cache",
				Name:      "clears_total",
				Help:      "Full cache clears",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.invalidations, m.clears)
	}
	return m
}
