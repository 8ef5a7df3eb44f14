package bdelta

import "github.com/prometheus/client_golang/prometheus"

// metricsCollector holds the engine's prometheus instrumentation
// (SPEC_FULL.md "Metrics"). It is always non-nil on an Instance -- when
// the caller passes a nil *prometheus.Registry to Config, the
// collectors are still created and updated but never registered, so
// embedding bdelta in a server never mutates a registry it wasn't
// given.
type metricsCollector struct {
	passesTotal      prometheus.Counter
	blocksIndexed    prometheus.Counter
	matchesAccepted  prometheus.Counter
	matchesRejected  prometheus.Counter
	passDuration     prometheus.Histogram
}

func newMetrics(reg *prometheus.Registry) *metricsCollector {
	m := &metricsCollector{
		passesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bdelta",
			Name:      "passes_total",
			Help:      "Number of Pass calls completed.",
		}),
		blocksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bdelta",
			Name:      "blocks_indexed_total",
			Help:      "Number of source blocks hashed into a checksum index.",
		}),
		matchesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bdelta",
			Name:      "matches_accepted_total",
			Help:      "Number of matches that met minMatchSize and were inserted.",
		}),
		matchesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bdelta",
			Name:      "matches_rejected_total",
			Help:      "Number of verified candidates discarded for falling below minMatchSize.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bdelta",
			Name:      "pass_duration_seconds",
			Help:      "Wall-clock duration of a single Pass call.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.passesTotal, m.blocksIndexed, m.matchesAccepted, m.matchesRejected, m.passDuration)
	}
	return m
}
