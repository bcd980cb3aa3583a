package cache

// metrics.go mirrors the teacher's pkg/metrics.go: a small metricsSink
// interface with a no-op implementation and a Prometheus-backed one,
// selected by whether a *prometheus.Registry was supplied via WithMetrics.
// Unlike the teacher there is no shard label, since this cache is a single
// global LRU rather than a sharded one (spec 4.4.2 needs one recency order).

import "github.com/prometheus/client_golang/prometheus"

type metricsSink interface {
	incHit()
	incMiss()
	incEviction()
	incAdmissionRefused()
	setSize(n int)
}

type noopMetrics struct{}

func (noopMetrics) incHit()                 {}
func (noopMetrics) incMiss()                {}
func (noopMetrics) incEviction()            {}
func (noopMetrics) incAdmissionRefused()    {}
func (noopMetrics) setSize(int)             {}

type promMetrics struct {
	hits             prometheus.Counter
	misses           prometheus.Counter
	evictions        prometheus.Counter
	admissionRefused prometheus.Counter
	size             prometheus.Gauge
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	pm := &promMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rain_eval",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Number of cache hits.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rain_eval",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Number of cache misses.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rain_eval",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Number of entries evicted under capacity pressure.",
		}),
		admissionRefused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rain_eval",
			Subsystem: "cache",
			Name:      "admission_refused_total",
			Help:      "Number of put() calls that were not admitted (unstoreable value or Uncacheable dep).",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rain_eval",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current number of entries held in the cache.",
		}),
	}
	reg.MustRegister(pm.hits, pm.misses, pm.evictions, pm.admissionRefused, pm.size)
	return pm
}

func (m *promMetrics) incHit()              { m.hits.Inc() }
func (m *promMetrics) incMiss()             { m.misses.Inc() }
func (m *promMetrics) incEviction()         { m.evictions.Inc() }
func (m *promMetrics) incAdmissionRefused() { m.admissionRefused.Inc() }
func (m *promMetrics) setSize(n int)        { m.size.Set(float64(n)) }

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
