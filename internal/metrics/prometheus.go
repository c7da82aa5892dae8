package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector backed by Prometheus.
// Metrics are registered on first use.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	plans          *prometheus.CounterVec
	planDuration   prometheus.Histogram
	windows        prometheus.Histogram
	oversizedSteps prometheus.Counter
	cache          *prometheus.CounterVec
	sweeps         prometheus.Counter
	sweepSettings  prometheus.Histogram
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus creates a Prometheus-backed collector.
// A nil reg means prometheus.DefaultRegisterer; an empty namespace means "cu_planner".
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "cu_planner"
	}
	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.plans = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "planner",
			Name:      "plans_total",
			Help:      "Total plans by outcome (success, oversized, invalid, error).",
		}, []string{"outcome"})

		p.planDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "planner",
			Name:      "plan_duration_seconds",
			Help:      "Time spent producing a plan in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100us .. ~1.6s
		})

		p.windows = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "planner",
			Name:      "windows",
			Help:      "Number of windows per successful plan.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
		})

		p.oversizedSteps = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "planner",
			Name:      "oversized_steps_total",
			Help:      "Total steps whose cost alone exceeded the effective capacity.",
		})

		p.cache = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Plan cache lookups by result (hit, miss).",
		}, []string{"result"})

		p.sweeps = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "planner",
			Name:      "sweeps_total",
			Help:      "Total capacity sweeps.",
		})

		p.sweepSettings = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "planner",
			Name:      "sweep_settings",
			Help:      "Number of capacity settings evaluated per sweep.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
		})

		p.reg.MustRegister(p.plans)
		p.reg.MustRegister(p.planDuration)
		p.reg.MustRegister(p.windows)
		p.reg.MustRegister(p.oversizedSteps)
		p.reg.MustRegister(p.cache)
		p.reg.MustRegister(p.sweeps)
		p.reg.MustRegister(p.sweepSettings)
	})
}

// RecordPlan records a finished plan. Window counts are only observed for
// plans that produced a result.
func (p *PrometheusCollector) RecordPlan(outcome string, windows int, seconds float64) {
	p.ensureRegistered()
	p.plans.WithLabelValues(outcome).Inc()
	p.planDuration.Observe(seconds)
	if outcome == OutcomeSuccess || outcome == OutcomeOversized {
		p.windows.Observe(float64(windows))
	}
}

// AddOversizedSteps counts oversized steps.
func (p *PrometheusCollector) AddOversizedSteps(n int) {
	p.ensureRegistered()
	p.oversizedSteps.Add(float64(n))
}

// RecordCacheHit counts a cache hit.
func (p *PrometheusCollector) RecordCacheHit() {
	p.ensureRegistered()
	p.cache.WithLabelValues("hit").Inc()
}

// RecordCacheMiss counts a cache miss.
func (p *PrometheusCollector) RecordCacheMiss() {
	p.ensureRegistered()
	p.cache.WithLabelValues("miss").Inc()
}

// RecordSweep counts a sweep.
func (p *PrometheusCollector) RecordSweep(settings int) {
	p.ensureRegistered()
	p.sweeps.Inc()
	p.sweepSettings.Observe(float64(settings))
}
