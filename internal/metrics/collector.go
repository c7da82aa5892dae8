// Package metrics records planning metrics.
package metrics

// Outcome labels for RecordPlan
const (
	OutcomeSuccess   = "success"
	OutcomeOversized = "oversized"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Collector receives planning metrics
type Collector interface {
	// RecordPlan records a finished plan by outcome with its window count and duration
	RecordPlan(outcome string, windows int, seconds float64)

	// AddOversizedSteps counts steps that exceeded the effective capacity alone
	AddOversizedSteps(n int)

	// RecordCacheHit counts a plan served from the cache
	RecordCacheHit()

	// RecordCacheMiss counts a plan that had to be computed
	RecordCacheMiss()

	// RecordSweep counts a sweep and the number of settings it evaluated
	RecordSweep(settings int)
}

// NopMetrics discards every metric
type NopMetrics struct{}

var _ Collector = (*NopMetrics)(nil)

// NewNop creates a no-op collector
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordPlan discards the plan metric.
func (n *NopMetrics) RecordPlan(_ string, _ int, _ float64) {}

// AddOversizedSteps discards the oversized step count.
func (n *NopMetrics) AddOversizedSteps(_ int) {}

// RecordCacheHit discards the cache hit.
func (n *NopMetrics) RecordCacheHit() {}

// RecordCacheMiss discards the cache miss.
func (n *NopMetrics) RecordCacheMiss() {}

// RecordSweep discards the sweep metric.
func (n *NopMetrics) RecordSweep(_ int) {}
