package types

import (
	"github.com/shopspring/decimal"
)

// Window is one batch of consecutive steps
type Window struct {
	// Index is the window position, starting at 0
	Index int `json:"index" yaml:"index"`

	// Start is the index of the first step in the window
	Start int `json:"start" yaml:"start"`

	// Size is the number of steps in the window
	Size int `json:"size" yaml:"size"`

	// Offset is the cost pre-charged to the window before its first step
	Offset int64 `json:"offset,omitempty" yaml:"offset,omitempty"`

	// Cost is the cumulative cost of the window including Offset
	Cost int64 `json:"cost" yaml:"cost"`

	// Utilization is Cost as a percentage of the effective capacity
	Utilization decimal.Decimal `json:"utilization" yaml:"utilization"`

	// Oversized is set when the window holds a step that alone exceeds the capacity
	Oversized bool `json:"oversized,omitempty" yaml:"oversized,omitempty"`
}

// PartitionResult is the outcome of a partition pass
type PartitionResult struct {
	// WindowSizes holds the step count of each window in order
	WindowSizes []int `json:"window_sizes" yaml:"window_sizes"`

	// WindowCount is len(WindowSizes)
	WindowCount int `json:"window_count" yaml:"window_count"`

	// TotalSteps is the number of steps partitioned
	TotalSteps int `json:"total_steps" yaml:"total_steps"`

	// TotalCost is the sum of all step costs, excluding offsets
	TotalCost int64 `json:"total_cost" yaml:"total_cost"`

	// EffectiveCapacity is the ceiling that was enforced
	EffectiveCapacity int64 `json:"effective_capacity" yaml:"effective_capacity"`

	// RemainingCapacity is the capacity left unused in the final window
	RemainingCapacity int64 `json:"remaining_capacity" yaml:"remaining_capacity"`

	// OversizedSteps lists indices of steps whose cost alone exceeds the capacity
	OversizedSteps []int `json:"oversized_steps,omitempty" yaml:"oversized_steps,omitempty"`

	// HasOversized is set when OversizedSteps is not empty
	HasOversized bool `json:"has_oversized" yaml:"has_oversized"`

	// Windows holds per-window detail
	Windows []Window `json:"windows,omitempty" yaml:"windows,omitempty"`
}

// NonEmptyWindowCount counts windows that received at least one step
func (r *PartitionResult) NonEmptyWindowCount() int {
	n := 0
	for _, size := range r.WindowSizes {
		if size > 0 {
			n++
		}
	}
	return n
}

// WindowOf returns the window holding the step at index step, or -1
func (r *PartitionResult) WindowOf(step int) int {
	if step < 0 || step >= r.TotalSteps {
		return -1
	}
	seen := 0
	for i, size := range r.WindowSizes {
		seen += size
		if step < seen {
			return i
		}
	}
	return -1
}
