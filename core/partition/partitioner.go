// Package partition splits an ordered cost sequence into capacity-bounded windows.
// This package is pure: no I/O, no logging, no shared state.
package partition

import (
	"github.com/shopspring/decimal"

	"cu-planner/core/types"
	"cu-planner/internal/errors"
)

var hundred = decimal.NewFromInt(100)

// Partitioner assigns steps to windows
type Partitioner interface {
	// Name returns the strategy name
	Name() string

	// Partition splits costs into windows under cfg
	Partition(costs []int64, cfg types.Configuration) (*types.PartitionResult, error)
}

// Greedy is the single-pass left-to-right strategy
type Greedy struct{}

// NewGreedy creates the greedy partitioner
func NewGreedy() *Greedy {
	return &Greedy{}
}

// Name returns the strategy name
func (g *Greedy) Name() string {
	return "greedy"
}

// Partition splits costs into windows under cfg
func (g *Greedy) Partition(costs []int64, cfg types.Configuration) (*types.PartitionResult, error) {
	return Partition(costs, cfg)
}

// Partition walks costs once, filling the current window until the next step
// would push it past the effective capacity, then opens a new window.
//
// A step that alone exceeds the capacity still gets a window of its own and is
// reported in OversizedSteps. An empty sequence yields a single empty window.
func Partition(costs []int64, cfg types.Configuration) (*types.PartitionResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for i, c := range costs {
		if c < 0 {
			return nil, errors.Newf(errors.TypeInput, "step %d has negative cost %d", i, c).
				WithContext("index", i)
		}
	}

	effective := cfg.EffectiveCapacity()
	var reopenOffset int64
	if cfg.Policy() == types.OffsetEveryWindow {
		reopenOffset = cfg.StartOffset
	}

	result := &types.PartitionResult{
		WindowSizes:       make([]int, 0, 1),
		TotalSteps:        len(costs),
		EffectiveCapacity: effective,
	}

	current := types.Window{Offset: cfg.StartOffset, Cost: cfg.StartOffset}
	closeWindow := func() {
		current.Utilization = utilization(current.Cost, effective)
		result.WindowSizes = append(result.WindowSizes, current.Size)
		result.Windows = append(result.Windows, current)
	}

	for i, c := range costs {
		result.TotalCost = types.SaturatingAdd(result.TotalCost, c)

		// compared as a difference: current.Cost+c can overflow
		if c <= effective-current.Cost {
			current.Size++
			current.Cost += c
			continue
		}

		closeWindow()
		current = types.Window{
			Index:  len(result.Windows),
			Start:  i,
			Offset: reopenOffset,
			Cost:   types.SaturatingAdd(reopenOffset, c),
			Size:   1,
		}
		if c > effective-reopenOffset {
			current.Oversized = true
			result.OversizedSteps = append(result.OversizedSteps, i)
		}
	}
	closeWindow()

	result.WindowCount = len(result.WindowSizes)
	result.RemainingCapacity = effective - current.Cost
	result.HasOversized = len(result.OversizedSteps) > 0
	return result, nil
}

func utilization(cost, capacity int64) decimal.Decimal {
	return decimal.NewFromInt(cost).Mul(hundred).Div(decimal.NewFromInt(capacity)).Round(2)
}
