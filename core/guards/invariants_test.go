package guards

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cu-planner/core/partition"
	"cu-planner/core/types"
	"cu-planner/internal/errors"
)

func TestCheckPartitionAcceptsGreedyResults(t *testing.T) {
	tests := []struct {
		name  string
		costs []int64
		cfg   types.Configuration
	}{
		{name: "empty", costs: nil, cfg: types.Configuration{RawCapacity: 10}},
		{name: "single window", costs: []int64{3, 3, 3}, cfg: types.Configuration{RawCapacity: 10}},
		{name: "offset closes first window empty", costs: []int64{8, 2}, cfg: types.Configuration{RawCapacity: 10, StartOffset: 5}},
		{name: "oversized", costs: []int64{4, 50, 4}, cfg: types.Configuration{RawCapacity: 12, ReservedMargin: 2}},
		{
			name:  "every window offset",
			costs: []int64{4, 4, 4, 4},
			cfg:   types.Configuration{RawCapacity: 10, StartOffset: 2, OffsetPolicy: types.OffsetEveryWindow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := partition.Partition(tt.costs, tt.cfg)
			require.NoError(t, err)
			assert.Empty(t, CheckPartition(tt.costs, tt.cfg, result))
			assert.NoError(t, Enforce(tt.costs, tt.cfg, result))
		})
	}
}

func TestCheckPartitionViolations(t *testing.T) {
	cfg := types.Configuration{RawCapacity: 10}

	tests := []struct {
		name      string
		costs     []int64
		result    *types.PartitionResult
		invariant string
		window    int
	}{
		{name: "nil result", costs: []int64{1}, result: nil, invariant: "result", window: -1},
		{
			name:      "missing steps",
			costs:     []int64{1, 1, 1},
			result:    &types.PartitionResult{WindowSizes: []int{2}, WindowCount: 1},
			invariant: "coverage",
			window:    -1,
		},
		{
			name:      "negative size",
			costs:     []int64{1},
			result:    &types.PartitionResult{WindowSizes: []int{-1, 2}, WindowCount: 2},
			invariant: "coverage",
			window:    -1,
		},
		{
			name:      "over capacity",
			costs:     []int64{6, 6},
			result:    &types.PartitionResult{WindowSizes: []int{2}, WindowCount: 1},
			invariant: "capacity",
			window:    0,
		},
		{
			name:      "over capacity by a wrapping sum",
			costs:     []int64{1, math.MaxInt64},
			result:    &types.PartitionResult{WindowSizes: []int{2}, WindowCount: 1},
			invariant: "capacity",
			window:    0,
		},
		{
			name:      "oversized shares window",
			costs:     []int64{1, 20},
			result:    &types.PartitionResult{WindowSizes: []int{2}, WindowCount: 1, OversizedSteps: []int{1}},
			invariant: "oversized_isolation",
			window:    0,
		},
		{
			name:      "trailing empty window",
			costs:     []int64{1},
			result:    &types.PartitionResult{WindowSizes: []int{1, 0}, WindowCount: 2},
			invariant: "trailing_window",
			window:    1,
		},
		{
			name:      "count mismatch",
			costs:     []int64{1},
			result:    &types.PartitionResult{WindowSizes: []int{1}, WindowCount: 3},
			invariant: "window_count",
			window:    -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := CheckPartition(tt.costs, cfg, tt.result)
			require.NotEmpty(t, violations)
			assert.Equal(t, tt.invariant, violations[0].Invariant)
			assert.Equal(t, tt.window, violations[0].Window)
		})
	}
}

func TestEnforceReturnsInternalError(t *testing.T) {
	cfg := types.Configuration{RawCapacity: 10}
	result := &types.PartitionResult{WindowSizes: []int{2}, WindowCount: 1}

	err := Enforce([]int64{6, 6}, cfg, result)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeInternal))
	assert.Contains(t, err.Error(), "INVARIANT VIOLATED")
	assert.Contains(t, err.Error(), "capacity (window 0)")
}

func TestViolationString(t *testing.T) {
	assert.Equal(t, "coverage: short", Violation{Invariant: "coverage", Window: -1, Detail: "short"}.String())
	assert.Equal(t, "capacity (window 2): over", Violation{Invariant: "capacity", Window: 2, Detail: "over"}.String())
}
