package engine

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"cu-planner/core/scenario"
	"cu-planner/core/types"
	"cu-planner/internal/errors"
	"cu-planner/internal/metrics"
)

func int64p(v int64) *int64 { return &v }

func testEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.DefaultBudget = types.Budget{MaxUnits: 30}
	cfg.Version = "test"
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	return NewEngine(scenario.GetDefault(), cfg, opts...)
}

func TestPlanInlineCosts(t *testing.T) {
	e := testEngine(t)

	report, err := e.Plan(context.Background(), PlanRequest{Costs: []int64{10, 10, 10}})
	require.NoError(t, err)

	assert.Equal(t, []int{3}, report.Result.WindowSizes)
	assert.Equal(t, int64(0), report.Result.RemainingCapacity)
	assert.Empty(t, report.Scenario)
	assert.Equal(t, "test", report.Metadata.Version)
	assert.Len(t, report.Metadata.InputHash, 16)
	assert.NotEmpty(t, report.Metadata.RunID)
	assert.False(t, report.Metadata.Cached)
}

func TestPlanBudgetOverrides(t *testing.T) {
	e := testEngine(t)

	tests := []struct {
		name      string
		overrides *BudgetOverrides
		policy    types.OffsetPolicy
		want      []int
	}{
		{name: "forced split", overrides: &BudgetOverrides{MaxUnits: int64p(20)}, want: []int{2, 1}},
		{name: "idle reserve", overrides: &BudgetOverrides{IdleUnits: int64p(10)}, want: []int{2, 1}},
		{name: "direct margin", overrides: &BudgetOverrides{MaxUnits: int64p(40), Margin: int64p(20)}, want: []int{2, 1}},
		{name: "offset consumes first window", overrides: &BudgetOverrides{MaxUnits: int64p(20), StartUnits: int64p(18)}, want: []int{0, 2, 1}},
		{
			name:      "offset on every window",
			overrides: &BudgetOverrides{StartUnits: int64p(10)},
			policy:    types.OffsetEveryWindow,
			want:      []int{2, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := e.Plan(context.Background(), PlanRequest{
				Costs:        []int64{10, 10, 10},
				Budget:       tt.overrides,
				OffsetPolicy: tt.policy,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Result.WindowSizes)
		})
	}
}

func TestPlanScenario(t *testing.T) {
	e := testEngine(t)

	report, err := e.Plan(context.Background(), PlanRequest{Scenario: "miller-loop"})
	require.NoError(t, err)

	assert.Equal(t, "miller-loop", report.Scenario)
	assert.Equal(t, 43, report.Result.WindowCount)
	assert.Equal(t, int64(978000), report.Configuration.EffectiveCapacity())
	require.Len(t, report.Checkpoints, 1)
	assert.Equal(t, "main_loop_rounds", report.Checkpoints[0].Name)
	assert.Equal(t, report.Result.WindowOf(960), report.Checkpoints[0].Window)
}

func TestPlanErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewPrometheus(reg, "test")
	e := testEngine(t, WithMetrics(collector))

	tests := []struct {
		name     string
		req      PlanRequest
		wantType errors.Type
	}{
		{name: "scenario and costs", req: PlanRequest{Scenario: "miller-loop", Costs: []int64{1}}, wantType: errors.TypeInput},
		{name: "unknown scenario", req: PlanRequest{Scenario: "nope"}, wantType: errors.TypeNotFound},
		{name: "unknown policy", req: PlanRequest{OffsetPolicy: "sometimes"}, wantType: errors.TypeInvalidConfiguration},
		{name: "negative cost", req: PlanRequest{Costs: []int64{1, -1}}, wantType: errors.TypeInput},
		{
			name:     "margin swallows capacity",
			req:      PlanRequest{Costs: []int64{1}, Budget: &BudgetOverrides{MaxUnits: int64p(1000), Margin: int64p(1000)}},
			wantType: errors.TypeInvalidConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Plan(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.wantType), "got %v", err)
		})
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	var invalid, failed float64
	for _, mf := range families {
		if mf.GetName() != "test_planner_plans_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			switch m.GetLabel()[0].GetValue() {
			case metrics.OutcomeInvalid:
				invalid = m.GetCounter().GetValue()
			case metrics.OutcomeError:
				failed = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 4.0, invalid)
	assert.Equal(t, 1.0, failed)
}

func TestPlanCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := testEngine(t, WithMetrics(metrics.NewPrometheus(reg, "test")))

	req := PlanRequest{Costs: []int64{5, 5, 5}}
	first, err := e.Plan(context.Background(), req)
	require.NoError(t, err)
	second, err := e.Plan(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, first.Metadata.Cached)
	assert.True(t, second.Metadata.Cached)
	assert.Equal(t, first.Metadata.InputHash, second.Metadata.InputHash)
	assert.NotEqual(t, first.Metadata.RunID, second.Metadata.RunID)
	assert.Same(t, first.Result, second.Result)
	assert.Equal(t, 1, e.CacheLen())

	// a different policy is a different input
	_, err = e.Plan(context.Background(), PlanRequest{Costs: req.Costs, OffsetPolicy: types.OffsetEveryWindow})
	require.NoError(t, err)
	assert.Equal(t, 2, e.CacheLen())

	series, err := testutil.GatherAndCount(reg, "test_cache_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)

	e.ClearCache()
	assert.Equal(t, 0, e.CacheLen())
}

func TestPlanCacheDisabled(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.CacheSize = 0
	e := NewEngine(scenario.GetDefault(), cfg, WithLogger(zap.NewNop()))

	for i := 0; i < 2; i++ {
		report, err := e.Plan(context.Background(), PlanRequest{Costs: []int64{1}})
		require.NoError(t, err)
		assert.False(t, report.Metadata.Cached)
	}
	assert.Equal(t, 0, e.CacheLen())
}

func TestPlanLogsOversizedSteps(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e := testEngine(t, WithLogger(zap.New(core)))

	report, err := e.Plan(context.Background(), PlanRequest{
		Costs:  []int64{5, 500, 5},
		Budget: &BudgetOverrides{MaxUnits: int64p(100)},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 1}, report.Result.WindowSizes)
	assert.Equal(t, []int{1}, report.Result.OversizedSteps)

	entries := logs.FilterMessage("steps exceed the effective capacity on their own").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

type brokenPartitioner struct{}

func (brokenPartitioner) Name() string { return "broken" }

func (brokenPartitioner) Partition(costs []int64, _ types.Configuration) (*types.PartitionResult, error) {
	// drops the last step
	return &types.PartitionResult{
		WindowSizes: []int{len(costs) - 1},
		WindowCount: 1,
		TotalSteps:  len(costs),
	}, nil
}

func TestPlanVerifiesPartitionerOutput(t *testing.T) {
	e := testEngine(t, WithPartitioner(brokenPartitioner{}))

	_, err := e.Plan(context.Background(), PlanRequest{Costs: []int64{1, 2, 3}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeInternal))
	assert.Contains(t, err.Error(), "INVARIANT VIOLATED")
	assert.Equal(t, 0, e.CacheLen())
}

func TestPlanHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testEngine(t).Plan(ctx, PlanRequest{Costs: []int64{1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweep(t *testing.T) {
	e := testEngine(t)

	report, err := e.Sweep(context.Background(), SweepRequest{
		PlanRequest: PlanRequest{Costs: []int64{10, 10, 10}},
		IdleFrom:    0,
		IdleTo:      30,
		IdleStep:    10,
	})
	require.NoError(t, err)

	require.Len(t, report.Rows, 4)
	assert.Equal(t, 3, report.TotalSteps)
	assert.Equal(t, types.OffsetFirstWindow, report.Policy)

	assert.Equal(t, int64(30), report.Rows[0].EffectiveCapacity)
	assert.Equal(t, 1, report.Rows[0].WindowCount)
	assert.Equal(t, 2, report.Rows[1].WindowCount)
	assert.Equal(t, 3, report.Rows[2].WindowCount)
	assert.NotEmpty(t, report.Rows[3].Error)

	best, ok := report.Best()
	require.True(t, ok)
	assert.Equal(t, int64(0), best.IdleUnits)
}

func TestSweepScenarioWindowCountsNeverDecrease(t *testing.T) {
	e := testEngine(t)

	report, err := e.Sweep(context.Background(), SweepRequest{
		PlanRequest: PlanRequest{Scenario: "final-exponentiation"},
		IdleFrom:    0,
		IdleTo:      100000,
		IdleStep:    10000,
	})
	require.NoError(t, err)
	require.Len(t, report.Rows, 11)

	for i := 1; i < len(report.Rows); i++ {
		assert.GreaterOrEqual(t, report.Rows[i].WindowCount, report.Rows[i-1].WindowCount)
	}
	assert.Equal(t, 20, report.Rows[3].WindowCount)
}

func TestSweepHugeIdleReserve(t *testing.T) {
	report, err := testEngine(t).Sweep(context.Background(), SweepRequest{
		PlanRequest: PlanRequest{Costs: []int64{10}},
		IdleFrom:    math.MaxInt64 - 5,
		IdleTo:      math.MaxInt64,
		IdleStep:    10,
	})
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Contains(t, report.Rows[0].Error, "INVALID_CONFIGURATION")
}

func TestSweepRequestSettings(t *testing.T) {
	tests := []struct {
		name    string
		req     SweepRequest
		want    []int64
		wantErr bool
	}{
		{name: "single", req: SweepRequest{IdleFrom: 5, IdleTo: 5, IdleStep: 1}, want: []int64{5}},
		{name: "uneven end", req: SweepRequest{IdleFrom: 0, IdleTo: 25, IdleStep: 10}, want: []int64{0, 10, 20}},
		{
			name: "end at int64 max",
			req:  SweepRequest{IdleFrom: math.MaxInt64 - 5, IdleTo: math.MaxInt64, IdleStep: 10},
			want: []int64{math.MaxInt64 - 5},
		},
		{
			name: "whole int64 range",
			req:  SweepRequest{IdleTo: math.MaxInt64, IdleStep: math.MaxInt64 / 2},
			want: []int64{0, math.MaxInt64 / 2, math.MaxInt64 - 1},
		},
		{name: "zero step", req: SweepRequest{IdleTo: 10}, wantErr: true},
		{name: "reversed", req: SweepRequest{IdleFrom: 10, IdleTo: 0, IdleStep: 1}, wantErr: true},
		{name: "negative", req: SweepRequest{IdleFrom: -1, IdleTo: 0, IdleStep: 1}, wantErr: true},
		{name: "too many", req: SweepRequest{IdleTo: MaxSweepSettings, IdleStep: 1}, wantErr: true},
		{
			name:    "fixed margin",
			req:     SweepRequest{PlanRequest: PlanRequest{Budget: &BudgetOverrides{Margin: int64p(1)}}, IdleTo: 1, IdleStep: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.Settings()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.TypeInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBudgetOverridesNil(t *testing.T) {
	var o *BudgetOverrides
	budget := types.Budget{MaxUnits: 10, SecurityPadding: 1, IdleUnits: 2, StartUnits: 3}

	assert.Equal(t, budget, o.Apply(budget))
	cfg := o.Configuration(budget, types.OffsetEveryWindow)
	assert.Equal(t, types.Configuration{StartOffset: 3, RawCapacity: 10, ReservedMargin: 3, OffsetPolicy: types.OffsetEveryWindow}, cfg)
}

func TestAnalyzeLog(t *testing.T) {
	e := testEngine(t)

	report, err := e.AnalyzeLog(context.Background(), "cu.log", strings.NewReader("100\n40\nnoise\n100\n70\n"))
	require.NoError(t, err)

	assert.Equal(t, "cu.log", report.Source)
	assert.Equal(t, []int64{60, 30}, report.Analysis.Deltas())
	assert.Equal(t, 1, report.Analysis.Skipped)
	assert.Len(t, report.Metadata.InputHash, 16)

	_, err = e.AnalyzeLog(context.Background(), "empty", strings.NewReader(""))
	assert.True(t, errors.IsType(err, errors.TypeInput))
}
