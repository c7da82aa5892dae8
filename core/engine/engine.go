// Package engine provides the API-primary planning engine.
// CLI and HTTP are thin wrappers around this engine.
package engine

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"cu-planner/core/determinism"
	"cu-planner/core/guards"
	"cu-planner/core/logdelta"
	"cu-planner/core/output"
	"cu-planner/core/partition"
	"cu-planner/core/scenario"
	"cu-planner/core/types"
	"cu-planner/internal/errors"
	"cu-planner/internal/logging"
	"cu-planner/internal/metrics"
)

// Engine is the primary API for planning.
// All other interfaces (CLI, HTTP) are thin wrappers.
type Engine struct {
	scenarios   scenario.Registry
	partitioner partition.Partitioner
	metrics     metrics.Collector
	logger      *zap.Logger

	// results keyed by input fingerprint; cached results are shared and must not be mutated
	cache *xsync.Map[uint64, *types.PartitionResult]

	config EngineConfig
}

// EngineConfig configures the planning engine
type EngineConfig struct {
	// DefaultBudget applies to inline cost sequences
	DefaultBudget types.Budget

	// Version is stamped into report metadata
	Version string

	// CacheSize bounds the number of cached results; 0 disables the cache
	CacheSize int

	// VerifyInvariants re-checks every computed result
	VerifyInvariants bool
}

// DefaultEngineConfig returns the engine defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultBudget: types.Budget{
			MaxUnits:        scenario.MaxComputeUnits,
			SecurityPadding: scenario.SecurityPadding,
		},
		Version:          "dev",
		CacheSize:        1024,
		VerifyInvariants: true,
	}
}

// Option customizes an Engine
type Option func(*Engine)

// WithMetrics sets the metrics collector
func WithMetrics(c metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = c
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithPartitioner replaces the greedy partitioner
func WithPartitioner(p partition.Partitioner) Option {
	return func(e *Engine) {
		e.partitioner = p
	}
}

// NewEngine creates a planning engine over a scenario registry
func NewEngine(scenarios scenario.Registry, config EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		scenarios:   scenarios,
		partitioner: partition.NewGreedy(),
		metrics:     metrics.NewNop(),
		logger:      logging.Named("engine"),
		cache:       xsync.NewMap[uint64, *types.PartitionResult](),
		config:      config,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Scenarios returns the scenario registry
func (e *Engine) Scenarios() scenario.Registry {
	return e.scenarios
}

// Version returns the version stamped into reports
func (e *Engine) Version() string {
	return e.config.Version
}

// Plan resolves the request's sequence and partitions it
func (e *Engine) Plan(ctx context.Context, req PlanRequest) (*output.PlanReport, error) {
	if err := req.validate(); err != nil {
		e.metrics.RecordPlan(outcomeOf(err), 0, 0)
		return nil, err
	}

	s, err := e.resolve(ctx, req)
	if err != nil {
		e.metrics.RecordPlan(outcomeOf(err), 0, 0)
		return nil, err
	}
	return e.PlanScenario(ctx, s, req.Budget, req.OffsetPolicy)
}

// PlanScenario partitions an already loaded scenario
func (e *Engine) PlanScenario(
	ctx context.Context,
	s *types.Scenario,
	overrides *BudgetOverrides,
	policy types.OffsetPolicy,
) (*output.PlanReport, error) {
	started := time.Now()
	cfg := overrides.Configuration(s.Budget, policy)
	costs := s.Costs()

	logger := e.logger.With(
		zap.String("scenario", s.Name),
		zap.Int("steps", len(costs)),
		zap.Int64("effective_capacity", cfg.EffectiveCapacity()),
	)
	logger.Debug("planning")

	result, cached, err := e.partition(ctx, costs, cfg)
	if err != nil {
		e.metrics.RecordPlan(outcomeOf(err), 0, time.Since(started).Seconds())
		logger.Debug("plan failed", zap.Error(err))
		return nil, err
	}

	outcome := metrics.OutcomeSuccess
	if result.HasOversized {
		outcome = metrics.OutcomeOversized
		logger.Warn("steps exceed the effective capacity on their own",
			zap.Ints("oversized_steps", result.OversizedSteps))
	}
	e.metrics.RecordPlan(outcome, result.WindowCount, time.Since(started).Seconds())

	report := &output.PlanReport{
		Scenario:      s.Name,
		Description:   s.Description,
		Configuration: cfg,
		Result:        result,
		Checkpoints:   output.PlaceCheckpoints(s.Checkpoints, result),
		Metadata:      output.NewMetadata(e.config.Version, started),
	}
	report.Metadata.InputHash = determinism.FingerprintHex(costs, cfg)
	report.Metadata.Cached = cached
	report.Metadata.Finish(started)

	logger.Info("planned",
		zap.Int("windows", result.WindowCount),
		zap.Int64("remaining_capacity", result.RemainingCapacity),
		zap.Bool("cached", cached))
	return report, nil
}

// Sweep plans one sequence across a range of idle reserves
func (e *Engine) Sweep(ctx context.Context, req SweepRequest) (*output.SweepReport, error) {
	started := time.Now()
	settings, err := req.Settings()
	if err != nil {
		return nil, err
	}

	s, err := e.resolve(ctx, req.PlanRequest)
	if err != nil {
		return nil, err
	}
	budget := req.Budget.Apply(s.Budget)
	costs := s.Costs()

	report := &output.SweepReport{
		Scenario:   s.Name,
		TotalSteps: len(costs),
		Budget:     budget,
		Policy:     req.OffsetPolicy,
		Rows:       make([]output.SweepRow, 0, len(settings)),
		Metadata:   output.NewMetadata(e.config.Version, started),
	}
	if report.Policy == "" {
		report.Policy = types.OffsetFirstWindow
	}

	for _, idle := range settings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b := budget
		b.IdleUnits = idle
		cfg := b.Configuration()
		cfg.OffsetPolicy = req.OffsetPolicy

		row := output.SweepRow{IdleUnits: idle, EffectiveCapacity: cfg.EffectiveCapacity()}
		result, _, err := e.partition(ctx, costs, cfg)
		switch {
		case errors.IsType(err, errors.TypeInvalidConfiguration):
			row.Error = err.Error()
		case err != nil:
			return nil, err
		default:
			row.WindowCount = result.WindowCount
			row.RemainingCapacity = result.RemainingCapacity
			row.OversizedSteps = len(result.OversizedSteps)
		}
		report.Rows = append(report.Rows, row)
	}

	e.metrics.RecordSweep(len(settings))
	report.Metadata.Finish(started)
	e.logger.Info("swept",
		zap.String("scenario", s.Name),
		zap.Int("settings", len(settings)))
	return report, nil
}

// AnalyzeLog pairs the values of a compute-unit log. source names the log in the report.
func (e *Engine) AnalyzeLog(ctx context.Context, source string, r io.Reader) (*output.LogDeltaReport, error) {
	started := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.TypeInput, "reading log", err)
	}
	analysis, err := logdelta.Analyze(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	report := &output.LogDeltaReport{
		Source:   source,
		Analysis: analysis,
		Metadata: output.NewMetadata(e.config.Version, started),
	}
	report.Metadata.InputHash = determinism.HashString(string(body))
	report.Metadata.Finish(started)

	e.logger.Debug("analyzed log",
		zap.String("source", source),
		zap.Int("pairs", len(analysis.Pairs)),
		zap.Int("skipped", analysis.Skipped))
	return report, nil
}

// ClearCache drops every cached result
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// CacheLen returns the number of cached results
func (e *Engine) CacheLen() int {
	return e.cache.Size()
}

func (e *Engine) resolve(ctx context.Context, req PlanRequest) (*types.Scenario, error) {
	if req.Scenario != "" {
		return e.scenarios.Load(ctx, req.Scenario)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &types.Scenario{
		Budget: e.config.DefaultBudget,
		Steps:  types.StepsFromCosts(req.Costs),
	}, nil
}

// partition runs the partitioner through the cache. The bool reports a cache hit.
func (e *Engine) partition(ctx context.Context, costs []int64, cfg types.Configuration) (*types.PartitionResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}

	key := determinism.Fingerprint(costs, cfg)
	if e.config.CacheSize > 0 {
		if result, ok := e.cache.Load(key); ok {
			e.metrics.RecordCacheHit()
			e.logger.Debug("cache hit", zap.Uint64("fingerprint", key))
			return result, true, nil
		}
		e.metrics.RecordCacheMiss()
	}

	result, err := e.partitioner.Partition(costs, cfg)
	if err != nil {
		return nil, false, err
	}
	if e.config.VerifyInvariants {
		if err := guards.Enforce(costs, cfg, result); err != nil {
			e.logger.Error("partition result failed verification",
				zap.String("partitioner", e.partitioner.Name()),
				zap.Error(err))
			return nil, false, err
		}
	}
	if result.HasOversized {
		e.metrics.AddOversizedSteps(len(result.OversizedSteps))
	}

	if e.config.CacheSize > 0 && e.cache.Size() < e.config.CacheSize {
		e.cache.Store(key, result)
	}
	return result, false, nil
}

func outcomeOf(err error) string {
	switch errors.TypeOf(err) {
	case errors.TypeInvalidConfiguration, errors.TypeInput:
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
