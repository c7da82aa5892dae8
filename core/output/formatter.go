// Package output provides output formatting interfaces.
// This package produces human and machine-readable outputs.
package output

import (
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cu-planner/core/logdelta"
	"cu-planner/core/types"
	"cu-planner/internal/errors"
)

// Format represents output format type
type Format string

const (
	// FormatCLI is a human-readable CLI table
	FormatCLI Format = "cli"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"

	// FormatYAML is machine-readable YAML
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name, accepting "yml" for YAML
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cli", "table":
		return FormatCLI, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", errors.Newf(errors.TypeInput, "unknown output format %q", s)
	}
}

// Report is anything a formatter can render
type Report interface {
	// Kind names the report type
	Kind() string
}

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	// Render produces output for the given report
	Render(w io.Writer, report Report) error
}

// Metadata contains execution context
type Metadata struct {
	// RunID identifies this run
	RunID string `json:"run_id" yaml:"run_id"`

	// Timestamp is when the run was performed
	Timestamp string `json:"timestamp" yaml:"timestamp"`

	// Duration is how long the run took
	Duration string `json:"duration" yaml:"duration"`

	// InputHash is a fingerprint of the planning input
	InputHash string `json:"input_hash,omitempty" yaml:"input_hash,omitempty"`

	// Version is the tool version
	Version string `json:"version" yaml:"version"`

	// Cached is set when the result came from the engine cache
	Cached bool `json:"cached,omitempty" yaml:"cached,omitempty"`
}

// NewMetadata stamps a new run
func NewMetadata(version string, started time.Time) Metadata {
	return Metadata{
		RunID:     uuid.NewString(),
		Timestamp: started.UTC().Format(time.RFC3339),
		Version:   version,
	}
}

// Finish records the run duration
func (m *Metadata) Finish(started time.Time) {
	m.Duration = time.Since(started).String()
}

// CheckpointPlacement locates a named checkpoint in the plan
type CheckpointPlacement struct {
	Name string `json:"name" yaml:"name"`

	// Step is the number of steps before the checkpoint
	Step int `json:"step" yaml:"step"`

	// Window is the window holding the step at Step, or the last window
	// when the checkpoint sits at the very end
	Window int `json:"window" yaml:"window"`
}

// PlanReport contains the complete planning output
type PlanReport struct {
	// Scenario is the planned scenario, empty for inline costs
	Scenario string `json:"scenario,omitempty" yaml:"scenario,omitempty"`

	// Description explains the scenario
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Configuration is the configuration that was enforced
	Configuration types.Configuration `json:"configuration" yaml:"configuration"`

	// Result is the partition result
	Result *types.PartitionResult `json:"result" yaml:"result"`

	// Checkpoints are the scenario checkpoints mapped onto windows
	Checkpoints []CheckpointPlacement `json:"checkpoints,omitempty" yaml:"checkpoints,omitempty"`

	// Metadata contains execution context
	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

// Kind names the report type
func (r *PlanReport) Kind() string { return "plan" }

// PlaceCheckpoints maps checkpoints onto the windows of result
func PlaceCheckpoints(checkpoints []types.Checkpoint, result *types.PartitionResult) []CheckpointPlacement {
	if len(checkpoints) == 0 {
		return nil
	}
	out := make([]CheckpointPlacement, len(checkpoints))
	for i, cp := range checkpoints {
		window := result.WindowOf(cp.Step)
		if window < 0 {
			window = result.WindowCount - 1
		}
		out[i] = CheckpointPlacement{Name: cp.Name, Step: cp.Step, Window: window}
	}
	return out
}

// SweepRow is one capacity setting of a sweep
type SweepRow struct {
	IdleUnits         int64 `json:"idle_units" yaml:"idle_units"`
	EffectiveCapacity int64 `json:"effective_capacity" yaml:"effective_capacity"`
	WindowCount       int   `json:"window_count" yaml:"window_count"`
	RemainingCapacity int64 `json:"remaining_capacity" yaml:"remaining_capacity"`
	OversizedSteps    int   `json:"oversized_steps" yaml:"oversized_steps"`

	// Error is set when the setting is not a valid configuration
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// SweepReport is a what-if table of window counts across idle reserves
type SweepReport struct {
	Scenario   string             `json:"scenario,omitempty" yaml:"scenario,omitempty"`
	TotalSteps int                `json:"total_steps" yaml:"total_steps"`
	Budget     types.Budget       `json:"budget" yaml:"budget"`
	Policy     types.OffsetPolicy `json:"offset_policy" yaml:"offset_policy"`
	Rows       []SweepRow         `json:"rows" yaml:"rows"`
	Metadata   Metadata           `json:"metadata" yaml:"metadata"`
}

// Kind names the report type
func (r *SweepReport) Kind() string { return "sweep" }

// Best returns the valid row with the fewest windows, preferring the
// smallest idle reserve on ties
func (r *SweepReport) Best() (SweepRow, bool) {
	var best SweepRow
	found := false
	for _, row := range r.Rows {
		if row.Error != "" {
			continue
		}
		if !found || row.WindowCount < best.WindowCount {
			best = row
			found = true
		}
	}
	return best, found
}

// LogDeltaReport wraps a log analysis
type LogDeltaReport struct {
	// Source names the analyzed log
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	Analysis *logdelta.Report `json:"analysis" yaml:"analysis"`

	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

// Kind names the report type
func (r *LogDeltaReport) Kind() string { return "log-delta" }

// FormatterRegistry manages formatter registration
type FormatterRegistry interface {
	// Register adds a formatter to the registry
	Register(formatter Formatter) error

	// GetFormatter returns a formatter for a format type
	GetFormatter(format Format) (Formatter, bool)

	// GetAll returns all registered formatters
	GetAll() []Formatter
}

// DefaultFormatterRegistry is the default FormatterRegistry implementation
type DefaultFormatterRegistry struct {
	mu         sync.RWMutex
	formatters map[Format]Formatter
}

// NewFormatterRegistry creates an empty registry
func NewFormatterRegistry() *DefaultFormatterRegistry {
	return &DefaultFormatterRegistry{formatters: make(map[Format]Formatter)}
}

// NewDefaultRegistry creates a registry holding the cli, json and yaml formatters
func NewDefaultRegistry() *DefaultFormatterRegistry {
	r := NewFormatterRegistry()
	for _, f := range []Formatter{NewCLIFormatter(), NewJSONFormatter(), NewYAMLFormatter()} {
		// formats are distinct
		_ = r.Register(f)
	}
	return r
}

// Register adds a formatter to the registry
func (r *DefaultFormatterRegistry) Register(formatter Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[formatter.Format()]; exists {
		return errors.Newf(errors.TypeInput, "formatter already registered: %s", formatter.Format())
	}
	r.formatters[formatter.Format()] = formatter
	return nil
}

// GetFormatter returns a formatter for a format type
func (r *DefaultFormatterRegistry) GetFormatter(format Format) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formatters[format]
	return f, ok
}

// GetAll returns all registered formatters sorted by format
func (r *DefaultFormatterRegistry) GetAll() []Formatter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Formatter, 0, len(r.formatters))
	for _, f := range r.formatters {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Format() < all[j].Format() })
	return all
}

// Render looks up the formatter for format and renders report with it
func Render(registry FormatterRegistry, format Format, w io.Writer, report Report) error {
	f, ok := registry.GetFormatter(format)
	if !ok {
		return errors.NotFound("formatter", string(format))
	}
	return f.Render(w, report)
}
