// Package sequence assembles cost sequences from named operation arms.
// It is the data-preparation step in front of the partitioner: scenarios describe
// which arms run in which order, the builder flattens them into steps.
package sequence

import (
	"fmt"
	"strings"

	"cu-planner/core/types"
	"cu-planner/internal/errors"
)

// Condition decides whether a loop step runs in a given iteration
type Condition int

const (
	// Always runs the step in every iteration
	Always Condition = iota

	// NotFirst runs the step in every iteration except the first
	NotFirst

	// BitSet runs the step when the iteration's pattern bit is non-zero
	BitSet
)

// String returns the condition keyword
func (c Condition) String() string {
	switch c {
	case NotFirst:
		return "not_first"
	case BitSet:
		return "bit_set"
	default:
		return "always"
	}
}

// ParseCondition parses a condition keyword. The empty string means Always.
func ParseCondition(s string) (Condition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "always":
		return Always, nil
	case "not_first":
		return NotFirst, nil
	case "bit_set":
		return BitSet, nil
	default:
		return Always, errors.Newf(errors.TypeInput, "unknown loop condition %q", s)
	}
}

// LoopStep is one arm emitted per loop iteration
type LoopStep struct {
	// Arm names a defined arm
	Arm string

	// When decides whether the arm runs in an iteration
	When Condition

	// Pad emits zero-cost placeholders of the arm's length when When fails,
	// keeping every iteration the same length
	Pad bool
}

// Built is the flattened output of a Builder
type Built struct {
	Steps       []types.Step
	Checkpoints []types.Checkpoint
}

// Costs returns the bare cost sequence
func (b *Built) Costs() []int64 {
	costs := make([]int64, len(b.Steps))
	for i, s := range b.Steps {
		costs[i] = s.Cost
	}
	return costs
}

// Builder accumulates steps. Methods chain; problems are collected and
// reported together by Build.
type Builder struct {
	arms        map[string][]int64
	steps       []types.Step
	checkpoints []types.Checkpoint
	seenMarks   map[string]bool
	problems    []string
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{
		arms:      make(map[string][]int64),
		seenMarks: make(map[string]bool),
	}
}

// DefineArm registers a named arm and its per-step costs
func (b *Builder) DefineArm(name string, costs ...int64) *Builder {
	switch {
	case name == "":
		b.fail("arm name is empty")
		return b
	case b.arms[name] != nil:
		b.fail("arm %q defined twice", name)
		return b
	case len(costs) == 0:
		b.fail("arm %q has no costs", name)
		return b
	}
	for i, c := range costs {
		if c < 0 {
			b.fail("arm %q step %d has negative cost %d", name, i, c)
			return b
		}
	}
	b.arms[name] = append([]int64(nil), costs...)
	return b
}

// HasArm reports whether an arm is defined
func (b *Builder) HasArm(name string) bool {
	return b.arms[name] != nil
}

// Emit appends the steps of each arm in order
func (b *Builder) Emit(arms ...string) *Builder {
	for _, name := range arms {
		b.emitArm("", name, false)
	}
	return b
}

// Pad appends zero-cost placeholders as long as each arm
func (b *Builder) Pad(arms ...string) *Builder {
	for _, name := range arms {
		b.emitArm("", name, true)
	}
	return b
}

// Zero appends n unlabeled zero-cost steps
func (b *Builder) Zero(n int) *Builder {
	if n < 0 {
		b.fail("zero count %d is negative", n)
		return b
	}
	for i := 0; i < n; i++ {
		b.steps = append(b.steps, types.Step{Label: "zero", Cost: 0})
	}
	return b
}

// Loop emits steps once per pattern entry
func (b *Builder) Loop(name string, pattern []int, steps []LoopStep) *Builder {
	if len(steps) == 0 {
		b.fail("loop %q has no steps", name)
		return b
	}
	for _, s := range steps {
		if !b.HasArm(s.Arm) {
			b.fail("loop %q references unknown arm %q", name, s.Arm)
			return b
		}
	}

	for i, bit := range pattern {
		prefix := fmt.Sprintf("%s[%d]/", name, i)
		for _, s := range steps {
			if s.runs(i, bit) {
				b.emitArm(prefix, s.Arm, false)
			} else if s.Pad {
				b.emitArm(prefix, s.Arm, true)
			}
		}
	}
	return b
}

// Checkpoint records the current sequence length under name
func (b *Builder) Checkpoint(name string) *Builder {
	if b.seenMarks[name] {
		b.fail("checkpoint %q recorded twice", name)
		return b
	}
	b.seenMarks[name] = true
	b.checkpoints = append(b.checkpoints, types.Checkpoint{Name: name, Step: len(b.steps)})
	return b
}

// Len returns the number of steps emitted so far
func (b *Builder) Len() int {
	return len(b.steps)
}

// Build returns the flattened sequence, or every problem met while building
func (b *Builder) Build() (*Built, error) {
	if len(b.problems) > 0 {
		return nil, errors.Newf(errors.TypeInput, "invalid sequence: %s", strings.Join(b.problems, "; ")).
			WithContext("problems", append([]string(nil), b.problems...))
	}
	return &Built{
		Steps:       append([]types.Step(nil), b.steps...),
		Checkpoints: append([]types.Checkpoint(nil), b.checkpoints...),
	}, nil
}

func (s LoopStep) runs(iteration, bit int) bool {
	switch s.When {
	case NotFirst:
		return iteration > 0
	case BitSet:
		return bit != 0
	default:
		return true
	}
}

func (b *Builder) emitArm(prefix, name string, pad bool) {
	costs, ok := b.arms[name]
	if !ok {
		b.fail("unknown arm %q", name)
		return
	}
	for k, c := range costs {
		label := fmt.Sprintf("%s%s[%d]", prefix, name, k)
		if pad {
			b.steps = append(b.steps, types.Step{Label: "pad:" + label, Cost: 0})
			continue
		}
		b.steps = append(b.steps, types.Step{Label: label, Cost: c})
	}
}

func (b *Builder) fail(format string, args ...interface{}) {
	b.problems = append(b.problems, fmt.Sprintf(format, args...))
}
