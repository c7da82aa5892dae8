package types

// Step is one atomic operation with a fixed cost
type Step struct {
	// Label names the operation the step comes from
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Cost is the resource cost of the step
	Cost int64 `json:"cost" yaml:"cost"`
}

// Checkpoint marks a named position in a step sequence
type Checkpoint struct {
	// Name identifies the checkpoint
	Name string `json:"name" yaml:"name"`

	// Step is the number of steps emitted before the checkpoint
	Step int `json:"step" yaml:"step"`
}

// Scenario is a named cost sequence with the budget it is planned against
type Scenario struct {
	// Name identifies the scenario
	Name string `json:"name" yaml:"name"`

	// Description explains what the sequence models
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Source is where the scenario was loaded from (builtin, file path)
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Budget is the window budget the scenario is planned against
	Budget Budget `json:"budget" yaml:"budget"`

	// Steps is the ordered step sequence
	Steps []Step `json:"steps,omitempty" yaml:"steps,omitempty"`

	// Checkpoints are named positions in Steps
	Checkpoints []Checkpoint `json:"checkpoints,omitempty" yaml:"checkpoints,omitempty"`
}

// Costs flattens the step sequence into the cost sequence
func (s *Scenario) Costs() []int64 {
	costs := make([]int64, len(s.Steps))
	for i, step := range s.Steps {
		costs[i] = step.Cost
	}
	return costs
}

// StepsFromCosts wraps bare costs into unlabeled steps
func StepsFromCosts(costs []int64) []Step {
	steps := make([]Step, len(costs))
	for i, c := range costs {
		steps[i] = Step{Cost: c}
	}
	return steps
}
