package engine

import (
	"cu-planner/core/types"
	"cu-planner/internal/errors"
)

// BudgetOverrides replaces individual budget fields. Nil fields keep the
// scenario's (or the default) value.
type BudgetOverrides struct {
	MaxUnits        *int64 `json:"max_units,omitempty" yaml:"max_units,omitempty"`
	SecurityPadding *int64 `json:"security_padding,omitempty" yaml:"security_padding,omitempty"`
	IdleUnits       *int64 `json:"idle_units,omitempty" yaml:"idle_units,omitempty"`
	StartUnits      *int64 `json:"start_units,omitempty" yaml:"start_units,omitempty"`

	// Margin sets the reserved margin directly instead of padding plus idle
	Margin *int64 `json:"margin,omitempty" yaml:"margin,omitempty"`
}

// Apply returns budget with the overrides applied. Margin is not a budget
// field and is applied by Configuration.
func (o *BudgetOverrides) Apply(budget types.Budget) types.Budget {
	if o == nil {
		return budget
	}
	if o.MaxUnits != nil {
		budget.MaxUnits = *o.MaxUnits
	}
	if o.SecurityPadding != nil {
		budget.SecurityPadding = *o.SecurityPadding
	}
	if o.IdleUnits != nil {
		budget.IdleUnits = *o.IdleUnits
	}
	if o.StartUnits != nil {
		budget.StartUnits = *o.StartUnits
	}
	return budget
}

// Configuration converts budget into a configuration, honouring Margin
func (o *BudgetOverrides) Configuration(budget types.Budget, policy types.OffsetPolicy) types.Configuration {
	cfg := o.Apply(budget).Configuration()
	if o != nil && o.Margin != nil {
		cfg.ReservedMargin = *o.Margin
	}
	cfg.OffsetPolicy = policy
	return cfg
}

// PlanRequest is the input to planning. Exactly one of Scenario and Costs
// names the sequence; an empty request plans the empty sequence.
type PlanRequest struct {
	// Scenario names a registered scenario
	Scenario string `json:"scenario,omitempty" yaml:"scenario,omitempty"`

	// Costs is an inline cost sequence planned against the default budget
	Costs []int64 `json:"costs,omitempty" yaml:"costs,omitempty"`

	// Budget overrides individual budget fields
	Budget *BudgetOverrides `json:"budget,omitempty" yaml:"budget,omitempty"`

	// OffsetPolicy selects which windows carry the start offset
	OffsetPolicy types.OffsetPolicy `json:"offset_policy,omitempty" yaml:"offset_policy,omitempty"`
}

func (r *PlanRequest) validate() error {
	if r.Scenario != "" && len(r.Costs) > 0 {
		return errors.Input("a plan takes either a scenario or inline costs, not both")
	}
	if !r.OffsetPolicy.IsValid() {
		return errors.InvalidConfiguration("unknown offset policy %q", r.OffsetPolicy)
	}
	return nil
}

// MaxSweepSettings bounds the number of settings a sweep evaluates
const MaxSweepSettings = 1000

// SweepRequest plans one sequence across a range of idle reserves
type SweepRequest struct {
	PlanRequest `yaml:",inline"`

	// IdleFrom is the first idle reserve tried
	IdleFrom int64 `json:"idle_from" yaml:"idle_from"`

	// IdleTo is the last idle reserve tried, inclusive
	IdleTo int64 `json:"idle_to" yaml:"idle_to"`

	// IdleStep is the increment between settings
	IdleStep int64 `json:"idle_step" yaml:"idle_step"`
}

// Settings returns the idle reserves the sweep evaluates
func (r *SweepRequest) Settings() ([]int64, error) {
	if err := r.PlanRequest.validate(); err != nil {
		return nil, err
	}
	if r.Budget != nil && r.Budget.Margin != nil {
		return nil, errors.Input("a sweep varies the idle reserve and cannot take a fixed margin")
	}
	if r.IdleStep <= 0 {
		return nil, errors.Newf(errors.TypeInput, "idle step must be positive, got %d", r.IdleStep)
	}
	if r.IdleFrom < 0 || r.IdleTo < r.IdleFrom {
		return nil, errors.Newf(errors.TypeInput, "invalid idle range %d..%d", r.IdleFrom, r.IdleTo)
	}
	n := (r.IdleTo-r.IdleFrom)/r.IdleStep + 1
	if n > MaxSweepSettings {
		return nil, errors.Newf(errors.TypeInput, "sweep covers %d settings, at most %d allowed", n, MaxSweepSettings)
	}

	// counted rather than stepped: idle += step can wrap near MaxInt64
	settings := make([]int64, 0, n)
	for k := int64(0); k < n; k++ {
		settings = append(settings, r.IdleFrom+k*r.IdleStep)
	}
	return settings, nil
}
