package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"cu-planner/adapters/scenario/hcl"
	"cu-planner/core/engine"
	"cu-planner/core/sequence"
	"cu-planner/core/types"
	"cu-planner/internal/config"
	"cu-planner/internal/errors"
)

var (
	planFormat    string
	planCosts     []int64
	planCostsFile string
	planPolicy    string
	planBudget    budgetFlags
)

// budgetFlags holds the budget override flags shared by plan and sweep
type budgetFlags struct {
	maxUnits int64
	padding  int64
	idle     int64
	start    int64
	margin   int64
}

func (b *budgetFlags) register(cmd *cobra.Command, withIdle bool) {
	cmd.Flags().Int64Var(&b.maxUnits, "max-units", 0, "per-window compute unit ceiling")
	cmd.Flags().Int64Var(&b.padding, "padding", 0, "security padding kept free in every window")
	cmd.Flags().Int64Var(&b.start, "offset", 0, "start offset charged before the first step")
	if withIdle {
		cmd.Flags().Int64Var(&b.idle, "idle", 0, "idle reserve kept free in every window")
		cmd.Flags().Int64Var(&b.margin, "margin", 0, "reserved margin, replacing padding plus idle")
	}
}

// overrides returns only the flags the user actually set
func (b *budgetFlags) overrides(cmd *cobra.Command) *engine.BudgetOverrides {
	o := &engine.BudgetOverrides{}
	set := false
	pick := func(name string, v int64, dst **int64) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = &v
			set = true
		}
	}
	pick("max-units", b.maxUnits, &o.MaxUnits)
	pick("padding", b.padding, &o.SecurityPadding)
	pick("idle", b.idle, &o.IdleUnits)
	pick("offset", b.start, &o.StartUnits)
	pick("margin", b.margin, &o.Margin)
	if !set {
		return nil
	}
	return o
}

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan [scenario | file.hcl]",
	Short: "Partition a cost sequence into windows",
	Long: `Partition a built-in scenario, a scenario file or an inline cost sequence.

Without an argument the costs come from --costs or --costs-file, planned
against the configured default budget.

Examples:
  cu-planner plan miller-loop
  cu-planner plan ./scenarios/pairing.hcl --format json
  cu-planner plan --costs 500,700,300 --max-units 1000 --padding 0
  cu-planner plan --costs-file costs.yaml --offset-policy every-window`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planFormat, "format", "f", "", "output format (cli, json, yaml)")
	planCmd.Flags().Int64SliceVar(&planCosts, "costs", nil, "inline per-step costs")
	planCmd.Flags().StringVar(&planCostsFile, "costs-file", "", "file of per-step costs: a YAML or JSON list, or one integer per line")
	planCmd.Flags().StringVar(&planPolicy, "offset-policy", "", "which windows carry the start offset (first-window, every-window)")
	planBudget.register(planCmd, true)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	costs, err := inlineCosts(planCosts, planCostsFile)
	if err != nil {
		return err
	}

	req := engine.PlanRequest{
		Costs:        costs,
		Budget:       planBudget.overrides(cmd),
		OffsetPolicy: offsetPolicy(planPolicy),
	}

	if len(args) == 1 && hcl.IsScenarioFile(args[0]) {
		if len(costs) > 0 {
			return errors.Input("a plan takes either a scenario or inline costs, not both")
		}
		s, err := hcl.NewLoader(config.Get().Budget).LoadFile(args[0])
		if err != nil {
			return err
		}
		report, err := eng.PlanScenario(ctx, s, req.Budget, req.OffsetPolicy)
		if err != nil {
			return err
		}
		return render(cmd, planFormat, report)
	}

	if len(args) == 1 {
		req.Scenario = args[0]
	}
	report, err := eng.Plan(ctx, req)
	if err != nil {
		return err
	}
	return render(cmd, planFormat, report)
}

// inlineCosts merges --costs with the contents of --costs-file
func inlineCosts(flagCosts []int64, path string) ([]int64, error) {
	if path == "" {
		return flagCosts, nil
	}
	if len(flagCosts) > 0 {
		return nil, errors.Input("--costs and --costs-file are mutually exclusive")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("costs file", path)
		}
		return nil, errors.Wrapf(errors.TypeInput, err, "reading %s", path)
	}

	return sequence.ParseCosts(data, path)
}

// offsetPolicy falls back to the configured policy
func offsetPolicy(flag string) types.OffsetPolicy {
	if flag != "" {
		return types.OffsetPolicy(flag)
	}
	return config.Get().OffsetPolicy
}
