package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"cu-planner/adapters/scenario/hcl"
	"cu-planner/core/engine"
	"cu-planner/internal/config"
)

var (
	sweepFormat    string
	sweepCosts     []int64
	sweepCostsFile string
	sweepPolicy    string
	sweepFrom      int64
	sweepTo        int64
	sweepStep      int64
	sweepBudget    budgetFlags
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep [scenario | file.hcl]",
	Short: "Plan a sequence across a range of idle reserves",
	Long: `Re-plan one cost sequence for every idle reserve in a range and report
how the window count responds. The row with the fewest windows is marked.

Examples:
  cu-planner sweep final-exponentiation --idle-from 0 --idle-to 60000 --idle-step 10000
  cu-planner sweep --costs 300,300,300 --max-units 1000 --idle-to 400 --idle-step 100`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVarP(&sweepFormat, "format", "f", "", "output format (cli, json, yaml)")
	sweepCmd.Flags().Int64SliceVar(&sweepCosts, "costs", nil, "inline per-step costs")
	sweepCmd.Flags().StringVar(&sweepCostsFile, "costs-file", "", "file of per-step costs: a YAML or JSON list, or one integer per line")
	sweepCmd.Flags().StringVar(&sweepPolicy, "offset-policy", "", "which windows carry the start offset (first-window, every-window)")
	sweepCmd.Flags().Int64Var(&sweepFrom, "idle-from", 0, "first idle reserve")
	sweepCmd.Flags().Int64Var(&sweepTo, "idle-to", 50000, "last idle reserve, inclusive")
	sweepCmd.Flags().Int64Var(&sweepStep, "idle-step", 10000, "idle reserve increment")
	sweepBudget.register(sweepCmd, false)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	costs, err := inlineCosts(sweepCosts, sweepCostsFile)
	if err != nil {
		return err
	}

	req := engine.SweepRequest{
		PlanRequest: engine.PlanRequest{
			Costs:        costs,
			Budget:       sweepBudget.overrides(cmd),
			OffsetPolicy: offsetPolicy(sweepPolicy),
		},
		IdleFrom: sweepFrom,
		IdleTo:   sweepTo,
		IdleStep: sweepStep,
	}

	if len(args) == 1 {
		req.Scenario = args[0]
		if hcl.IsScenarioFile(args[0]) {
			// sweeps resolve by name, so the file joins the registry first
			source := hcl.NewFileSource(args[0], hcl.NewLoader(config.Get().Budget))
			if err := eng.Scenarios().Register(source); err != nil {
				return err
			}
			req.Scenario = source.Name()
		}
	}

	report, err := eng.Sweep(ctx, req)
	if err != nil {
		return err
	}
	return render(cmd, sweepFormat, report)
}
