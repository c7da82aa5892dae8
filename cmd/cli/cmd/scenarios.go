package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cu-planner/core/scenario"
)

var scenariosShowCosts bool

// scenariosCmd lists the registered scenarios
var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List available scenarios",
	Long: `List the built-in scenarios and any scenario files registered from the
configured scenario directory.`,
	Args: cobra.NoArgs,
	RunE: runScenarios,
}

func init() {
	scenariosCmd.Flags().BoolVar(&scenariosShowCosts, "steps", false, "load each scenario and show its step count and total cost")
}

func runScenarios(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	if scenariosShowCosts {
		fmt.Fprintln(w, "NAME\tSTEPS\tTOTAL\tDESCRIPTION")
	} else {
		fmt.Fprintln(w, "NAME\tDESCRIPTION")
	}

	for _, src := range eng.Scenarios().GetAll() {
		if !scenariosShowCosts {
			fmt.Fprintf(w, "%s\t%s\n", src.Name(), src.Description())
			continue
		}
		steps, total, err := summarize(ctx, src)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", src.Name(), steps, total, src.Description())
	}
	return w.Flush()
}

func summarize(ctx context.Context, src scenario.Source) (int, int64, error) {
	s, err := src.Load(ctx)
	if err != nil {
		return 0, 0, err
	}
	var total int64
	for _, c := range s.Costs() {
		total += c
	}
	return len(s.Steps), total, nil
}
