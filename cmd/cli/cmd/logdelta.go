package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cu-planner/internal/errors"
)

var logDeltaFormat string

// logDeltaCmd summarizes a compute-unit log
var logDeltaCmd = &cobra.Command{
	Use:   "logdelta <file | ->",
	Short: "Summarize consumed compute units from a log",
	Long: `Read a log of remaining compute-unit values, one integer per line, pair
consecutive lines and report the units consumed by each pair.

Lines that are not integers are skipped; a trailing unpaired value is dropped.
Use "-" to read from standard input.

Examples:
  cu-planner logdelta cu.log
  grep consumed program.log | cut -d' ' -f4 | cu-planner logdelta -`,
	Args: cobra.ExactArgs(1),
	RunE: runLogDelta,
}

func init() {
	logDeltaCmd.Flags().StringVarP(&logDeltaFormat, "format", "f", "", "output format (cli, json, yaml)")
}

func runLogDelta(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	source := args[0]
	var r io.Reader
	if source == "-" {
		r = cmd.InOrStdin()
		source = "stdin"
	} else {
		f, err := os.Open(source)
		if err != nil {
			if os.IsNotExist(err) {
				return errors.NotFound("log file", source)
			}
			return errors.Wrapf(errors.TypeInput, err, "opening %s", source)
		}
		defer f.Close()
		r = f
	}

	report, err := eng.AnalyzeLog(ctx, source, r)
	if err != nil {
		return err
	}
	return render(cmd, logDeltaFormat, report)
}
