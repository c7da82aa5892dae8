// Package cmd provides the CLI commands for cu-planner.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cu-planner/adapters/scenario/hcl"
	"cu-planner/core/engine"
	"cu-planner/core/output"
	"cu-planner/core/scenario"
	"cu-planner/internal/config"
	"cu-planner/internal/logging"
)

// version is overridden at build time with -ldflags
var version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cu-planner",
	Short: "Partition compute-unit cost sequences into transaction windows",
	Long: `cu-planner splits an ordered sequence of per-step compute-unit costs into
consecutive windows that each fit a per-transaction budget.

It ships the pairing verifier scenarios (miller loop, final exponentiation,
input preparation), accepts inline costs or .hcl scenario files, and can
summarize measured compute-unit logs.

Examples:
  cu-planner plan miller-loop
  cu-planner plan --costs 1200,800,950 --max-units 2000 --padding 0
  cu-planner sweep final-exponentiation --idle-from 0 --idle-to 60000 --idle-step 10000
  cu-planner logdelta cu.log`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cu-planner/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(logDeltaCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	config.Set(cfg)

	// Initialize logging
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
	if verbose {
		_ = logging.SetLevel("debug")
	}
}

// newEngine builds an engine from the loaded configuration
func newEngine(opts ...engine.Option) (*engine.Engine, error) {
	cfg := config.Get()

	registry := scenario.GetDefault()
	if dir := cfg.Scenarios.Directory; dir != "" {
		n, err := hcl.RegisterDir(registry, dir, hcl.NewLoader(cfg.Budget))
		if err != nil {
			return nil, err
		}
		logging.Debug("registered scenario files", zap.String("dir", dir), zap.Int("count", n))
	}

	ecfg := engine.DefaultEngineConfig()
	ecfg.DefaultBudget = cfg.Budget
	ecfg.Version = version
	ecfg.CacheSize = cfg.CacheSize()
	return engine.NewEngine(registry, ecfg, opts...), nil
}

// render writes report to the command's output in the named format
func render(cmd *cobra.Command, format string, report output.Report) error {
	if format == "" {
		format = config.Get().Output.DefaultFormat
	}
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}

	cli := output.NewCLIFormatter()
	cli.ShowWindows = config.Get().Output.ShowWindows

	registry := output.NewFormatterRegistry()
	for _, formatter := range []output.Formatter{cli, output.NewJSONFormatter(), output.NewYAMLFormatter()} {
		if err := registry.Register(formatter); err != nil {
			return err
		}
	}
	return output.Render(registry, f, cmd.OutOrStdout(), report)
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cu-planner version %s\n", version)
	},
}
