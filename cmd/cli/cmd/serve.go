package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"cu-planner/api"
	"cu-planner/core/engine"
	"cu-planner/internal/config"
	"cu-planner/internal/metrics"
)

var serveAddr string

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the planning API over HTTP",
	Long: `Start the HTTP API exposing /plan, /sweep, /log-delta, /scenarios and
Prometheus metrics on /metrics. The server drains in-flight requests on
SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eng, err := newEngine(engine.WithMetrics(metrics.NewPrometheus(reg, "")))
	if err != nil {
		return err
	}

	server := api.NewServer(eng, api.ServerConfig{
		Version:      version,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Gatherer:     reg,
	})

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "cu-planner %s listening on %s\n", version, addr)
	return server.ListenAndServe(ctx, api.ListenConfig{
		Addr:         addr,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	})
}
