// Package main is the entry point for the cu-planner HTTP server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"cu-planner/adapters/scenario/hcl"
	"cu-planner/api"
	"cu-planner/core/engine"
	"cu-planner/core/scenario"
	"cu-planner/internal/config"
	"cu-planner/internal/logging"
	"cu-planner/internal/metrics"
)

var version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "Config file (default $HOME/.cu-planner/config.yaml)")
	addr := flag.String("addr", "", "Server address (overrides config)")
	logLevel := flag.String("log-level", "info", "Log level (overrides config; empty keeps it)")
	flag.Parse()

	if err := run(*configPath, *addr, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "cu-planner server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, logLevel string) error {
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		return err
	}
	if logLevel != "" {
		if err := logging.SetLevel(logLevel); err != nil {
			return err
		}
	}
	defer logging.Sync()

	registry := scenario.GetDefault()
	if dir := cfg.Scenarios.Directory; dir != "" {
		n, err := hcl.RegisterDir(registry, dir, hcl.NewLoader(cfg.Budget))
		if err != nil {
			return err
		}
		if n == 0 {
			logging.Warn("scenario directory holds no scenario files", zap.String("dir", dir))
		} else {
			logging.Info("registered scenario files", zap.String("dir", dir), zap.Int("count", n))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ecfg := engine.DefaultEngineConfig()
	ecfg.DefaultBudget = cfg.Budget
	ecfg.Version = version
	ecfg.CacheSize = cfg.CacheSize()
	eng := engine.NewEngine(registry, ecfg, engine.WithMetrics(metrics.NewPrometheus(reg, "")))

	server := api.NewServer(eng, api.ServerConfig{
		Version:      version,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Gatherer:     reg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("starting cu-planner server",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr),
		zap.Strings("scenarios", registry.Names()),
		zap.Stringer("log_level", logging.Level()))

	err = server.ListenAndServe(ctx, api.ListenConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	})
	if err != nil {
		logging.Error("server stopped", zap.Error(err))
		return err
	}
	logging.Info("server stopped")
	return nil
}
