// Package main runs the edge router in the short-lived invocation shape:
// one synchronous event read from stdin, one event written to stdout, then
// exit.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/edgerouter/internal/assets"
	"github.com/vyrodovalexey/edgerouter/internal/config"
	"github.com/vyrodovalexey/edgerouter/internal/engine"
	"github.com/vyrodovalexey/edgerouter/internal/observability"
	"github.com/vyrodovalexey/edgerouter/internal/server"
	"github.com/vyrodovalexey/edgerouter/internal/wire"
)

func main() {
	configPath := flag.String("config", os.Getenv("EDGEROUTER_CONFIG_PATH"), "Path to configuration file")
	excludeBody := flag.Bool("exclude-body", false, "Render headers only, omitting the response body")
	flag.Parse()

	logger, err := observability.NewLogger(observability.LogConfig{Level: "warn", Format: "json"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	table, err := cfg.BuildTable()
	if err != nil {
		logger.Fatal("failed to build route table", observability.Error(err))
	}

	opts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithRecursionLimit(cfg.Engine.RecursionLimit),
		engine.WithAppDelegate(cfg.Engine.AppURL),
		engine.WithImageOptimizer(cfg.Engine.OptimizerURL),
		engine.WithProduction(cfg.Engine.Production),
	}
	if cfg.Assets.Dir != "" {
		opts = append(opts, engine.WithAssetResolver(assets.NewFSResolver(os.DirFS(cfg.Assets.Dir))))
	}

	invoker := server.NewInvoker(engine.New(table, opts...), server.WithInvokerLogger(logger))

	var ev wire.InvokeRequest
	if err := json.NewDecoder(os.Stdin).Decode(&ev); err != nil {
		logger.Fatal("failed to decode invocation event", observability.Error(err))
	}

	out, err := invoker.Invoke(context.Background(), &ev, *excludeBody)
	if err != nil {
		logger.Fatal("invocation failed", observability.Error(err))
	}

	if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
		logger.Fatal("failed to encode invocation response", observability.Error(err))
	}
}
