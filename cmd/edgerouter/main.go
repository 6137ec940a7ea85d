// Package main is the entry point for the edge router.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/edgerouter/internal/assets"
	"github.com/vyrodovalexey/edgerouter/internal/config"
	"github.com/vyrodovalexey/edgerouter/internal/engine"
	"github.com/vyrodovalexey/edgerouter/internal/observability"
	"github.com/vyrodovalexey/edgerouter/internal/proxy"
	"github.com/vyrodovalexey/edgerouter/internal/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	app := initApplication(cfg, logger)

	run(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("EDGEROUTER_CONFIG_PATH", "configs/edgerouter.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("EDGEROUTER_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("EDGEROUTER_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("edgerouter version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting edgerouter",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.Int("routes", len(cfg.Routes)),
		observability.String("listen", cfg.Server.Listen),
	)

	return cfg
}

// application holds all application components.
type application struct {
	engine  *engine.Engine
	server  *server.Server
	metrics *observability.Metrics
	config  *config.Config
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	metrics := observability.NewMetrics("edgerouter")
	metrics.SetBuildInfo(version)

	table, err := cfg.BuildTable()
	if err != nil {
		logger.Fatal("failed to build route table", observability.Error(err))
	}

	forwarder := proxy.NewForwarder(
		proxy.WithLogger(logger),
		proxy.WithMetrics(metrics),
		proxy.WithTimeout(cfg.Engine.UpstreamTimeout),
	)

	opts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithMetrics(metrics),
		engine.WithForwarder(forwarder),
		engine.WithRecursionLimit(cfg.Engine.RecursionLimit),
		engine.WithAppDelegate(cfg.Engine.AppURL),
		engine.WithImageOptimizer(cfg.Engine.OptimizerURL),
		engine.WithProduction(cfg.Engine.Production),
	}
	if cfg.Assets.Dir != "" {
		opts = append(opts, engine.WithAssetResolver(assetResolver(cfg.Assets.Dir)))
	}

	eng := engine.New(table, opts...)

	handler := server.NewHandler(eng, server.WithHandlerLogger(logger))

	srvOpts := []server.ServerOption{server.WithServerLogger(logger)}
	if cfg.Telemetry.Metrics {
		srvOpts = append(srvOpts, server.WithServerMetrics(metrics))
	}
	srv := server.NewServer(cfg.Server.Listen, handler, srvOpts...)

	return &application{
		engine:  eng,
		server:  srv,
		metrics: metrics,
		config:  cfg,
	}
}

// run starts the server and blocks until shutdown.
func run(app *application, configPath string, logger observability.Logger) {
	ctx := context.Background()

	if err := app.server.Start(ctx); err != nil {
		logger.Fatal("failed to start server", observability.Error(err))
	}

	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(app, watcher, logger)
}

// startConfigWatcher starts the configuration watcher so route table edits
// take effect without a restart.
func startConfigWatcher(
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		table, buildErr := newCfg.BuildTable()
		if buildErr != nil {
			logger.Error("failed to build reloaded route table", observability.Error(buildErr))
			return
		}
		app.engine.SwapTable(table)
		logger.Info("route table reloaded", observability.Int("routes", table.Len()))
	},
		config.WithWatcherLogger(logger),
		config.WithWatcherMetrics(app.metrics),
	)

	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// waitForShutdown waits for a shutdown signal and performs graceful
// shutdown.
func waitForShutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	logger.Info("edgerouter stopped")
}

// assetResolver builds an asset resolver rooted at dir.
func assetResolver(dir string) assets.Resolver {
	return assets.NewFSResolver(os.DirFS(dir))
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
