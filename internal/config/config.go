// Package config loads and validates the edge router configuration: the
// persisted route table plus the runtime settings of the engine and its
// collaborators.
package config

import (
	"time"

	"github.com/vyrodovalexey/edgerouter/internal/recursion"
	"github.com/vyrodovalexey/edgerouter/internal/routes"
	"github.com/vyrodovalexey/edgerouter/internal/util"
)

// Config is the top-level configuration document.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Assets    AssetsConfig    `yaml:"assets"`
	Log       LogConfig       `yaml:"log"`
	Routes    []routes.Route  `yaml:"routes"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the long-running listener.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// EngineConfig configures request execution.
type EngineConfig struct {
	RecursionLimit  int           `yaml:"recursionLimit"`
	AppURL          string        `yaml:"appUrl"`
	OptimizerURL    string        `yaml:"optimizerUrl"`
	UpstreamTimeout time.Duration `yaml:"upstreamTimeout"`
	Production      bool          `yaml:"production"`
}

// AssetsConfig configures the build-time asset store consulted by the
// serve-asset actions.
type AssetsConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig configures the metrics endpoint.
type TelemetryConfig struct {
	Metrics bool `yaml:"metrics"`
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Engine: EngineConfig{
			RecursionLimit:  recursion.DefaultLimit,
			UpstreamTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Metrics: true,
		},
	}
}

// applyDefaults fills zero-valued fields with their defaults.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Server.Listen == "" {
		c.Server.Listen = def.Server.Listen
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Engine.RecursionLimit == 0 {
		c.Engine.RecursionLimit = def.Engine.RecursionLimit
	}
	if c.Engine.UpstreamTimeout == 0 {
		c.Engine.UpstreamTimeout = def.Engine.UpstreamTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate checks the configuration for fatal errors. Route validation,
// including pattern compilation and action decoding, happens in BuildTable.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return util.NewConfigError("log.level", "must be one of debug, info, warn, error")
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return util.NewConfigError("log.format", "must be json or console")
	}

	if c.Engine.RecursionLimit < 1 {
		return util.NewConfigError("engine.recursionLimit", "must be at least 1")
	}

	if len(c.Routes) == 0 {
		return util.NewConfigError("routes", "at least one route is required")
	}

	return nil
}

// BuildTable compiles the configured routes into a route table. Malformed
// patterns and unknown action types fail here, before the first request.
func (c *Config) BuildTable() (*routes.Table, error) {
	return routes.BuildTable(c.Routes)
}
