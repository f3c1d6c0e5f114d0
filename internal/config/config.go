// Package config loads hotsteps settings from a YAML file and HOTSTEPS_*
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dshills/hotsteps/steps"
)

// EnvPrefix is prepended to every environment override, e.g.
// HOTSTEPS_JOURNAL_DRIVER=sqlite.
const EnvPrefix = "HOTSTEPS"

// Journal drivers.
const (
	JournalMemory = "memory"
	JournalSQLite = "sqlite"
	JournalMySQL  = "mysql"
	JournalNone   = "none"
)

// Config represents the complete hotsteps configuration
type Config struct {
	Script  ScriptConfig  `mapstructure:"script"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Journal JournalConfig `mapstructure:"journal"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ScriptConfig controls how the step script is watched
type ScriptConfig struct {
	// Path is the script to run when none is given on the command line
	Path string `mapstructure:"path"`
	// DebounceMs is the quiet period after a file change before reloading
	DebounceMs int `mapstructure:"debounce_ms"`
	// Watch enables live reload of the script
	Watch bool `mapstructure:"watch"`
}

// EngineConfig controls the reconciliation engine
type EngineConfig struct {
	// RunID names the run in events, metrics and the journal (empty = random)
	RunID string `mapstructure:"run_id"`
	// OverlapPolicy is "allow" or "clamp"
	OverlapPolicy string `mapstructure:"overlap_policy"`
	// MaxCompareDepth bounds step comparison recursion
	MaxCompareDepth int `mapstructure:"max_compare_depth"`
}

// JournalConfig selects where state transitions are recorded
type JournalConfig struct {
	// Driver is one of memory, sqlite, mysql, none
	Driver string `mapstructure:"driver"`
	// DSN is the sqlite file path or the MySQL data source name
	DSN string `mapstructure:"dsn"`
}

// LoggingConfig controls process logging
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format is text or json
	Format string `mapstructure:"format"`
	// File appends logs to a file instead of stderr
	File string `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `mapstructure:"addr"`
}

// TracingConfig controls OpenTelemetry spans
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Script: ScriptConfig{
			DebounceMs: 100,
			Watch:      true,
		},
		Engine: EngineConfig{
			OverlapPolicy:   steps.AllowOverlap.String(),
			MaxCompareDepth: steps.DefaultMaxDepth,
		},
		Journal: JournalConfig{
			Driver: JournalMemory,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			ServiceName: "hotsteps",
		},
	}
}

// Debounce returns the reload debounce as a duration
func (c *ScriptConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Overlap returns the parsed overlap policy
func (c *EngineConfig) Overlap() steps.OverlapPolicy {
	p, _ := steps.ParseOverlapPolicy(c.OverlapPolicy)
	return p
}

func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("script.path", defaults.Script.Path)
	v.SetDefault("script.debounce_ms", defaults.Script.DebounceMs)
	v.SetDefault("script.watch", defaults.Script.Watch)

	v.SetDefault("engine.run_id", defaults.Engine.RunID)
	v.SetDefault("engine.overlap_policy", defaults.Engine.OverlapPolicy)
	v.SetDefault("engine.max_compare_depth", defaults.Engine.MaxCompareDepth)

	v.SetDefault("journal.driver", defaults.Journal.Driver)
	v.SetDefault("journal.dsn", defaults.Journal.DSN)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.file", defaults.Logging.File)

	v.SetDefault("metrics.addr", defaults.Metrics.Addr)

	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
}

// New returns a viper instance with defaults and environment overrides
// installed. Callers may bind command-line flags to it before Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration file at path (optional) on top of the
// defaults and environment, then validates the result.
func Load(path string) (*Config, error) {
	return LoadWith(New(), path)
}

// LoadWith is Load with a caller-prepared viper instance.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}
