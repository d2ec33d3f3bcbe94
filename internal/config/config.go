// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the CLI reads.
const EnvPrefix = "TAINTSCAN"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Engine() EngineConfig
	Semantic() SemanticConfig
	Scan() ScanConfig
	SetScanConfig(sc ScanConfig)

	// Engine Setters
	SetEngineWorkerConcurrency(int)
	SetEngineFileTimeout(time.Duration)

	// Semantic Setters
	SetSemanticRulesFiles([]string)
	SetSemanticTolerateSyntaxErrors(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	EngineCfg   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	SemanticCfg SemanticConfig `mapstructure:"semantic" yaml:"semantic"`
	ScanCfg     ScanConfig     `mapstructure:"scan" yaml:"scan"`
}

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Engine() EngineConfig     { return c.EngineCfg }
func (c *Config) Semantic() SemanticConfig { return c.SemanticCfg }
func (c *Config) Scan() ScanConfig         { return c.ScanCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetScanConfig(sc ScanConfig) { c.ScanCfg = sc }

// Engine Setters
func (c *Config) SetEngineWorkerConcurrency(w int)      { c.EngineCfg.WorkerConcurrency = w }
func (c *Config) SetEngineFileTimeout(d time.Duration) { c.EngineCfg.FileTimeout = d }

// Semantic Setters
func (c *Config) SetSemanticRulesFiles(files []string) { c.SemanticCfg.RulesFiles = files }
func (c *Config) SetSemanticTolerateSyntaxErrors(b bool) {
	c.SemanticCfg.TolerateSyntaxErrors = b
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig configures the worker pool that analyzes files.
type EngineConfig struct {
	QueueSize         int           `mapstructure:"queue_size" yaml:"queue_size"`
	WorkerConcurrency int           `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
	FileTimeout       time.Duration `mapstructure:"file_timeout" yaml:"file_timeout"`
}

// SemanticConfig tunes the AST taint analysis pass.
type SemanticConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// RulesFiles are loaded on top of the builtin rules.
	RulesFiles          []string `mapstructure:"rules_files" yaml:"rules_files"`
	DisableBuiltinRules bool     `mapstructure:"disable_builtin_rules" yaml:"disable_builtin_rules"`
	// Languages restricts the pass. Empty means every supported language.
	Languages            []string `mapstructure:"languages" yaml:"languages"`
	MaxFileSize          int64    `mapstructure:"max_file_size" yaml:"max_file_size"`
	MaxDepth             int      `mapstructure:"max_depth" yaml:"max_depth"`
	TolerateSyntaxErrors bool     `mapstructure:"tolerate_syntax_errors" yaml:"tolerate_syntax_errors"`
}

// ScanConfig holds settings for a specific scan job. Targets come from CLI
// arguments; the rest may also be set in the config file.
type ScanConfig struct {
	Targets        []string `mapstructure:"-" yaml:"-"`
	Exclude        []string `mapstructure:"exclude" yaml:"exclude"`
	Output         string   `mapstructure:"output" yaml:"output"`
	Format         string   `mapstructure:"format" yaml:"format"`
	FailOnFindings bool     `mapstructure:"fail_on_findings" yaml:"fail_on_findings"`
	// MetricsFile receives Prometheus metrics in the textfile collector
	// format when set.
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

var knownLanguages = map[string]bool{
	"python":     true,
	"javascript": true,
	"typescript": true,
	"tsx":        true,
	"go":         true,
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "taintscan")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Engine --
	v.SetDefault("engine.queue_size", 256)
	v.SetDefault("engine.worker_concurrency", 8)
	v.SetDefault("engine.file_timeout", "10s")

	// -- Semantic --
	v.SetDefault("semantic.enabled", true)
	v.SetDefault("semantic.rules_files", []string{})
	v.SetDefault("semantic.disable_builtin_rules", false)
	v.SetDefault("semantic.languages", []string{})
	v.SetDefault("semantic.max_file_size", 1<<20)
	v.SetDefault("semantic.max_depth", 512)
	v.SetDefault("semantic.tolerate_syntax_errors", false)

	// -- Scan --
	v.SetDefault("scan.exclude", []string{".git", "node_modules", "vendor", "__pycache__", ".venv"})
	v.SetDefault("scan.output", "")
	v.SetDefault("scan.format", "json")
	v.SetDefault("scan.fail_on_findings", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Explicit bindings for the variables documented in the README.
	v.BindEnv("semantic.rules_files", EnvPrefix+"_RULES")
	v.BindEnv("logger.level", EnvPrefix+"_LOG_LEVEL")
	v.BindEnv("engine.worker_concurrency", EnvPrefix+"_WORKERS")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// A single env var carries a path list.
	if len(cfg.SemanticCfg.RulesFiles) == 1 && strings.Contains(cfg.SemanticCfg.RulesFiles[0], string(filepath.ListSeparator)) {
		cfg.SemanticCfg.RulesFiles = filepath.SplitList(cfg.SemanticCfg.RulesFiles[0])
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for i, f := range c.SemanticCfg.RulesFiles {
		p, err := homedir.Expand(f)
		if err != nil {
			return fmt.Errorf("expanding semantic.rules_files entry %q: %w", f, err)
		}
		c.SemanticCfg.RulesFiles[i] = p
	}
	if c.LoggerCfg.LogFile != "" {
		p, err := homedir.Expand(c.LoggerCfg.LogFile)
		if err != nil {
			return fmt.Errorf("expanding logger.log_file: %w", err)
		}
		c.LoggerCfg.LogFile = p
	}
	if c.ScanCfg.Output != "" {
		p, err := homedir.Expand(c.ScanCfg.Output)
		if err != nil {
			return fmt.Errorf("expanding scan.output: %w", err)
		}
		c.ScanCfg.Output = p
	}
	if c.ScanCfg.MetricsFile != "" {
		p, err := homedir.Expand(c.ScanCfg.MetricsFile)
		if err != nil {
			return fmt.Errorf("expanding scan.metrics_file: %w", err)
		}
		c.ScanCfg.MetricsFile = p
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.LoggerCfg.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be 'console' or 'json', got %q", c.LoggerCfg.Format)
	}
	if err := c.EngineCfg.Validate(); err != nil {
		return err
	}
	if err := c.SemanticCfg.Validate(); err != nil {
		return fmt.Errorf("semantic configuration invalid: %w", err)
	}
	switch c.ScanCfg.Format {
	case "json", "text":
	default:
		return fmt.Errorf("scan.format must be 'json' or 'text', got %q", c.ScanCfg.Format)
	}
	return nil
}

// Validate checks the engine settings.
func (e *EngineConfig) Validate() error {
	if e.WorkerConcurrency <= 0 {
		return fmt.Errorf("engine.worker_concurrency must be a positive integer")
	}
	if e.QueueSize < 0 {
		return fmt.Errorf("engine.queue_size must not be negative")
	}
	if e.FileTimeout <= 0 {
		return fmt.Errorf("engine.file_timeout must be a positive duration")
	}
	return nil
}

// Validate checks the SemanticConfig settings.
func (s *SemanticConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be greater than 0")
	}
	if s.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must not be negative")
	}
	if s.DisableBuiltinRules && len(s.RulesFiles) == 0 {
		return fmt.Errorf("disable_builtin_rules requires at least one entry in rules_files")
	}
	for _, l := range s.Languages {
		if !knownLanguages[strings.ToLower(l)] {
			return fmt.Errorf("unsupported language %q", l)
		}
	}
	return nil
}
