// File: internal/config/config_test.go
package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "console", cfg.Logger().Format)
	assert.Equal(t, 8, cfg.Engine().WorkerConcurrency)
	assert.Equal(t, 10*time.Second, cfg.Engine().FileTimeout)
	assert.True(t, cfg.Semantic().Enabled)
	assert.Equal(t, 512, cfg.Semantic().MaxDepth)
	assert.Equal(t, int64(1<<20), cfg.Semantic().MaxFileSize)
	assert.False(t, cfg.Semantic().TolerateSyntaxErrors)
	assert.Equal(t, "json", cfg.Scan().Format)
	assert.Contains(t, cfg.Scan().Exclude, "node_modules")

	require.NoError(t, cfg.Validate(), "defaults must validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate())

		cfgInvalidEngine := *cfg
		cfgInvalidEngine.EngineCfg.WorkerConcurrency = 0
		err := cfgInvalidEngine.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "engine.worker_concurrency must be a positive integer")

		cfgInvalidTimeout := *cfg
		cfgInvalidTimeout.EngineCfg.FileTimeout = 0
		err = cfgInvalidTimeout.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "engine.file_timeout must be a positive duration")

		cfgInvalidFormat := *cfg
		cfgInvalidFormat.ScanCfg.Format = "sarif"
		err = cfgInvalidFormat.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "scan.format")

		cfgInvalidLogger := *cfg
		cfgInvalidLogger.LoggerCfg.Format = "xml"
		assert.Error(t, cfgInvalidLogger.Validate())
	})

	t.Run("Semantic Validation", func(t *testing.T) {
		valid := SemanticConfig{Enabled: true, MaxDepth: 64, Languages: []string{"python", "Go"}}
		assert.NoError(t, valid.Validate())

		disabled := valid
		disabled.Enabled = false
		disabled.MaxDepth = 0
		assert.NoError(t, disabled.Validate(), "disabled semantic config should always be valid")

		invalidDepth := valid
		invalidDepth.MaxDepth = 0
		err := invalidDepth.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max_depth must be greater than 0")

		unknownLang := valid
		unknownLang.Languages = []string{"cobol"}
		err = unknownLang.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported language "cobol"`)

		noRules := valid
		noRules.DisableBuiltinRules = true
		err = noRules.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "requires at least one entry in rules_files")

		noRules.RulesFiles = []string{"custom.yaml"}
		assert.NoError(t, noRules.Validate())
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
engine:
  worker_concurrency: 4
  file_timeout: 2s
semantic:
  tolerate_syntax_errors: true
  languages: [python]
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 4, cfg.Engine().WorkerConcurrency)
		assert.Equal(t, 2*time.Second, cfg.Engine().FileTimeout)
		assert.True(t, cfg.Semantic().TolerateSyntaxErrors)
		assert.Equal(t, []string{"python"}, cfg.Semantic().Languages)
		// Check a default value was also loaded
		assert.Equal(t, "info", cfg.Logger().Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("engine.worker_concurrency", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "engine.worker_concurrency must be a positive integer")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString("logger:\n  level: warn\n")))

		rulesA := filepath.Join(t.TempDir(), "a.yaml")
		rulesB := filepath.Join(t.TempDir(), "b.yaml")
		t.Setenv("TAINTSCAN_RULES", rulesA+string(filepath.ListSeparator)+rulesB)
		t.Setenv("TAINTSCAN_LOG_LEVEL", "debug")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, []string{rulesA, rulesB}, cfg.Semantic().RulesFiles)
		// The environment wins over the config file.
		assert.Equal(t, "debug", cfg.Logger().Level)
	})

	t.Run("Home Directory Expansion", func(t *testing.T) {
		home, err := homedir.Dir()
		if err != nil {
			t.Skip("no home directory available")
		}
		v := viper.New()
		SetDefaults(v)
		v.Set("semantic.rules_files", []string{"~/rules/custom.yaml"})
		v.Set("logger.log_file", "~/taintscan.log")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "rules", "custom.yaml"), cfg.Semantic().RulesFiles[0])
		assert.Equal(t, filepath.Join(home, "taintscan.log"), cfg.Logger().LogFile)
	})
}

// -- Struct and Mapping Tests --

func TestConfigStructureMapping(t *testing.T) {
	yamlInput := `
logger:
  level: debug
  log_file: /var/log/taintscan.log
scan:
  exclude: ["testdata", "*.min.js"]
  format: text
  fail_on_findings: true
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewBufferString(yamlInput))
	require.NoError(t, err)

	var cfg Config
	err = v.Unmarshal(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, "/var/log/taintscan.log", cfg.Logger().LogFile)
	assert.Equal(t, []string{"testdata", "*.min.js"}, cfg.Scan().Exclude)
	assert.Equal(t, "text", cfg.Scan().Format)
	assert.True(t, cfg.Scan().FailOnFindings)
	assert.Empty(t, cfg.Scan().Targets, "targets only come from the command line")
}

func TestSetters(t *testing.T) {
	var cfg Interface = NewDefaultConfig()

	cfg.SetEngineWorkerConcurrency(3)
	cfg.SetEngineFileTimeout(time.Second)
	cfg.SetSemanticRulesFiles([]string{"x.yaml"})
	cfg.SetSemanticTolerateSyntaxErrors(true)
	cfg.SetScanConfig(ScanConfig{Targets: []string{"."}, Format: "text"})

	assert.Equal(t, 3, cfg.Engine().WorkerConcurrency)
	assert.Equal(t, time.Second, cfg.Engine().FileTimeout)
	assert.Equal(t, []string{"x.yaml"}, cfg.Semantic().RulesFiles)
	assert.True(t, cfg.Semantic().TolerateSyntaxErrors)
	assert.Equal(t, []string{"."}, cfg.Scan().Targets)
}
