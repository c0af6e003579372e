// Package config handles configuration loading and management for Specter.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Specter.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Providers    ProvidersConfig    `mapstructure:"providers"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Audit        AuditConfig        `mapstructure:"audit"`
	TUI          TUIConfig          `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// UseBedrock routes calls through AWS Bedrock instead of the
	// Anthropic API.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// ProvidersConfig holds tool provider inventory settings.
type ProvidersConfig struct {
	// File is the path to the provider inventory YAML.
	File string `mapstructure:"file"`
	// Watch reloads the inventory when the file changes.
	Watch bool `mapstructure:"watch"`
}

// OrchestratorConfig holds execution settings for a run.
type OrchestratorConfig struct {
	// TaskTimeout bounds each worker task. Zero disables the bound.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// MaxParallel bounds concurrent tasks within a batch. Zero means
	// unbounded.
	MaxParallel int `mapstructure:"max_parallel"`
	// MaxIterations bounds tool-use round trips within one agent call.
	MaxIterations int `mapstructure:"max_iterations"`
	// HistoryWindow is the per-role conversation entry cap.
	HistoryWindow int `mapstructure:"history_window"`
}

// AuditConfig holds tool-invocation audit log settings.
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path overrides the default XDG data location of the audit database.
	Path string `mapstructure:"path"`
}

// TUIConfig holds chat TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
	// ShowToolLog streams tool invocations into the chat view.
	ShowToolLog bool `mapstructure:"show_tool_log"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.specter.yaml in current directory or parent)
// 3. User config (~/.config/specter/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Project config takes precedence over the user config.
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "SPECTER_MODEL")
	v.BindEnv("providers.file", "SPECTER_PROVIDERS_FILE")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Providers.File = expandEnv(cfg.Providers.File)
	cfg.Audit.Path = expandEnv(cfg.Audit.Path)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Providers.File = expandEnv(cfg.Providers.File)
	cfg.Audit.Path = expandEnv(cfg.Audit.Path)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("providers.file", cfg.Providers.File)
	v.Set("providers.watch", cfg.Providers.Watch)
	v.Set("orchestrator.task_timeout", cfg.Orchestrator.TaskTimeout.String())
	v.Set("orchestrator.max_parallel", cfg.Orchestrator.MaxParallel)
	v.Set("orchestrator.max_iterations", cfg.Orchestrator.MaxIterations)
	v.Set("orchestrator.history_window", cfg.Orchestrator.HistoryWindow)
	v.Set("audit.enabled", cfg.Audit.Enabled)
	v.Set("audit.path", cfg.Audit.Path)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())
	v.Set("tui.show_tool_log", cfg.TUI.ShowToolLog)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("providers.file", "providers.yaml")
	v.SetDefault("providers.watch", true)

	v.SetDefault("orchestrator.task_timeout", "10m")
	v.SetDefault("orchestrator.max_parallel", 4)
	v.SetDefault("orchestrator.max_iterations", 25)
	v.SetDefault("orchestrator.history_window", 400)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.path", "")

	v.SetDefault("tui.refresh_rate", "100ms")
	v.SetDefault("tui.show_tool_log", true)
}

// getUserConfigDir returns the XDG config directory for Specter.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "specter")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "specter")
	}
	return filepath.Join(home, ".config", "specter")
}

// findProjectConfig searches for .specter.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".specter.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Providers: ProvidersConfig{
			File:  "providers.yaml",
			Watch: true,
		},
		Orchestrator: OrchestratorConfig{
			TaskTimeout:   10 * time.Minute,
			MaxParallel:   4,
			MaxIterations: 25,
			HistoryWindow: 400,
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
			ShowToolLog: true,
		},
	}
}
