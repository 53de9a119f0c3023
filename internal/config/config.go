// Package config handles configuration loading and management for Helmsman.
// It supports XDG config paths, project-level overrides, environment
// variables, and live reload of runtime tunables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/avickers/helmsman/internal/agent"
	"github.com/avickers/helmsman/internal/orchestrator"
	"github.com/avickers/helmsman/pkg/models"
)

// Config holds all configuration for Helmsman.
type Config struct {
	Anthropic    AnthropicConfig        `mapstructure:"anthropic"`
	Orchestrator OrchestratorConfig     `mapstructure:"orchestrator"`
	Agents       []models.AgentProfile  `mapstructure:"agents"`
	Endpoint     agent.Endpoint         `mapstructure:"endpoint"`
	Automation   orchestrator.Governors `mapstructure:"automation"`
	State        StateConfig            `mapstructure:"state"`
	TUI          TUIConfig              `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// UseBedrock routes API calls through AWS Bedrock instead of the
	// Anthropic API.
	UseBedrock bool `mapstructure:"use_bedrock"`
	// BedrockRegion is the AWS region for Bedrock calls.
	BedrockRegion string `mapstructure:"bedrock_region"`
}

// OrchestratorConfig holds settings for the orchestrator slot.
type OrchestratorConfig struct {
	// ID is the agent slot that receives orchestration directives.
	ID string `mapstructure:"id"`
	// EpicFilter narrows state snapshots to one epic when set.
	EpicFilter string `mapstructure:"epic_filter"`
	// ActionsFile points at the per-status next-actions YAML.
	ActionsFile string `mapstructure:"actions_file"`
}

// StateConfig holds persistence settings.
type StateConfig struct {
	// Path is the SQLite database location. Relative paths resolve
	// against the project root.
	Path string `mapstructure:"path"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// ProjectConfigName is the per-project override file searched for in the
// working directory and its parents.
const ProjectConfigName = ".helmsman.yaml"

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.helmsman.yaml in current directory or parent)
// 3. User config (~/.config/helmsman/config.yaml)
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

	if projectConfig := findProjectConfig(); projectConfig != "" {
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

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
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

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Watch re-reads the project config whenever it changes on disk and calls
// onChange with the fresh Config. Load errors during reload are passed to
// onError and the previous config stays in effect. Watch returns
// immediately; callers stop watching by closing the returned channel's
// owner via fsnotify's lifetime, which here is process lifetime.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}

	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := LoadFromPath(path)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
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
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.bedrock_region", cfg.Anthropic.BedrockRegion)
	v.Set("orchestrator.id", cfg.Orchestrator.ID)
	v.Set("automation.automation_enabled", cfg.Automation.AutomationEnabled)
	v.Set("automation.debounce", cfg.Automation.Debounce.String())
	v.Set("automation.max_chain_depth", cfg.Automation.MaxChainDepth)
	v.Set("automation.poll_interval", cfg.Automation.PollInterval.String())
	v.Set("automation.idle_reset", cfg.Automation.IdleReset.String())
	v.Set("automation.timer_enabled", cfg.Automation.TimerEnabled)
	v.Set("automation.timer_interval", cfg.Automation.TimerInterval.String())
	v.Set("automation.question_max_age", cfg.Automation.QuestionMaxAge.String())
	v.Set("state.path", cfg.State.Path)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

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
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.bedrock_region", "us-east-1")

	v.SetDefault("orchestrator.id", "orchestrator")
	v.SetDefault("orchestrator.epic_filter", "")
	v.SetDefault("orchestrator.actions_file", "")

	g := orchestrator.DefaultGovernors()
	v.SetDefault("automation.automation_enabled", g.AutomationEnabled)
	v.SetDefault("automation.debounce", g.Debounce.String())
	v.SetDefault("automation.max_chain_depth", g.MaxChainDepth)
	v.SetDefault("automation.poll_interval", g.PollInterval.String())
	v.SetDefault("automation.idle_reset", g.IdleReset.String())
	v.SetDefault("automation.timer_enabled", g.TimerEnabled)
	v.SetDefault("automation.timer_interval", g.TimerInterval.String())
	v.SetDefault("automation.question_max_age", g.QuestionMaxAge.String())

	v.SetDefault("state.path", filepath.Join(".helmsman", "state.db"))
	v.SetDefault("tui.refresh_rate", "100ms")
}

// getUserConfigDir returns the XDG config directory for Helmsman.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "helmsman")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "helmsman")
	}
	return filepath.Join(home, ".config", "helmsman")
}

// findProjectConfig searches for .helmsman.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
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

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			BedrockRegion: "us-east-1",
		},
		Orchestrator: OrchestratorConfig{
			ID: "orchestrator",
		},
		Agents: DefaultAgents(),
		Automation: orchestrator.DefaultGovernors(),
		State: StateConfig{
			Path: filepath.Join(".helmsman", "state.db"),
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}

// DefaultAgents returns the built-in agent roster used when the config
// declares none.
func DefaultAgents() []models.AgentProfile {
	return []models.AgentProfile{
		{ID: "orchestrator", Name: "Orchestrator", Description: "Routes work and coordinates the other agents"},
		{ID: "dev", Name: "Developer", Description: "Implements stories"},
		{ID: "reviewer", Name: "Reviewer", Description: "Reviews finished work"},
	}
}
