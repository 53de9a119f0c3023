package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/avickers/helmsman/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Helmsman configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/helmsman/config.yaml
Project-specific overrides can be placed in .helmsman.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s\n", config.MaskAPIKey(cfg.Anthropic.APIKey))
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("anthropic.bedrock_region: %s\n", cfg.Anthropic.BedrockRegion)
	fmt.Printf("orchestrator.id: %s\n", cfg.Orchestrator.ID)
	fmt.Printf("orchestrator.epic_filter: %s\n", cfg.Orchestrator.EpicFilter)
	fmt.Printf("orchestrator.actions_file: %s\n", cfg.Orchestrator.ActionsFile)
	fmt.Printf("endpoint.model: %s\n", cfg.Endpoint.Model)
	fmt.Printf("automation.automation_enabled: %t\n", cfg.Automation.AutomationEnabled)
	fmt.Printf("automation.debounce: %s\n", cfg.Automation.Debounce)
	fmt.Printf("automation.max_chain_depth: %d\n", cfg.Automation.MaxChainDepth)
	fmt.Printf("automation.poll_interval: %s\n", cfg.Automation.PollInterval)
	fmt.Printf("automation.idle_reset: %s\n", cfg.Automation.IdleReset)
	fmt.Printf("automation.timer_enabled: %t\n", cfg.Automation.TimerEnabled)
	fmt.Printf("automation.timer_interval: %s\n", cfg.Automation.TimerInterval)
	fmt.Printf("automation.question_max_age: %s\n", cfg.Automation.QuestionMaxAge)
	fmt.Printf("state.path: %s\n", cfg.State.Path)
	fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.bedrock_region":
		return cfg.Anthropic.BedrockRegion, nil
	case "orchestrator.id":
		return cfg.Orchestrator.ID, nil
	case "orchestrator.epic_filter":
		return cfg.Orchestrator.EpicFilter, nil
	case "orchestrator.actions_file":
		return cfg.Orchestrator.ActionsFile, nil
	case "endpoint.model":
		return cfg.Endpoint.Model, nil
	case "automation.automation_enabled":
		return strconv.FormatBool(cfg.Automation.AutomationEnabled), nil
	case "automation.debounce":
		return cfg.Automation.Debounce.String(), nil
	case "automation.max_chain_depth":
		return strconv.Itoa(cfg.Automation.MaxChainDepth), nil
	case "automation.poll_interval":
		return cfg.Automation.PollInterval.String(), nil
	case "automation.idle_reset":
		return cfg.Automation.IdleReset.String(), nil
	case "automation.timer_enabled":
		return strconv.FormatBool(cfg.Automation.TimerEnabled), nil
	case "automation.timer_interval":
		return cfg.Automation.TimerInterval.String(), nil
	case "automation.question_max_age":
		return cfg.Automation.QuestionMaxAge.String(), nil
	case "state.path":
		return cfg.State.Path, nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.bedrock_region":
		cfg.Anthropic.BedrockRegion = value
	case "orchestrator.id":
		cfg.Orchestrator.ID = value
	case "orchestrator.epic_filter":
		cfg.Orchestrator.EpicFilter = value
	case "orchestrator.actions_file":
		cfg.Orchestrator.ActionsFile = value
	case "endpoint.model":
		cfg.Endpoint.Model = value
	case "automation.automation_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for automation_enabled: %w", err)
		}
		cfg.Automation.AutomationEnabled = b
	case "automation.debounce":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for debounce: %w", err)
		}
		cfg.Automation.Debounce = d
	case "automation.max_chain_depth":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_chain_depth: %w", err)
		}
		cfg.Automation.MaxChainDepth = n
	case "automation.poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for poll_interval: %w", err)
		}
		cfg.Automation.PollInterval = d
	case "automation.idle_reset":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for idle_reset: %w", err)
		}
		cfg.Automation.IdleReset = d
	case "automation.timer_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for timer_enabled: %w", err)
		}
		cfg.Automation.TimerEnabled = b
	case "automation.timer_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for timer_interval: %w", err)
		}
		cfg.Automation.TimerInterval = d
	case "automation.question_max_age":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for question_max_age: %w", err)
		}
		cfg.Automation.QuestionMaxAge = d
	case "state.path":
		cfg.State.Path = value
	case "tui.refresh_rate":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for refresh_rate: %w", err)
		}
		cfg.TUI.RefreshRate = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
