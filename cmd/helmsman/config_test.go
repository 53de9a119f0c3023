package main

import (
	"testing"
	"time"

	"github.com/avickers/helmsman/internal/config"
)

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
		check   func(*config.Config) bool
	}{
		{
			name:  "set api key",
			key:   "anthropic.api_key",
			value: "sk-ant-test123",
			check: func(c *config.Config) bool { return c.Anthropic.APIKey == "sk-ant-test123" },
		},
		{
			name:  "set use_bedrock",
			key:   "anthropic.use_bedrock",
			value: "true",
			check: func(c *config.Config) bool { return c.Anthropic.UseBedrock },
		},
		{
			name:  "set orchestrator id",
			key:   "orchestrator.id",
			value: "lead",
			check: func(c *config.Config) bool { return c.Orchestrator.ID == "lead" },
		},
		{
			name:  "set debounce duration",
			key:   "automation.debounce",
			value: "30s",
			check: func(c *config.Config) bool { return c.Automation.Debounce == 30*time.Second },
		},
		{
			name:  "set max chain depth",
			key:   "automation.max_chain_depth",
			value: "5",
			check: func(c *config.Config) bool { return c.Automation.MaxChainDepth == 5 },
		},
		{
			name:    "invalid duration rejected",
			key:     "automation.debounce",
			value:   "soon",
			wantErr: true,
		},
		{
			name:    "invalid boolean rejected",
			key:     "automation.timer_enabled",
			value:   "maybe",
			wantErr: true,
		},
		{
			name:    "unknown key rejected",
			key:     "agents.count",
			value:   "3",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			err := setConfigValue(cfg, tt.key, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("setConfigValue(%q, %q) succeeded, want error", tt.key, tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("setConfigValue(%q, %q) failed: %v", tt.key, tt.value, err)
			}
			if !tt.check(cfg) {
				t.Errorf("setConfigValue(%q, %q) did not apply", tt.key, tt.value)
			}
		})
	}
}

func TestGetConfigValue(t *testing.T) {
	cfg := config.Default()
	cfg.Anthropic.APIKey = "sk-ant-api03-abcdefgh"
	cfg.Automation.MaxChainDepth = 7

	tests := []struct {
		key      string
		expected string
	}{
		{"automation.max_chain_depth", "7"},
		{"automation.automation_enabled", "true"},
		{"tui.refresh_rate", "100ms"},
	}

	for _, tt := range tests {
		got, err := getConfigValue(cfg, tt.key)
		if err != nil {
			t.Fatalf("getConfigValue(%q) failed: %v", tt.key, err)
		}
		if got != tt.expected {
			t.Errorf("getConfigValue(%q) = %q, want %q", tt.key, got, tt.expected)
		}
	}

	// The key is never printed in full.
	masked, err := getConfigValue(cfg, "anthropic.api_key")
	if err != nil {
		t.Fatalf("getConfigValue(api_key) failed: %v", err)
	}
	if masked == cfg.Anthropic.APIKey {
		t.Error("api_key displayed unmasked")
	}

	if _, err := getConfigValue(cfg, "nope"); err == nil {
		t.Error("expected error for unknown key")
	}
}
