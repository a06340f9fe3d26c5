package engine

import (
	"testing"
	"time"
)

func TestPrepareConfigDefaults(t *testing.T) {
	var cfg Config
	if err := PrepareConfig(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.StepBudget != 100 {
		t.Errorf("StepBudget = %d, want 100", cfg.StepBudget)
	}
	if cfg.RunTimeout != 30*time.Second {
		t.Errorf("RunTimeout = %v, want 30s", cfg.RunTimeout)
	}
	if cfg.TemplateCacheSize != 256 {
		t.Errorf("TemplateCacheSize = %d, want 256", cfg.TemplateCacheSize)
	}
	if cfg.ExpressionCacheSize != 256 {
		t.Errorf("ExpressionCacheSize = %d, want 256", cfg.ExpressionCacheSize)
	}
	if cfg.MaxLoopIterations != 100 {
		t.Errorf("MaxLoopIterations = %d, want 100", cfg.MaxLoopIterations)
	}
}

func TestPrepareConfigKeepsExplicitValues(t *testing.T) {
	cfg := Config{StepBudget: 7, RunTimeout: 5 * time.Second}
	if err := PrepareConfig(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.StepBudget != 7 {
		t.Errorf("StepBudget = %d, want 7", cfg.StepBudget)
	}
	if cfg.RunTimeout != 5*time.Second {
		t.Errorf("RunTimeout = %v, want 5s", cfg.RunTimeout)
	}
}

func TestPrepareConfigRejectsInvalidValues(t *testing.T) {
	cfg := Config{StepBudget: 1000000}
	if err := PrepareConfig(&cfg); err == nil {
		t.Fatal("expected an error")
	}

	if err := PrepareConfig(nil); err == nil {
		t.Fatal("expected an error for nil config")
	}
}

func TestValidateWebhookURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https url", "https://example.com/webhook", false},
		{"with port and path", "https://example.com:8443/bot/webhook", false},
		{"empty", "", true},
		{"no scheme", "example.com/webhook", true},
		{"no host", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWebhookURL(tt.url)
			if tt.wantErr && err == nil {
				t.Fatal("expected an error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestResolveEnvVar(t *testing.T) {
	t.Setenv("BOT_TOKEN_SET", "secret")

	tests := []struct {
		name     string
		value    string
		expected string
		wantErr  bool
	}{
		{"plain value passes through", "raw-token", "raw-token", false},
		{"set variable", "${BOT_TOKEN_SET}", "secret", false},
		{"set variable ignores default", "${BOT_TOKEN_SET:fallback}", "secret", false},
		{"unset variable with default", "${BOT_TOKEN_UNSET:fallback}", "fallback", false},
		{"unset variable without default", "${BOT_TOKEN_UNSET}", "", true},
		{"lowercase is not a reference", "${not_a_var}", "${not_a_var}", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveEnvVar(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
