package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"quotabot/internal/config"
)

const minimalConfig = `
telegram:
  token: "123456:test-token"
gemini:
  api_key: "test-api-key"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Logger.Level != "info" || !cfg.Logger.JSON {
		t.Errorf("logger defaults = %+v", cfg.Logger)
	}
	if cfg.Pipeline.BurstWindow != 800*time.Millisecond {
		t.Errorf("burst window = %v, want 800ms", cfg.Pipeline.BurstWindow)
	}
	if cfg.Pipeline.DedupWindow != 3*time.Second {
		t.Errorf("dedup window = %v, want 3s", cfg.Pipeline.DedupWindow)
	}
	if cfg.Pipeline.GuidanceCooldown != 6*time.Hour {
		t.Errorf("guidance cooldown = %v, want 6h", cfg.Pipeline.GuidanceCooldown)
	}
	if cfg.Pipeline.SymbolAliases["btc"] != "BTC" {
		t.Errorf("symbol aliases missing btc: %v", cfg.Pipeline.SymbolAliases)
	}
	if len(cfg.Pipeline.RateSources) == 0 {
		t.Error("default rate sources should be configured")
	}
	if cfg.Scheduler.CacheRetention != 48*time.Hour {
		t.Errorf("cache retention = %v, want 48h", cfg.Scheduler.CacheRetention)
	}
	if task, ok := cfg.Scheduler.Tasks["cache_sweep"]; !ok || !task.Enabled || task.Schedule == "" {
		t.Errorf("cache_sweep task default = %+v", task)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, minimalConfig+`
logger:
  level: debug
  json: false
pipeline:
  burst_window: 500ms
  dedup_window: 10s
messages:
  not_found: "nothing for %s, sorry"
`))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Logger.Level != "debug" || cfg.Logger.JSON {
		t.Errorf("logger overrides not applied: %+v", cfg.Logger)
	}
	if cfg.Pipeline.BurstWindow != 500*time.Millisecond || cfg.Pipeline.DedupWindow != 10*time.Second {
		t.Errorf("pipeline overrides not applied: %+v", cfg.Pipeline)
	}
	if cfg.Messages.NotFound != "nothing for %s, sorry" {
		t.Errorf("messages override not applied: %q", cfg.Messages.NotFound)
	}
}

func TestLoadConfigMissingFileStillValidates(t *testing.T) {
	t.Parallel()

	// Without a file there is no telegram token, so validation must fail.
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("LoadConfig() should fail validation without required secrets")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing token",
			content: "gemini:\n  api_key: key\n",
		},
		{
			name:    "bad log level",
			content: minimalConfig + "logger:\n  level: loud\n",
		},
		{
			name:    "burst window out of range",
			content: minimalConfig + "pipeline:\n  burst_window: 10ms\n",
		},
		{
			name:    "not-found reply without symbol placeholder",
			content: minimalConfig + "messages:\n  not_found: \"no idea\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := config.LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("LoadConfig() should reject invalid configuration")
			}
		})
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("BOT_LOGGER_LEVEL", "warn")

	cfg, err := config.LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("logger level = %q, want env override %q", cfg.Logger.Level, "warn")
	}
}

func TestIsPremiumUser(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Telegram.PremiumUserIDs = []int64{10, 20}

	if !cfg.IsPremiumUser(10) {
		t.Error("listed user should be premium")
	}
	if cfg.IsPremiumUser(30) {
		t.Error("unlisted user should not be premium")
	}
}
