// Package config provides configuration loading and validation for the
// QuotaBot application. Values come from defaults, an optional YAML file,
// and BOT_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// BotInfo holds runtime identity of the bot account, populated after startup
// via the Telegram GetMe call.
type BotInfo struct {
	ID        int64
	Username  string
	FirstName string
}

// LoggerConfig controls log verbosity and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds Telegram transport settings.
type TelegramConfig struct {
	Token          string  `mapstructure:"token" validate:"required"`
	PremiumUserIDs []int64 `mapstructure:"premium_user_ids"`

	// BotInfo is resolved at runtime, not from the config file.
	BotInfo BotInfo `mapstructure:"-"`
}

// DatabaseConfig holds SQLite settings for the telemetry store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// GeminiConfig holds settings for the Gemini-backed intent classifier.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"             validate:"required"`
	ModelName         string  `mapstructure:"model_name"          validate:"required"`
	Temperature       float32 `mapstructure:"temperature"         validate:"min=0,max=2"`
	MaxRetries        int     `mapstructure:"max_retries"         validate:"min=0,max=5"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`
}

// PipelineConfig holds the routing pipeline policy knobs. The suppression
// windows and the guidance cooldown are operational policy rather than
// business logic, so they are configurable instead of hard-coded.
type PipelineConfig struct {
	BurstWindow      time.Duration `mapstructure:"burst_window"      validate:"min=100ms,max=5s"`
	DedupWindow      time.Duration `mapstructure:"dedup_window"      validate:"min=1s,max=30s"`
	GuidanceCooldown time.Duration `mapstructure:"guidance_cooldown" validate:"min=1m,max=48h"`

	RateTimeout       time.Duration `mapstructure:"rate_timeout"       validate:"min=1s,max=1m"`
	TickerTimeout     time.Duration `mapstructure:"ticker_timeout"     validate:"min=1s,max=1m"`
	EnrichmentTimeout time.Duration `mapstructure:"enrichment_timeout" validate:"min=1s,max=1m"`
	ClassifyTimeout   time.Duration `mapstructure:"classify_timeout"   validate:"min=1s,max=2m"`

	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" validate:"min=0,max=1"`
	DefaultRate         float64 `mapstructure:"default_rate"         validate:"gt=0"`
	TelemetryTextCap    int     `mapstructure:"telemetry_text_cap"   validate:"min=10,max=1000"`

	JoinCommands []string `mapstructure:"join_commands" validate:"min=1"`
	HelpCommands []string `mapstructure:"help_commands" validate:"min=1"`

	// RateSources maps rate-source names to fixed fallback rates used when
	// no live rate integration is injected for that source name.
	RateSources map[string]float64 `mapstructure:"rate_sources"`

	Currencies      []string          `mapstructure:"currencies"     validate:"min=1"`
	MajorSymbols    []string          `mapstructure:"major_symbols"`
	SymbolAliases   map[string]string `mapstructure:"symbol_aliases" validate:"min=1"`
	SymbolBlacklist []string          `mapstructure:"symbol_blacklist"`
}

// MessagesConfig holds the user-facing reply texts.
type MessagesConfig struct {
	Join     string `mapstructure:"join"      validate:"required"`
	Help     string `mapstructure:"help"      validate:"required"`
	Guidance string `mapstructure:"guidance"  validate:"required"`
	NotFound string `mapstructure:"not_found" validate:"required,contains=%s"`
	Busy     string `mapstructure:"busy"      validate:"required"`
}

// TaskConfig configures a single scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig configures the background task scheduler and the retention
// windows its tasks enforce.
type SchedulerConfig struct {
	CacheRetention     time.Duration         `mapstructure:"cache_retention"     validate:"min=1h,max=168h"`
	TelemetryRetention time.Duration         `mapstructure:"telemetry_retention" validate:"min=24h"`
	Tasks              map[string]TaskConfig `mapstructure:"tasks"`
}

// Config is the root application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoadConfig loads configuration from the given YAML file path, environment
// variables (BOT_ prefix, dots replaced by underscores), and built-in
// defaults. A missing config file is not an error; defaults and environment
// variables still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("database.path", "storage.db")

	v.SetDefault("gemini.model_name", "gemini-2.0-flash")
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.max_retries", 2)
	v.SetDefault("gemini.retry_delay_seconds", 2)

	v.SetDefault("pipeline.burst_window", 800*time.Millisecond)
	v.SetDefault("pipeline.dedup_window", 3*time.Second)
	v.SetDefault("pipeline.guidance_cooldown", 6*time.Hour)
	v.SetDefault("pipeline.rate_timeout", 5*time.Second)
	v.SetDefault("pipeline.ticker_timeout", 5*time.Second)
	v.SetDefault("pipeline.enrichment_timeout", 3*time.Second)
	v.SetDefault("pipeline.classify_timeout", 10*time.Second)
	v.SetDefault("pipeline.confidence_threshold", 0.6)
	v.SetDefault("pipeline.default_rate", 30.0)
	v.SetDefault("pipeline.rate_sources", map[string]float64{
		"bank":     30.5,
		"exchange": 29.8,
	})
	v.SetDefault("pipeline.telemetry_text_cap", 50)
	v.SetDefault("pipeline.join_commands", []string{"join", "subscribe", "start"})
	v.SetDefault("pipeline.help_commands", []string{"help", "commands", "?"})
	v.SetDefault("pipeline.currencies", []string{"twd", "usd", "jpy", "eur", "krw"})
	v.SetDefault("pipeline.major_symbols", []string{"BTC", "ETH"})
	v.SetDefault("pipeline.symbol_aliases", map[string]string{
		"btc":      "BTC",
		"bitcoin":  "BTC",
		"xbt":      "BTC",
		"eth":      "ETH",
		"ethereum": "ETH",
		"sol":      "SOL",
		"doge":     "DOGE",
		"ada":      "ADA",
		"xrp":      "XRP",
	})
	v.SetDefault("pipeline.symbol_blacklist", []string{"a", "i", "am", "an", "the", "ok", "no", "go", "hi"})

	v.SetDefault("messages.join", "Welcome aboard! Send me a ticker symbol (e.g. btc) or an amount with a currency (e.g. 7000twd) to get started.")
	v.SetDefault("messages.help", "I can look up crypto prices (try \"btc\"), convert currency amounts (try \"7000twd\"), or answer free-form price questions.")
	v.SetDefault("messages.guidance", "Not sure what you meant. Try a ticker symbol like \"btc\", an amount like \"7000twd\", or \"help\" for the full list.")
	v.SetDefault("messages.not_found", "Sorry, I couldn't find a quote for %s.")
	v.SetDefault("messages.busy", "The system is busy right now. Please try again in a moment.")

	v.SetDefault("scheduler.cache_retention", 48*time.Hour)
	v.SetDefault("scheduler.telemetry_retention", 720*time.Hour)
	v.SetDefault("scheduler.tasks.cache_sweep.enabled", true)
	v.SetDefault("scheduler.tasks.cache_sweep.schedule", "0 0 * * * *")
	v.SetDefault("scheduler.tasks.telemetry_purge.enabled", true)
	v.SetDefault("scheduler.tasks.telemetry_purge.schedule", "0 30 4 * * *")
	v.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.sql_maintenance.schedule", "0 0 5 * * 0")
}

// IsPremiumUser reports whether the given user ID is in the configured
// premium list.
func (c *Config) IsPremiumUser(userID int64) bool {
	for _, id := range c.Telegram.PremiumUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
