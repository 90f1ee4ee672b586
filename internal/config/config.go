// Package config provides configuration loading, validation, and management
// for the streambot application. It reads a YAML file through viper, applies
// STREAMBOT_* environment overrides on top of the defaults and validates the
// result with struct tags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/viper"
)

// FallbackTimezone is used when the configured timezone cannot be loaded.
const FallbackTimezone = "Europe/Berlin"

// ErrConfiguration wraps every error returned by LoadConfig.
var ErrConfiguration = errors.New("configuration error")

// Config holds the complete application configuration.
type Config struct {
	Logger    LoggerConfig           `mapstructure:"logger"`
	Database  DatabaseConfig         `mapstructure:"database"`
	Telegram  TelegramConfig         `mapstructure:"telegram"`
	NightMode NightModeConfig        `mapstructure:"night_mode"`
	TMDb      TMDbConfig             `mapstructure:"tmdb"`
	Sonarr    ArrConfig              `mapstructure:"sonarr"`
	Radarr    ArrConfig              `mapstructure:"radarr"`
	HTTP      HTTPConfig             `mapstructure:"http"`
	Media     MediaConfig            `mapstructure:"media"`
	Welcome   WelcomeConfig          `mapstructure:"welcome"`
	Topics    map[string]TopicConfig `mapstructure:"topics"    validate:"dive"`
	Scheduler SchedulerConfig        `mapstructure:"scheduler"`
	Messages  MessagesConfig         `mapstructure:"messages"`
}

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig points at the SQLite file holding the group settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds the bot credentials and Telegram call limits.
type TelegramConfig struct {
	Token          string        `mapstructure:"token"           validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s,max=2m"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"    validate:"min=1s,max=2m"`

	// BotInfo is populated at runtime from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// NightModeConfig defines the daily restricted window.
type NightModeConfig struct {
	Start    string `mapstructure:"start"     validate:"required,clock"`
	End      string `mapstructure:"end"       validate:"required,clock"`
	Timezone string `mapstructure:"timezone"`
	// ThreadID optionally routes announcements into a forum topic.
	ThreadID int `mapstructure:"thread_id" validate:"min=0"`

	// Location is resolved from Timezone during loading.
	Location *time.Location `mapstructure:"-"`
}

// TMDbConfig configures the movie database client.
type TMDbConfig struct {
	APIKey          string `mapstructure:"api_key"          validate:"required"`
	BaseURL         string `mapstructure:"base_url"         validate:"required,url"`
	ImageBaseURL    string `mapstructure:"image_base_url"   validate:"required,url"`
	DefaultLanguage string `mapstructure:"default_language" validate:"required,len=2"`
}

// ArrConfig configures a Sonarr or Radarr instance.
type ArrConfig struct {
	URL                string `mapstructure:"url"                  validate:"required,url"`
	APIKey             string `mapstructure:"api_key"              validate:"required"`
	QualityProfileName string `mapstructure:"quality_profile_name" validate:"required"`
	RootFolderPath     string `mapstructure:"root_folder_path"     validate:"required"`
}

// HTTPConfig bounds every outbound call to TMDb, Sonarr and Radarr.
type HTTPConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"      validate:"min=1s,max=5m"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1,max=5"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"  validate:"min=0,max=5m"`
	RateLimit   float64       `mapstructure:"rate_limit"   validate:"gt=0"`
	Burst       int           `mapstructure:"burst"        validate:"min=1"`
}

// MediaConfig tunes the media request conversation.
type MediaConfig struct {
	SessionTTL    time.Duration `mapstructure:"session_ttl"    validate:"min=1m"`
	MaxCandidates int           `mapstructure:"max_candidates" validate:"min=1,max=20"`
}

// WelcomeConfig configures the greeting for new group members.
type WelcomeConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ImageURL   string `mapstructure:"image_url"   validate:"omitempty,url"`
	ButtonText string `mapstructure:"button_text"`
	ButtonURL  string `mapstructure:"button_url"  validate:"omitempty,url"`
}

// TopicConfig identifies a forum topic that announcements can be posted to.
type TopicConfig struct {
	ChatID          int64 `mapstructure:"chat_id"           validate:"required"`
	MessageThreadID int   `mapstructure:"message_thread_id" validate:"min=0"`
	Pin             bool  `mapstructure:"pin"`
}

// SchedulerConfig lists the scheduled tasks by registry name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig configures one scheduled task.
type TaskConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Schedule   string `mapstructure:"schedule"     validate:"required_if=Enabled true"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// LoadConfig reads the YAML file at path, overlays it and the environment on
// the defaults and validates the result. A missing file is an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("STREAMBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	cfg.NightMode.Location = ResolveLocation(cfg.NightMode.Timezone)
	return cfg, nil
}

// Validate checks the struct tags and the custom rules.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("clock", validateClock); err != nil {
		return fmt.Errorf("failed to register clock validator: %w", err)
	}
	return validate.Struct(c)
}

// ResolveLocation loads the named timezone. Unknown or empty names fall back
// to FallbackTimezone with a warning instead of aborting startup.
func ResolveLocation(name string) *time.Location {
	if name != "" {
		loc, err := time.LoadLocation(name)
		if err == nil {
			return loc
		}
		slog.Warn("Invalid timezone in configuration, using fallback", "timezone", name, "fallback", FallbackTimezone, "error", err)
	}
	loc, err := time.LoadLocation(FallbackTimezone)
	if err != nil {
		slog.Warn("Fallback timezone unavailable, using UTC", "timezone", FallbackTimezone, "error", err)
		return time.UTC
	}
	return loc
}

// LogSummary writes the effective configuration with credentials redacted.
func (c *Config) LogSummary(log *slog.Logger) {
	log.Info("Configuration loaded",
		"log_level", c.Logger.Level,
		"db_path", c.Database.Path,
		"telegram_token", Redact(c.Telegram.Token),
		"night_mode_window", c.NightMode.Start+"-"+c.NightMode.End,
		"night_mode_timezone", c.NightMode.Location.String(),
		"tmdb_api_key", Redact(c.TMDb.APIKey),
		"tmdb_default_language", c.TMDb.DefaultLanguage,
		"sonarr_url", c.Sonarr.URL,
		"sonarr_api_key", Redact(c.Sonarr.APIKey),
		"radarr_url", c.Radarr.URL,
		"radarr_api_key", Redact(c.Radarr.APIKey),
		"topics", len(c.Topics),
	)
	log.Debug("Detailed configuration",
		"http_timeout", c.HTTP.Timeout,
		"http_max_attempts", c.HTTP.MaxAttempts,
		"http_rate_limit", c.HTTP.RateLimit,
		"media_session_ttl", c.Media.SessionTTL,
		"welcome_enabled", c.Welcome.Enabled,
	)
}

// Redact keeps the first and last four characters of a secret.
func Redact(value string) string {
	const visible = 4
	if len(value) <= visible*2 {
		return strings.Repeat("*", len(value))
	}
	return value[:visible] + strings.Repeat("*", len(value)-visible*2) + value[len(value)-visible:]
}
