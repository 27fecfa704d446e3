// Package config defines the global configuration for the foreversister
// daemon. Configuration is loaded once at process startup and is immutable
// thereafter, following 12-Factor principles: values come from the OS
// environment, optionally seeded from a .env file.
//
// Missing mail or model credentials are configuration errors and abort the
// process before any network call is made (fail fast).
package config

import (
	"time"

	"foreversister/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret
// type used throughout configuration to prevent accidental logging of
// sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the daemon. It is
// populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Mail     MailConfig
	Model    ModelConfig
	Calendar CalendarConfig
	Cache    CacheConfig
	Schedule ScheduleConfig
}

// ServerConfig holds the HTTP server settings for the subscription API.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// DatabaseConfig holds the subscriber store location.
type DatabaseConfig struct {
	Path string `envconfig:"DB_PATH" default:"data/data.db"`
}

// MailConfig holds the SMTP transport credentials and sender identity.
// The sender address doubles as the visible "To" on BCC deliveries.
type MailConfig struct {
	Server   string       `envconfig:"SMTP_SERVER" validate:"required"`
	Port     int          `envconfig:"SMTP_PORT" default:"465"`
	Email    string       `envconfig:"SMTP_EMAIL" validate:"required,email"`
	Key      SecretString `envconfig:"SMTP_KEY" validate:"required"`
	FromName string       `envconfig:"SMTP_FROM_NAME" default:"YourForeverSister"`
}

// ModelConfig holds the generative-service endpoint and model identifiers.
// URL is an OpenAI-compatible base URL serving both /chat/completions and
// /images/generations.
type ModelConfig struct {
	URL        string        `envconfig:"MODEL_URL" validate:"required,url"`
	Key        SecretString  `envconfig:"MODEL_KEY" validate:"required"`
	Name       string        `envconfig:"MODEL_NAME" default:"deepseek-ai/DeepSeek-V3"`
	ImageName  string        `envconfig:"IMG_MODEL_NAME" default:"Kwai-Kolors/Kolors"`
	ChatWait   time.Duration `envconfig:"MODEL_CHAT_TIMEOUT" default:"120s"`
	ImageWait  time.Duration `envconfig:"MODEL_IMAGE_TIMEOUT" default:"60s"`
	ImageEvery time.Duration `envconfig:"IMG_MIN_INTERVAL" default:"35s"`
}

// CalendarConfig holds the optional remote holiday service. When either
// field is empty the resolver skips the remote source entirely and falls
// through to the local dataset.
type CalendarConfig struct {
	URL     string        `envconfig:"CALENDAR_API_URL"`
	Key     SecretString  `envconfig:"CALENDAR_API_KEY"`
	Timeout time.Duration `envconfig:"CALENDAR_TIMEOUT" default:"15s"`
}

// CacheConfig holds the day-cache directory and the local festival dataset.
type CacheConfig struct {
	Dir           string `envconfig:"CACHE_DIR" default:"cache"`
	FestivalsPath string `envconfig:"FESTIVALS_PATH" default:"data/festivals.csv"`
}

// ScheduleConfig holds the two fixed times of day the scheduler fires at,
// in "HH:MM" wall-clock format. Generation must precede delivery.
type ScheduleConfig struct {
	GenerateAt string `envconfig:"GENERATE_AT" default:"06:00"`
	DeliverAt  string `envconfig:"DELIVER_AT" default:"08:00"`
}
