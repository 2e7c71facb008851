package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	TelegramToken string `envconfig:"TELEGRAM_TOKEN" required:"true"`
	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	// Timezone is the human-facing reference zone: month keys, "day 15" and
	// "end of month" are all computed in it, never in UTC.
	Timezone string `envconfig:"TIMEZONE" default:"America/New_York"`

	// Role/identity configuration, consolidated here so privilege checks never
	// re-read the process environment at call sites.
	OwnerTelegramID int64   `envconfig:"OWNER_TELEGRAM_ID" required:"true"`
	SuperAdminIDs   []int64 `envconfig:"SUPER_ADMIN_IDS"`
	ModelIDs        []int64 `envconfig:"MODEL_IDS"`
	OperatorChatID  int64   `envconfig:"OPERATOR_CHAT_ID" required:"true"`
	WatchedGroupIDs []int64 `envconfig:"WATCHED_GROUP_IDS" required:"true"`

	// HouseEntityIDs are the two entities a game contribution credits.
	HouseEntityIDs []string `envconfig:"HOUSE_ENTITY_IDS" default:"house_game_a,house_game_b"`

	// Compliance thresholds. MinCents/MinGames feed the simple OR policy,
	// MinEntities the diversity variant.
	MinCents    int64 `envconfig:"COMPLIANCE_MIN_CENTS" default:"2000"`
	MinGames    int   `envconfig:"COMPLIANCE_MIN_GAMES" default:"4"`
	MinEntities int   `envconfig:"COMPLIANCE_MIN_ENTITIES" default:"2"`

	// DispatchDelay paces direct messages, a soft backpressure control against
	// platform rate limits.
	DispatchDelay time.Duration `envconfig:"DISPATCH_DELAY" default:"1500ms"`

	CronSpecMidMonth     string `envconfig:"CRON_SPEC_MID_MONTH" default:"0 12 15 * *"`
	CronSpecFinalWarning string `envconfig:"CRON_SPEC_FINAL_WARNING_DAILY" default:"0 12 * * *"`
	CronSpecMonthlySweep string `envconfig:"CRON_SPEC_MONTHLY_SWEEP" default:"0 12 1 * *"`
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables; a missing .env
	// file is not an error.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if len(cfg.WatchedGroupIDs) == 0 {
		return nil, fmt.Errorf("WATCHED_GROUP_IDS must name at least one group")
	}
	if len(cfg.HouseEntityIDs) != 2 {
		return nil, fmt.Errorf("HOUSE_ENTITY_IDS must name exactly two entities, got %d", len(cfg.HouseEntityIDs))
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

// Location resolves the configured reference timezone. Load has already
// validated it, so a failure here only happens if tzdata vanished at runtime.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
