// Package config loads the daemon's TOML configuration: workspace path,
// durable store DSN, default timezone, sweep cadence, and notifier
// settings.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// TelegramConfig configures the example Telegram notifier in pkg/notify.
// BotToken empty means the notifier is not started.
type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
}

// WebhookConfig configures an outbound HTTP notifier that POSTs fired
// reminders to an external endpoint.
type WebhookConfig struct {
	URL         string `toml:"url"`
	BearerToken string `toml:"bearer_token"`
}

// Config is the daemon's root configuration, loaded from ricordami.toml.
type Config struct {
	Workspace    string `toml:"workspace"`
	DurableDSN   string `toml:"durable_dsn"`
	Timezone     string `toml:"timezone"`
	SweepCron    string `toml:"sweep_cron"`
	LogLevel     string `toml:"log_level"`
	Debug        bool   `toml:"debug"`

	Telegram TelegramConfig `toml:"telegram"`
	Webhook  WebhookConfig  `toml:"webhook"`

	// InstanceID is not read from TOML: it is stamped fresh on every load
	// and carried through structured logs so concurrent daemon instances
	// sharing a log sink can be told apart.
	InstanceID string `toml:"-"`
}

// defaults applied to fields left empty in the TOML file.
func defaults() Config {
	return Config{
		Workspace:  ".",
		DurableDSN: "ricordami.db",
		Timezone:   "Europe/Rome",
		SweepCron:  "*/15 * * * *",
		LogLevel:   "info",
	}
}

// Load reads and parses a TOML config file at path, filling in defaults
// for any field left unset.
func Load(path string) (Config, error) {
	cfg := defaults()
	cfg.InstanceID = uuid.NewString()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}
