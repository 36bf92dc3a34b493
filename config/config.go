package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tnicklin/vigia/activity"
	"github.com/tnicklin/vigia/clock"
	"github.com/tnicklin/vigia/discord"
	"github.com/tnicklin/vigia/health"
	"github.com/tnicklin/vigia/logger"
	"github.com/tnicklin/vigia/mentions"
	"github.com/tnicklin/vigia/servermgmt"
	"github.com/tnicklin/vigia/store"
	"github.com/tnicklin/vigia/timeutil"
	"go.uber.org/config"
)

// Environment variables that override file settings.
const (
	EnvToken      = "DISCORD_BOT_TOKEN"
	EnvPort       = "PORT"
	EnvDatabase   = "DATABASE_PATH"
	EnvLogLevel   = "LOG_LEVEL"
	EnvConfigPath = "CONFIG_PATH"
)

// GiveawayConfig bounds giveaway durations. Giveaways are not enabled;
// the bounds are validated so a config file carrying them stays valid.
type GiveawayConfig struct {
	Emoji              string `yaml:"emoji"`
	MinDurationSeconds int    `yaml:"min_duration_seconds"`
	MaxDurationSeconds int    `yaml:"max_duration_seconds"`
}

func (c *GiveawayConfig) Defaults() {
	if c.Emoji == "" {
		c.Emoji = "🎉"
	}
	if c.MinDurationSeconds == 0 {
		c.MinDurationSeconds = 60
	}
	if c.MaxDurationSeconds == 0 {
		c.MaxDurationSeconds = 604800
	}
}

// AppConfig holds all application configuration.
type AppConfig struct {
	Logger      logger.Config            `yaml:"logger"`
	Discord     discord.Config           `yaml:"discord"`
	Health      health.Config            `yaml:"health"`
	Store       store.Config             `yaml:"store"`
	Clock       clock.Config             `yaml:"clock"`
	Mentions    mentions.Config          `yaml:"mentions"`
	Giveaway    GiveawayConfig           `yaml:"giveaway"`
	Permissions discord.PermissionConfig `yaml:"permissions"`
	Colors      discord.Palette          `yaml:"colors"`
	Media       servermgmt.MediaConfig   `yaml:"media"`
	Activity    activity.Config          `yaml:"activity"`
	TimeFormat  string                   `yaml:"time_format"`
}

// Load reads configuration from the specified YAML files.
// Files are merged in order, with later files overriding earlier ones.
// Missing files are silently ignored.
func Load(files ...string) (*AppConfig, error) {
	opts := make([]config.YAMLOption, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			opts = append(opts, config.File(f))
		}
	}

	if len(opts) == 0 {
		return nil, os.ErrNotExist
	}

	provider, err := config.NewYAML(opts...)
	if err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := provider.Get(config.Root).Populate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadWithDefaults loads configuration and fills every unset field. When
// none of the files exist the built-in defaults are used.
func LoadWithDefaults(files ...string) (*AppConfig, error) {
	cfg, err := Load(files...)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = &AppConfig{}, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.Defaults()
	return cfg, nil
}

func (c *AppConfig) Defaults() {
	c.Logger.Defaults()
	c.Discord.Defaults()
	c.Health.Defaults()
	c.Store.Defaults()
	c.Clock.Defaults()
	c.Mentions.Defaults()
	c.Giveaway.Defaults()
	c.Permissions.Defaults()
	c.Colors.Defaults()
	c.Media.Defaults()
	c.Activity.Defaults()
	if c.TimeFormat == "" {
		c.TimeFormat = timeutil.DisplayLayout
	}
}

// ApplyEnv overlays environment overrides. The token is left to the
// orchestrator so that a missing token is reported there.
func (c *AppConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvPort); v != "" {
		c.Health.PortEnv = v
	}
	if v := getenv(EnvDatabase); v != "" {
		c.Store.Path = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logger.Level = strings.ToLower(v)
	}
}

// Validate checks cross-field constraints. It expects Defaults to have run.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Mentions.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("mentions.threshold must be positive, got %d", c.Mentions.Threshold))
	}
	if c.Mentions.AwardAttempts < 1 {
		errs = append(errs, fmt.Errorf("mentions.award_attempts must be at least 1, got %d", c.Mentions.AwardAttempts))
	}
	if c.Giveaway.MinDurationSeconds >= c.Giveaway.MaxDurationSeconds {
		errs = append(errs, fmt.Errorf("giveaway.min_duration_seconds (%d) must be below max_duration_seconds (%d)",
			c.Giveaway.MinDurationSeconds, c.Giveaway.MaxDurationSeconds))
	}
	if _, err := c.Permissions.Resolve(); err != nil {
		errs = append(errs, fmt.Errorf("permissions: %w", err))
	}
	if strings.TrimSpace(c.Discord.Prefix) == "" {
		errs = append(errs, errors.New("discord.prefix must not be empty"))
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path must not be empty"))
	}
	if c.Activity.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("activity.retention_days must be positive, got %d", c.Activity.RetentionDays))
	}
	return errors.Join(errs...)
}

// Tiers resolves the permission tiers. Call after Validate.
func (c *AppConfig) Tiers() discord.Tiers {
	tiers, err := c.Permissions.Resolve()
	if err != nil {
		return discord.DefaultTiers()
	}
	return tiers
}
