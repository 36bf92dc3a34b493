package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tnicklin/vigia/timeutil"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yaml")

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name: "valid config",
			content: `
logger:
  level: debug
  output_paths:
    - stdout
discord:
  prefix: "?"
mentions:
  channel_id: "42"
  threshold: 3
store:
  path: "test.db"
`,
			wantErr: false,
		},
		{
			name:    "empty config",
			content: "",
			wantErr: false,
		},
		{
			name:    "malformed yaml",
			content: "logger: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}

			cfg, err := Load(configPath)
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && cfg == nil {
				t.Error("Load() returned nil config without error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Load() should return error for missing file")
	}
}

func TestLoad_MergesFiles(t *testing.T) {
	tmpDir := t.TempDir()
	base := filepath.Join(tmpDir, "base.yaml")
	override := filepath.Join(tmpDir, "override.yaml")
	if err := os.WriteFile(base, []byte("store:\n  path: base.db\ndiscord:\n  prefix: \"?\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(override, []byte("store:\n  path: override.db\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(base, filepath.Join(tmpDir, "missing.yaml"), override)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Path != "override.db" || cfg.Discord.Prefix != "?" {
		t.Errorf("merged config = store %q prefix %q", cfg.Store.Path, cfg.Discord.Prefix)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yaml")

	tests := []struct {
		name          string
		content       string
		wantLogLevel  string
		wantPrefix    string
		wantStorePath string
		wantThreshold int
	}{
		{
			name:          "applies defaults when values missing",
			content:       "logger:\n  level: \"\"\n",
			wantLogLevel:  "info",
			wantPrefix:    "!",
			wantStorePath: "bot_data.db",
			wantThreshold: 5,
		},
		{
			name:          "respects provided values",
			content:       "logger:\n  level: debug\nstore:\n  path: custom.db\nmentions:\n  threshold: 8\n",
			wantLogLevel:  "debug",
			wantPrefix:    "!",
			wantStorePath: "custom.db",
			wantThreshold: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}

			cfg, err := LoadWithDefaults(configPath)
			if err != nil {
				t.Fatalf("LoadWithDefaults() error = %v", err)
			}

			if cfg.Logger.Level != tt.wantLogLevel {
				t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, tt.wantLogLevel)
			}
			if cfg.Discord.Prefix != tt.wantPrefix {
				t.Errorf("Discord.Prefix = %q, want %q", cfg.Discord.Prefix, tt.wantPrefix)
			}
			if cfg.Store.Path != tt.wantStorePath {
				t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, tt.wantStorePath)
			}
			if cfg.Mentions.Threshold != tt.wantThreshold {
				t.Errorf("Mentions.Threshold = %d, want %d", cfg.Mentions.Threshold, tt.wantThreshold)
			}
		})
	}
}

func TestLoadWithDefaults_NoFile(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadWithDefaults() error = %v", err)
	}

	if cfg.Health.Host != "0.0.0.0" || cfg.Health.Port != 5000 {
		t.Errorf("Health = %+v", cfg.Health)
	}
	if cfg.Discord.Presence != "Revisando que no la caguen" {
		t.Errorf("Discord.Presence = %q", cfg.Discord.Presence)
	}
	if cfg.Colors.Info != 0x0099ff || cfg.Colors.Giveaway != 0xff6b6b {
		t.Errorf("Colors = %+v", cfg.Colors)
	}
	if cfg.Giveaway.MinDurationSeconds != 60 || cfg.Giveaway.MaxDurationSeconds != 604800 {
		t.Errorf("Giveaway = %+v", cfg.Giveaway)
	}
	if cfg.Activity.RetentionDays != 30 {
		t.Errorf("Activity.RetentionDays = %d", cfg.Activity.RetentionDays)
	}
	if cfg.TimeFormat != timeutil.DisplayLayout {
		t.Errorf("TimeFormat = %q", cfg.TimeFormat)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvPort:     "8080",
		EnvDatabase: "/data/bot.db",
		EnvLogLevel: "DEBUG",
		EnvToken:    "secret",
	}
	cfg := &AppConfig{}
	cfg.Defaults()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Health.PortEnv != "8080" {
		t.Errorf("Health.PortEnv = %q", cfg.Health.PortEnv)
	}
	if cfg.Store.Path != "/data/bot.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q", cfg.Logger.Level)
	}
	if cfg.Discord.Token != "" {
		t.Errorf("token must not be copied from env, got %q", cfg.Discord.Token)
	}

	unset := &AppConfig{}
	unset.Defaults()
	unset.ApplyEnv(func(string) string { return "" })
	if unset.Store.Path != "bot_data.db" || unset.Health.PortEnv != "" {
		t.Errorf("empty env changed config: %+v", unset)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*AppConfig) {}},
		{name: "negative threshold", mutate: func(c *AppConfig) { c.Mentions.Threshold = -1 }, wantErr: "mentions.threshold"},
		{name: "no award attempts", mutate: func(c *AppConfig) { c.Mentions.AwardAttempts = -2 }, wantErr: "award_attempts"},
		{name: "giveaway bounds", mutate: func(c *AppConfig) { c.Giveaway.MinDurationSeconds = 700000 }, wantErr: "giveaway"},
		{name: "unknown capability", mutate: func(c *AppConfig) { c.Permissions.Admin = []string{"fly"} }, wantErr: "permissions"},
		{name: "blank prefix", mutate: func(c *AppConfig) { c.Discord.Prefix = " " }, wantErr: "discord.prefix"},
		{name: "blank store", mutate: func(c *AppConfig) { c.Store.Path = "" }, wantErr: "store.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &AppConfig{}
			cfg.Defaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestTiers(t *testing.T) {
	cfg := &AppConfig{}
	cfg.Defaults()
	cfg.Permissions.Moderator = []string{"moderate_members"}

	tiers := cfg.Tiers()
	if tiers.Moderator == 0 || tiers.Admin == 0 || tiers.Moderator == tiers.Admin {
		t.Fatalf("tiers = %+v", tiers)
	}
}
