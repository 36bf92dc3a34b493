package activity

const (
	defaultRetentionDays = 30
	defaultPruneHours    = 24
)

type Config struct {
	// LogChannelID receives an embed per event when set.
	LogChannelID       string `yaml:"log_channel_id"`
	RetentionDays      int    `yaml:"retention_days"`
	PruneIntervalHours int    `yaml:"prune_interval_hours"`
}

func (c *Config) Defaults() {
	if c.RetentionDays <= 0 {
		c.RetentionDays = defaultRetentionDays
	}
	if c.PruneIntervalHours <= 0 {
		c.PruneIntervalHours = defaultPruneHours
	}
}
