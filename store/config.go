package store

// Config holds persistence settings.
type Config struct {
	Path string `yaml:"path"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.Path == "" {
		c.Path = "bot_data.db"
	}
}
