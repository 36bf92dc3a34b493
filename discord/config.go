package discord

// Config holds bot session settings.
type Config struct {
	Token            string `yaml:"token"`
	Prefix           string `yaml:"prefix"`
	Presence         string `yaml:"presence"`
	MessageCacheSize int    `yaml:"message_cache_size"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.Prefix == "" {
		c.Prefix = "!"
	}
	if c.Presence == "" {
		c.Presence = "Revisando que no la caguen"
	}
	if c.MessageCacheSize == 0 {
		c.MessageCacheSize = 500
	}
}

// Palette is the embed colour table shared by every module.
type Palette struct {
	Success  int `yaml:"success"`
	Error    int `yaml:"error"`
	Info     int `yaml:"info"`
	Warning  int `yaml:"warning"`
	Giveaway int `yaml:"giveaway"`
}

// Defaults fills unset colours.
func (p *Palette) Defaults() {
	if p.Success == 0 {
		p.Success = 0x00ff00
	}
	if p.Error == 0 {
		p.Error = 0xff0000
	}
	if p.Info == 0 {
		p.Info = 0x0099ff
	}
	if p.Warning == 0 {
		p.Warning = 0xffaa00
	}
	if p.Giveaway == 0 {
		p.Giveaway = 0xff6b6b
	}
}
