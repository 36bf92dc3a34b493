package mentions

// AllChannels as ChannelID tracks every channel.
const AllChannels = "*"

// Config holds mention tracker settings.
type Config struct {
	// ChannelID limits tracking to one channel, or AllChannels.
	ChannelID string `yaml:"channel_id"`
	RoleID    string `yaml:"role_id"`
	Threshold int    `yaml:"threshold"`
	// AwardAttempts bounds how often a failed role grant is retried.
	AwardAttempts int `yaml:"award_attempts"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.ChannelID == "" {
		c.ChannelID = "1388050230842232832"
	}
	if c.RoleID == "" {
		c.RoleID = "1394407546600689754"
	}
	if c.Threshold == 0 {
		c.Threshold = 5
	}
	if c.AwardAttempts == 0 {
		c.AwardAttempts = 3
	}
}

// Tracks reports whether messages in channelID are counted.
func (c Config) Tracks(channelID string) bool {
	return c.ChannelID == AllChannels || c.ChannelID == channelID
}
