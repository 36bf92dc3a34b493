package mentions

import "testing"

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.Defaults()
	if cfg.ChannelID != channel || cfg.RoleID != role || cfg.Threshold != 5 || cfg.AwardAttempts != 3 {
		t.Fatalf("defaults = %+v", cfg)
	}

	cfg = Config{ChannelID: AllChannels}
	cfg.Defaults()
	if cfg.ChannelID != AllChannels {
		t.Fatalf("ChannelID = %q, want %q", cfg.ChannelID, AllChannels)
	}
}

func TestConfigTracks(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		channelID  string
		want       bool
	}{
		{name: "configured channel", configured: channel, channelID: channel, want: true},
		{name: "other channel", configured: channel, channelID: "elsewhere"},
		{name: "all channels", configured: AllChannels, channelID: "elsewhere", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{ChannelID: tt.configured}
			if got := cfg.Tracks(tt.channelID); got != tt.want {
				t.Fatalf("Tracks(%q) = %v, want %v", tt.channelID, got, tt.want)
			}
		})
	}
}
