package servermgmt

import "strings"

// MediaConfig restricts channels to media uploads.
type MediaConfig struct {
	// OnlyChannels are always media-only, in addition to channels added
	// with the mediaonly command.
	OnlyChannels      []string `yaml:"only_channels"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

var defaultExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff",
	".mp4", ".mov", ".avi", ".wmv", ".flv", ".webm", ".mkv",
	".mp3", ".wav", ".ogg", ".flac", ".m4a", ".aac",
}

// Defaults fills unset fields and normalises extensions to ".ext".
func (c *MediaConfig) Defaults() {
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = append([]string(nil), defaultExtensions...)
	}
	for i, ext := range c.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.AllowedExtensions[i] = ext
	}
}
