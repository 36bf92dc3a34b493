package health

import (
	"fmt"
	"strconv"
	"strings"
)

// Config holds health endpoint settings.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// PortEnv is the raw PORT environment value; it wins over Port.
	PortEnv string `yaml:"-"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 5000
	}
}

// PreferredPort returns the first port to try.
func (c Config) PreferredPort() (int, error) {
	raw := strings.TrimSpace(c.PortEnv)
	if raw == "" {
		return c.Port, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid PORT value %q", raw)
	}
	return port, nil
}
