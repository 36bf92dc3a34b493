package clock

import (
	"context"
	"sync"
	"time"
)

// Clock provides wall-clock time. Implementations may correct for
// system clock drift (e.g. via NTP).
type Clock interface {
	Now() time.Time
}

// System returns a Clock backed by time.Now().
func System() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config selects the clock source.
type Config struct {
	NTPServer           string `yaml:"ntp_server"`
	SyncIntervalMinutes int    `yaml:"sync_interval_minutes"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.SyncIntervalMinutes <= 0 {
		c.SyncIntervalMinutes = int(defaultInterval / time.Minute)
	}
}

// Start returns the clock described by cfg and a function that stops
// any background sync. Without an NTP server the system clock is used.
func Start(ctx context.Context, cfg Config, log Logger) (Clock, func()) {
	if cfg.NTPServer == "" {
		return System(), func() {}
	}
	c := NewNTP(
		WithServer(cfg.NTPServer),
		WithInterval(time.Duration(cfg.SyncIntervalMinutes)*time.Minute),
		WithLogger(log),
	)
	_ = c.Start(ctx)
	return c, c.Stop
}

// Manual is a Clock whose time only moves when told to. Used in tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock set to t.
func NewManual(t time.Time) *Manual { return &Manual{now: t} }

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
