package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/tnicklin/vigia/logger"
	"github.com/tnicklin/vigia/timeutil"
)

var errAlreadyStarted = errors.New("retention job already started")

// Start schedules the retention job every PruneIntervalHours. The first
// run happens from StoreReady, once the database is open.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scheduler != nil {
		return errAlreadyStarted
	}

	s, err := gocron.NewScheduler(gocron.WithLogger(schedulerLogger{m.logger}))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	interval := time.Duration(m.cfg.PruneIntervalHours) * time.Hour
	job, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(m.prune),
		gocron.WithName("activity-retention"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule retention job: %w", err)
	}

	m.runCtx = ctx
	m.scheduler = s
	m.job = job
	s.Start()
	m.logger.InfoW("activity retention scheduled", "retention_days", m.cfg.RetentionDays, "interval", interval)
	return nil
}

// Stop shuts the scheduler down, waiting for a running prune.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	s := m.scheduler
	m.scheduler = nil
	m.job = nil
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	if err := s.Shutdown(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	return nil
}

// StoreReady runs the first prune once the database is initialized.
func (m *Monitor) StoreReady(ctx context.Context) {
	m.mu.Lock()
	job := m.job
	m.mu.Unlock()
	if job == nil {
		if _, err := m.Prune(ctx); err != nil {
			m.logger.ErrorW("activity prune failed", "error", err)
		}
		return
	}
	if err := job.RunNow(); err != nil {
		m.logger.ErrorW("failed to run activity retention", "error", err)
	}
}

func (m *Monitor) prune() {
	m.mu.Lock()
	ctx := m.runCtx
	m.mu.Unlock()
	if _, err := m.Prune(ctx); err != nil {
		m.logger.ErrorW("activity prune failed", "error", err)
	}
}

// Prune deletes entries older than RetentionDays.
func (m *Monitor) Prune(ctx context.Context) (int64, error) {
	cutoff := timeutil.RetentionCutoff(m.clock.Now(), m.cfg.RetentionDays)
	n, err := m.store.PruneActivity(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune activity before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		m.logger.InfoW("pruned activity", "deleted", n, "cutoff", cutoff)
	}
	return n, nil
}

// schedulerLogger routes gocron's logs through logger.Logger.
type schedulerLogger struct {
	log logger.Logger
}

var _ gocron.Logger = schedulerLogger{}

func (l schedulerLogger) Debug(msg string, args ...any) { l.log.DebugW(msg, args...) }
func (l schedulerLogger) Info(msg string, args ...any)  { l.log.InfoW(msg, args...) }
func (l schedulerLogger) Warn(msg string, args ...any)  { l.log.WarnW(msg, args...) }
func (l schedulerLogger) Error(msg string, args ...any) { l.log.ErrorW(msg, args...) }
