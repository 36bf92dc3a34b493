package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/tnicklin/vigia/logger"
	"github.com/tnicklin/vigia/models"
)

var _ Store = (*SQLiteStore)(nil)

//go:embed schema/migrations/*.sql
var migrations embed.FS

const defaultDebounce = 5 * time.Second

// memorySeq keeps in-memory databases of separate stores apart; with
// cache=shared two stores using the same name would see each other's rows.
var memorySeq atomic.Int64

// SQLiteStore keeps the working set in an in-memory SQLite database and
// snapshots it to disk after writes settle.
type SQLiteStore struct {
	mu           sync.RWMutex
	db           *sql.DB
	snapshotPath string
	memoryDSN    string
	logger       logger.Logger

	flushDebounce time.Duration
	flushTimer    *time.Timer
	flushMu       sync.Mutex
	dirty         bool
	ctx           context.Context
	cancel        context.CancelFunc
}

type Params struct {
	Path   string
	Logger logger.Logger
}

func NewSQLiteStore(p Params) *SQLiteStore {
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &SQLiteStore{
		snapshotPath:  p.Path,
		memoryDSN:     fmt.Sprintf("file:vigia_%d?mode=memory&cache=shared&_busy_timeout=5000", memorySeq.Add(1)),
		flushDebounce: defaultDebounce,
		logger:        log,
	}
}

// SetFlushDebounce sets the debounce duration for disk flushes.
// Must be called before Open().
func (s *SQLiteStore) SetFlushDebounce(d time.Duration) {
	s.flushDebounce = d
}

func (s *SQLiteStore) Initialize(ctx context.Context) error {
	if err := s.Open(ctx); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := s.RestoreFromDisk(ctx, s.snapshotPath); err != nil {
		return fmt.Errorf("restore snapshot %s: %w", s.snapshotPath, err)
	}
	s.logger.InfoW("database initialized", "path", s.snapshotPath)
	return nil
}

func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	database, err := sql.Open("sqlite3", s.memoryDSN)
	if err != nil {
		return err
	}
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)

	if err = database.PingContext(ctx); err != nil {
		_ = database.Close()
		return err
	}

	s.db = database
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s.applyMigrations(ctx)
}

// Close closes the database without flushing. Use Shutdown for graceful shutdown.
func (s *SQLiteStore) Close() error {
	s.flushMu.Lock()
	s.stopFlushTimer()
	s.flushMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Shutdown performs a final flush to disk and closes the database.
func (s *SQLiteStore) Shutdown(ctx context.Context) error {
	s.flushMu.Lock()
	s.stopFlushTimer()
	dirty := s.dirty
	s.flushMu.Unlock()

	if dirty && s.snapshotPath != "" {
		if err := s.FlushToDisk(ctx, s.snapshotPath); err != nil {
			s.logger.ErrorW("shutdown flush failed", "path", s.snapshotPath, "error", err)
		}
	}

	return s.Close()
}

func (s *SQLiteStore) RestoreFromDisk(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrNotOpen
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	fileDB, err := sql.Open("sqlite3", sqliteFileDSN(path))
	if err != nil {
		return err
	}
	defer fileDB.Close()

	if err := s.backup(ctx, fileDB, s.db); err != nil {
		return err
	}

	return s.applyMigrations(ctx)
}

func (s *SQLiteStore) FlushToDisk(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushLocked(ctx, path); err != nil {
		return err
	}

	s.flushMu.Lock()
	s.dirty = false
	s.flushMu.Unlock()
	return nil
}

func (s *SQLiteStore) scheduleFlush() {
	if s.snapshotPath == "" {
		return
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.dirty = true
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}
	s.flushTimer = time.AfterFunc(s.flushDebounce, s.performScheduledFlush)
}

func (s *SQLiteStore) performScheduledFlush() {
	s.flushMu.Lock()
	dirty := s.dirty
	s.flushMu.Unlock()
	if !dirty {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	if err := s.FlushToDisk(ctx, s.snapshotPath); err != nil {
		s.logger.ErrorW("scheduled flush failed", "path", s.snapshotPath, "error", err)
		return
	}
	s.logger.DebugW("snapshot flushed", "path", s.snapshotPath)
}

func (s *SQLiteStore) stopFlushTimer() {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
}

func (s *SQLiteStore) IncrementMentions(ctx context.Context, guildID, userID string, delta int, at time.Time) (models.MentionCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return models.MentionCount{}, ErrNotOpen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.MentionCount{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mention_counts (guild_id, user_id, total, role_awarded, updated_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT (guild_id, user_id)
		DO UPDATE SET total = total + excluded.total, updated_at = excluded.updated_at`,
		guildID, userID, delta, at.UTC().Format(time.RFC3339))
	if err != nil {
		_ = tx.Rollback()
		s.logger.ErrorW("failed to increment mentions", "guild_id", guildID, "user_id", userID, "error", err)
		return models.MentionCount{}, err
	}

	mc, err := scanMentionCount(tx.QueryRowContext(ctx, mentionSelect+` WHERE guild_id = ? AND user_id = ?`, guildID, userID))
	if err != nil {
		_ = tx.Rollback()
		return models.MentionCount{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.MentionCount{}, err
	}

	s.logger.DebugW("mentions incremented", "guild_id", guildID, "user_id", userID, "delta", delta, "count", mc.Count)
	s.scheduleFlush()
	return mc, nil
}

func (s *SQLiteStore) GetMentionCount(ctx context.Context, guildID, userID string) (models.MentionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return models.MentionCount{}, ErrNotOpen
	}

	mc, err := scanMentionCount(s.db.QueryRowContext(ctx, mentionSelect+` WHERE guild_id = ? AND user_id = ?`, guildID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.MentionCount{GuildID: guildID, UserID: userID}, nil
	}
	return mc, err
}

func (s *SQLiteStore) MarkRoleAwarded(ctx context.Context, guildID, userID string) error {
	return s.exec(ctx, `UPDATE mention_counts SET role_awarded = 1 WHERE guild_id = ? AND user_id = ?`, guildID, userID)
}

func (s *SQLiteStore) ResetMentions(ctx context.Context, guildID, userID string) error {
	return s.exec(ctx, `DELETE FROM mention_counts WHERE guild_id = ? AND user_id = ?`, guildID, userID)
}

func (s *SQLiteStore) TopMentions(ctx context.Context, guildID string, limit int) ([]models.MentionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.QueryContext(ctx, mentionSelect+`
		WHERE guild_id = ? AND total > 0
		ORDER BY total DESC, updated_at ASC
		LIMIT ?`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MentionCount
	for rows.Next() {
		mc, err := scanMentionCount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddWarning(ctx context.Context, w models.Warning) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, ErrNotOpen
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO warnings (guild_id, user_id, moderator_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		w.GuildID, w.UserID, w.ModeratorID, w.Reason, w.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	s.scheduleFlush()
	return id, nil
}

func (s *SQLiteStore) ListWarnings(ctx context.Context, guildID, userID string) ([]models.Warning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, moderator_id, reason, created_at
		FROM warnings
		WHERE guild_id = ? AND user_id = ?
		ORDER BY id ASC`, guildID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Warning
	for rows.Next() {
		var w models.Warning
		if err := rows.Scan(&w.ID, &w.GuildID, &w.UserID, &w.ModeratorID, &w.Reason, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddMediaChannel(ctx context.Context, guildID, channelID string) error {
	return s.exec(ctx, `INSERT OR IGNORE INTO media_channels (guild_id, channel_id) VALUES (?, ?)`, guildID, channelID)
}

func (s *SQLiteStore) RemoveMediaChannel(ctx context.Context, guildID, channelID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return false, ErrNotOpen
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM media_channels WHERE guild_id = ? AND channel_id = ?`, guildID, channelID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.scheduleFlush()
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListMediaChannels(ctx context.Context, guildID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.QueryContext(ctx, `SELECT channel_id FROM media_channels WHERE guild_id = ? ORDER BY channel_id`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddActivity(ctx context.Context, e models.ActivityEntry) error {
	return s.exec(ctx, `
		INSERT INTO activity_log (guild_id, user_id, channel_id, kind, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.GuildID, e.UserID, e.ChannelID, string(e.Kind), e.Details, e.CreatedAt)
}

func (s *SQLiteStore) ListActivity(ctx context.Context, guildID string, limit int) ([]models.ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, channel_id, kind, details, created_at
		FROM activity_log
		WHERE guild_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ActivityEntry
	for rows.Next() {
		var e models.ActivityEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.GuildID, &e.UserID, &e.ChannelID, &kind, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = models.ActivityKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PruneActivity(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, ErrNotOpen
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM activity_log WHERE created_at < ?`, before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.scheduleFlush()
	}
	return n, nil
}

func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrNotOpen
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	s.scheduleFlush()
	return nil
}

const mentionSelect = `SELECT guild_id, user_id, total, role_awarded, updated_at FROM mention_counts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMentionCount(row rowScanner) (models.MentionCount, error) {
	var mc models.MentionCount
	var awarded int64
	if err := row.Scan(&mc.GuildID, &mc.UserID, &mc.Count, &awarded, &mc.UpdatedAt); err != nil {
		return models.MentionCount{}, err
	}
	mc.RoleAwarded = awarded != 0
	return mc, nil
}

func (s *SQLiteStore) flushLocked(ctx context.Context, path string) error {
	if s.db == nil {
		return ErrNotOpen
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	fileDB, err := sql.Open("sqlite3", sqliteFileDSN(path))
	if err != nil {
		return err
	}
	defer fileDB.Close()

	return s.backup(ctx, s.db, fileDB)
}

func (s *SQLiteStore) backup(ctx context.Context, src *sql.DB, dst *sql.DB) error {
	srcConn, err := src.Conn(ctx)
	if err != nil {
		return err
	}
	defer srcConn.Close()

	dstConn, err := dst.Conn(ctx)
	if err != nil {
		return err
	}
	defer dstConn.Close()

	return dstConn.Raw(func(dstDriver any) error {
		return srcConn.Raw(func(srcDriver any) error {
			dstSQLite, ok := dstDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected destination driver: %T", dstDriver)
			}
			srcSQLite, ok := srcDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected source driver: %T", srcDriver)
			}

			backup, err := dstSQLite.Backup("main", srcSQLite, "main")
			if err != nil {
				return err
			}
			defer backup.Finish()

			_, err = backup.Step(-1)
			return err
		})
	})
}

func (s *SQLiteStore) applyMigrations(ctx context.Context) error {
	if s.db == nil {
		return ErrNotOpen
	}

	files, err := fs.Glob(migrations, "schema/migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		sqlText := strings.TrimSpace(string(content))
		if sqlText == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("migration %s: %w", filepath.Base(name), err)
		}
	}
	return nil
}

func sqliteFileDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000", path)
}
