package store

import (
	"context"
	"errors"
	"time"

	"github.com/tnicklin/vigia/models"
)

// ErrNotOpen is returned by every query made before Open.
var ErrNotOpen = errors.New("store is not open")

type Store interface {
	// Initialize opens the database and restores the on-disk snapshot.
	Initialize(ctx context.Context) error
	Open(ctx context.Context) error
	Close() error
	Shutdown(ctx context.Context) error

	RestoreFromDisk(ctx context.Context, path string) error
	FlushToDisk(ctx context.Context, path string) error

	IncrementMentions(ctx context.Context, guildID, userID string, delta int, at time.Time) (models.MentionCount, error)
	GetMentionCount(ctx context.Context, guildID, userID string) (models.MentionCount, error)
	MarkRoleAwarded(ctx context.Context, guildID, userID string) error
	ResetMentions(ctx context.Context, guildID, userID string) error
	TopMentions(ctx context.Context, guildID string, limit int) ([]models.MentionCount, error)

	AddWarning(ctx context.Context, w models.Warning) (int64, error)
	ListWarnings(ctx context.Context, guildID, userID string) ([]models.Warning, error)

	AddMediaChannel(ctx context.Context, guildID, channelID string) error
	RemoveMediaChannel(ctx context.Context, guildID, channelID string) (bool, error)
	ListMediaChannels(ctx context.Context, guildID string) ([]string, error)

	AddActivity(ctx context.Context, e models.ActivityEntry) error
	ListActivity(ctx context.Context, guildID string, limit int) ([]models.ActivityEntry, error)
	PruneActivity(ctx context.Context, before time.Time) (int64, error)
}
