// Package store is the document-store layer. Logical collections mirror the
// managed database the bot was built around: groups/{chatId},
// users/{telegramId}, stats/{date}/groups/{chatId}, settings/global,
// schedules/{id}, broadcasts/{id}.
//
// Three drivers share one interface: "mongo" (primary), "sqlite" (embedded,
// no external service), and "memory" (tests and throwaway runs).
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/config"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/pkg/logx"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Store is the persistence API used by the tracker, reminder, HTTP, and
// export layers. Put* operations are upserts keyed by the model's identity.
type Store interface {
	PutGroup(ctx context.Context, g Group) error
	GetGroup(ctx context.Context, chatID string) (Group, error)
	DeleteGroup(ctx context.Context, chatID string) error
	ListGroups(ctx context.Context) ([]Group, error)

	PutUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, telegramID string) (User, error)
	DeleteUser(ctx context.Context, telegramID string) error
	ListUsers(ctx context.Context) ([]User, error)

	PutSchedule(ctx context.Context, s Schedule) error
	GetSchedule(ctx context.Context, id string) (Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context) ([]Schedule, error)

	PutBroadcast(ctx context.Context, b Broadcast) error
	GetBroadcast(ctx context.Context, id string) (Broadcast, error)
	DeleteBroadcast(ctx context.Context, id string) error
	ListBroadcasts(ctx context.Context) ([]Broadcast, error)
	// SetBroadcastLastSent updates only the dedup watermark, so a CRUD
	// update racing with a tick cannot resurrect a stale watermark.
	SetBroadcastLastSent(ctx context.Context, id, date string) error

	GetSettings(ctx context.Context) (Settings, error)
	PutSettings(ctx context.Context, s Settings) error

	// IncrementCounter atomically increments the (date, group) counter,
	// recording the contributing user, and returns the new count. The
	// document is created with count=1 when absent.
	IncrementCounter(ctx context.Context, date, groupID, userID, userName string, now time.Time) (int64, error)
	GetCounter(ctx context.Context, date, groupID string) (DailyCounter, error)
	ListCounters(ctx context.Context, date string) ([]DailyCounter, error)

	Close(ctx context.Context) error
}

// Open initializes the configured driver.
func Open(ctx context.Context, cfg config.StorageConfig, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "mongo", "mongodb":
		return openMongo(ctx, cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
