// Package tracker counts daily video submissions from a group's tracked
// user and resolves the per-day limit that applies to them.
package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/clock"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/config"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/store"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/pkg/logx"
)

// DefaultDailyLimit applies when neither the user, the group, nor the
// global settings carry a limit.
const DefaultDailyLimit = 10

// Rejection reasons reported in Result.Reason.
const (
	ReasonNotRegistered = "not_registered"
	ReasonWrongUser     = "wrong_user"
	ReasonLimitReached  = "limit_reached"
)

// Event is one incoming video or video note.
type Event struct {
	ChatID     string
	SenderID   string
	SenderName string
}

// Result describes what the tracker did with an event.
type Result struct {
	Counted  bool
	Reason   string
	NewCount int64
	Limit    int
}

// Completed reports whether this event brought the group to its limit.
func (r Result) Completed() bool {
	return r.Counted && r.Limit > 0 && r.NewCount == int64(r.Limit)
}

type Tracker struct {
	store store.Store
	clock *clock.Clock
	log   logx.Logger

	mu           sync.RWMutex
	enforceLimit bool
}

func New(cfg config.TrackerConfig, st store.Store, clk *clock.Clock, log logx.Logger) *Tracker {
	return &Tracker{
		store:        st,
		clock:        clk,
		log:          log,
		enforceLimit: cfg.EnforceLimit,
	}
}

// Apply updates reloadable knobs.
func (t *Tracker) Apply(cfg config.TrackerConfig) {
	t.mu.Lock()
	t.enforceLimit = cfg.EnforceLimit
	t.mu.Unlock()
}

func (t *Tracker) enforcing() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enforceLimit
}

// ResolveLimit walks the override chain: user limit, then group limit,
// then the global settings default, then DefaultDailyLimit. A limit of
// zero means unset at that level. Store read failures fall through to
// the next level.
func (t *Tracker) ResolveLimit(ctx context.Context, groupID, userID string) int {
	if userID != "" {
		u, err := t.store.GetUser(ctx, userID)
		switch {
		case err == nil:
			if u.DailyLimit > 0 {
				return u.DailyLimit
			}
		case !errors.Is(err, store.ErrNotFound):
			t.log.Warn("limit: user read failed", logx.String("user", userID), logx.Err(err))
		}
	}

	g, err := t.store.GetGroup(ctx, groupID)
	switch {
	case err == nil:
		if g.DailyLimit > 0 {
			return g.DailyLimit
		}
	case !errors.Is(err, store.ErrNotFound):
		t.log.Warn("limit: group read failed", logx.String("group", groupID), logx.Err(err))
	}

	set, err := t.store.GetSettings(ctx)
	switch {
	case err == nil:
		if set.DefaultDailyLimit > 0 {
			return set.DefaultDailyLimit
		}
	case !errors.Is(err, store.ErrNotFound):
		t.log.Warn("limit: settings read failed", logx.Err(err))
	}

	return DefaultDailyLimit
}

// HandleVideo gates and counts one submission. It never returns an
// error: store failures are logged and the event is dropped uncounted.
func (t *Tracker) HandleVideo(ctx context.Context, ev Event) Result {
	g, err := t.store.GetGroup(ctx, ev.ChatID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			t.log.Warn("gate: group read failed", logx.String("group", ev.ChatID), logx.Err(err))
		}
		return Result{Reason: ReasonNotRegistered}
	}
	if !g.IsActive {
		return Result{Reason: ReasonNotRegistered}
	}

	// An unset tracked user means the group counts everyone.
	tracked := strings.TrimSpace(g.TrackedUserID)
	if tracked != "" && strings.TrimSpace(ev.SenderID) != tracked {
		return Result{Reason: ReasonWrongUser}
	}

	limit := t.ResolveLimit(ctx, ev.ChatID, ev.SenderID)
	today := t.clock.Today()

	if t.enforcing() {
		cur := t.TodayCount(ctx, ev.ChatID)
		if cur >= int64(limit) {
			return Result{Reason: ReasonLimitReached, NewCount: cur, Limit: limit}
		}
	}

	count, err := t.store.IncrementCounter(ctx, today, ev.ChatID, ev.SenderID, ev.SenderName, t.clock.Now())
	if err != nil {
		t.log.Error("gate: increment failed",
			logx.String("group", ev.ChatID), logx.String("date", today), logx.Err(err))
		return Result{Limit: limit}
	}

	if count > int64(limit) {
		t.log.Warn("daily limit exceeded",
			logx.String("group", ev.ChatID),
			logx.Int64("count", count), logx.Int("limit", limit))
	}
	return Result{Counted: true, NewCount: count, Limit: limit}
}

// TodayCount returns today's count for the group, zero on any failure.
func (t *Tracker) TodayCount(ctx context.Context, groupID string) int64 {
	c, err := t.store.GetCounter(ctx, t.clock.Today(), groupID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			t.log.Warn("counter read failed", logx.String("group", groupID), logx.Err(err))
		}
		return 0
	}
	return c.Count
}
