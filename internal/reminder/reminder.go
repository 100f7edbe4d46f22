// Package reminder runs the per-minute schedule check: group reminders,
// legacy standalone schedules, and broadcast campaigns.
package reminder

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/clock"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/notify"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/store"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/pkg/logx"
)

// Sender delivers one message; false means it was not delivered.
type Sender interface {
	Send(ctx context.Context, recipientID, text, parseMode string) bool
}

type Config struct {
	Enabled bool
	// BaseURL gates the export download link appended to broadcasts.
	BaseURL string
}

type Service struct {
	cfg        Config
	store      store.Store
	clock      *clock.Clock
	sender     Sender
	log        logx.Logger
	exportLink string

	cron    *cron.Cron
	running atomic.Bool
}

func New(cfg Config, st store.Store, clk *clock.Clock, sender Sender, log logx.Logger) *Service {
	return &Service{
		cfg:        cfg,
		store:      st,
		clock:      clk,
		sender:     sender,
		log:        log,
		exportLink: exportLink(cfg.BaseURL),
	}
}

// exportLink returns the public export URL, or "" when the base URL is
// unset, unparsable, or points at a local address.
func exportLink(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/api/export/excel"
}

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}
	c := cron.New(cron.WithLocation(s.clock.Location()))
	if _, err := c.AddFunc("* * * * *", func() { s.Tick(ctx) }); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.log.Info("scheduler started")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick runs one schedule check. Ticks are serialized: when the previous
// one is still running this one is skipped, so a slow minute never
// stacks duplicate sends.
func (s *Service) Tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("tick overlapped, skipping")
		return
	}
	defer s.running.Store(false)

	today := s.clock.Today()
	hhmm := s.clock.HHMM()
	weekday := s.clock.Weekday()
	s.log.Debug("tick", logx.String("date", today), logx.String("time", hhmm))

	s.runGroups(ctx, hhmm, weekday)
	s.runSchedules(ctx, hhmm)
	s.runBroadcasts(ctx, today, hhmm, weekday)
}

func (s *Service) runGroups(ctx context.Context, hhmm string, weekday int) {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		s.log.Error("tick: list groups failed", logx.Err(err))
		return
	}
	for _, g := range groups {
		if !g.IsActive || g.TrackedUserID == "" {
			continue
		}
		if !containsInt(g.Days, weekday) || !containsString(g.Times, hhmm) {
			continue
		}
		name := g.Name
		if u, err := s.store.GetUser(ctx, g.TrackedUserID); err == nil && u.Name != "" {
			name = u.Name
		} else if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("tick: user lookup failed", logx.String("user", g.TrackedUserID), logx.Err(err))
		}
		if s.sender.Send(ctx, g.TrackedUserID, reminderText(name), "") {
			s.log.Info("group reminder sent",
				logx.String("group", g.ChatID), logx.String("user", g.TrackedUserID))
		}
	}
}

func (s *Service) runSchedules(ctx context.Context, hhmm string) {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		s.log.Error("tick: list schedules failed", logx.Err(err))
		return
	}
	for _, sc := range schedules {
		if !sc.IsActive || !containsString(sc.Times, hhmm) {
			continue
		}
		if s.sender.Send(ctx, sc.UserID, reminderText(sc.UserName), "") {
			s.log.Info("schedule reminder sent", logx.String("user", sc.UserID))
		}
	}
}

func (s *Service) runBroadcasts(ctx context.Context, today, hhmm string, weekday int) {
	broadcasts, err := s.store.ListBroadcasts(ctx)
	if err != nil {
		s.log.Error("tick: list broadcasts failed", logx.Err(err))
		return
	}
	for _, b := range broadcasts {
		if !b.IsActive || !s.broadcastDue(b, today, hhmm, weekday) {
			continue
		}

		text := b.Message
		if b.AttachExport && s.exportLink != "" {
			text += "\n\n📊 Hisobotni yuklab olish: " + s.exportLink
		}

		sent := 0
		for _, uid := range b.UserIDs {
			if s.sender.Send(ctx, uid, text, notify.ModeMarkdown) {
				sent++
			}
		}
		s.log.Info("broadcast delivered",
			logx.String("broadcast", b.ID),
			logx.Int("sent", sent), logx.Int("recipients", len(b.UserIDs)))

		// The watermark moves once per batch, after every recipient was
		// attempted, so partial failures do not retrigger next minute.
		if err := s.store.SetBroadcastLastSent(ctx, b.ID, today); err != nil {
			s.log.Error("tick: set last sent failed", logx.String("broadcast", b.ID), logx.Err(err))
		}
	}
}

// broadcastDue decides eligibility. One-time broadcasts fire on the first
// tick after creation and never again; recurring ones fire when the day
// and minute match and they have not fired today.
func (s *Service) broadcastDue(b store.Broadcast, today, hhmm string, weekday int) bool {
	if b.IsOneTime {
		return b.LastSentDate == ""
	}
	if !containsInt(b.Days, weekday) || b.ScheduledTime != hhmm {
		return false
	}
	return b.LastSentDate != today
}

func reminderText(name string) string {
	return "Assalomu alaykum, " + name + " ustoz.\n\n" +
		"Iltimos, guruhingiz bo'yicha yo'qlama qiling.\n" +
		"Shuningdek, ota-onalar guruhiga video xabar yuborish vaqti keldi.\n\n" +
		"Agar bugun yaqin vaqtda darsingiz bo'lmasa,\n" +
		"@SanjarbekFayzullayev ga murojaat qiling."
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
