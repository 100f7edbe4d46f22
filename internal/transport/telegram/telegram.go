// Package telegram is the bot-facing transport: long-polled commands,
// video counting hooks, and outbound sends for the notifier.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/clock"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/config"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/store"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/tracker"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/pkg/logx"
)

type Bot struct {
	bot     *tele.Bot
	store   store.Store
	tracker *tracker.Tracker
	clock   *clock.Clock
	log     logx.Logger

	ctx context.Context
}

func New(cfg config.TelegramConfig, st store.Store, tr *tracker.Tracker, clk *clock.Clock, log logx.Logger) (*Bot, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: poll},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	b := &Bot{bot: tb, store: st, tracker: tr, clock: clk, log: log, ctx: context.Background()}
	b.register()
	return b, nil
}

func (b *Bot) register() {
	b.bot.Handle("/start", b.cmdStart)
	b.bot.Handle("/status", b.cmdStatus)
	b.bot.Handle("/chatid", b.cmdChatID)
	b.bot.Handle("/myid", b.cmdMyID)
	b.bot.Handle("/info", b.cmdInfo)
	b.bot.Handle(tele.OnVideo, func(c tele.Context) error { return b.onVideo(c, "video") })
	b.bot.Handle(tele.OnVideoNote, func(c tele.Context) error { return b.onVideo(c, "video_note") })
}

// Run starts long polling and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()
	b.log.Info("telegram bot started", logx.String("username", b.bot.Me.Username))
	b.bot.Start()
	return nil
}

// SendText delivers text to a chat addressed by its canonical string id.
func (b *Bot) SendText(ctx context.Context, recipientID, text, parseMode string) error {
	id, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad recipient %q: %w", recipientID, err)
	}
	var opts []any
	if parseMode != "" {
		opts = append(opts, &tele.SendOptions{ParseMode: parseMode})
	}
	_, err = b.bot.Send(tele.ChatID(id), text, opts...)
	return err
}

func (b *Bot) onVideo(c tele.Context, kind string) error {
	res := b.tracker.HandleVideo(b.ctx, tracker.Event{
		ChatID:     strconv.FormatInt(c.Chat().ID, 10),
		SenderID:   strconv.FormatInt(c.Sender().ID, 10),
		SenderName: senderName(c.Sender()),
	})
	if res.Counted {
		b.log.Info("video counted",
			logx.String("kind", kind),
			logx.Int64("chat", c.Chat().ID),
			logx.Int64("count", res.NewCount), logx.Int("limit", res.Limit))
	} else if res.Reason != "" {
		b.log.Debug("video ignored",
			logx.String("kind", kind),
			logx.Int64("chat", c.Chat().ID),
			logx.String("reason", res.Reason))
	}
	// The group chat is never replied to, counting stays silent.
	return nil
}

func (b *Bot) cmdStart(c tele.Context) error {
	return c.Send(
		"🎬 *RND SMART BOT* - Video Counter Bot\n\n"+
			"Men guruhlardan video va video note xabarlarni hisoblash uchun yaratilganman.\n\n"+
			"📋 *Mavjud buyruqlar:*\n"+
			"/chatid - Guruh yoki chat ID sini olish\n"+
			"/myid - O'z Telegram ID ingizni olish\n"+
			"/info - To'liq ma'lumotlar (Chat + User)\n"+
			"/status - Bugungi statistikani ko'rish\n\n"+
			"_Guruhga qo'shib, admin qiling va video yuborishni boshlang!_",
		tele.ModeMarkdown)
}

func (b *Bot) cmdStatus(c tele.Context) error {
	chatID := strconv.FormatInt(c.Chat().ID, 10)
	g, err := b.store.GetGroup(b.ctx, chatID)
	if err != nil || !g.IsActive {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			b.log.Warn("status: group read failed", logx.String("group", chatID), logx.Err(err))
		}
		return c.Send(
			"❌ *Hato:* Bu guruh ro'yxatdan o'tmagan.\n\n"+
				"🆔 *Chat ID:* `"+chatID+"`\n"+
				"💡 _Guruhni dashboard orqali qo'shing._",
			tele.ModeMarkdown)
	}

	date := b.clock.Today()
	count := b.tracker.TodayCount(b.ctx, chatID)
	limit := b.tracker.ResolveLimit(b.ctx, chatID, g.TrackedUserID)

	return c.Send(fmt.Sprintf(
		"📊 *Bugungi statistika:*\n\n"+
			"📅 Sana: `%s`\n"+
			"📹 Video soni: *%d/%d*\n"+
			"👤 Kuzatilayotgan User ID: `%s`",
		date, count, limit, g.TrackedUserID),
		tele.ModeMarkdown)
}

func (b *Bot) cmdChatID(c tele.Context) error {
	return c.Send(fmt.Sprintf(
		"📋 *Chat ma'lumotlari:*\n\n"+
			"🆔 *Chat ID:* `%d`\n"+
			"📝 *Nomi:* %s\n"+
			"📦 *Turi:* %s\n\n"+
			"_Chat ID ni nusxalash uchun ustiga bosing_",
		c.Chat().ID, chatTitle(c.Chat()), c.Chat().Type),
		tele.ModeMarkdown)
}

func (b *Bot) cmdMyID(c tele.Context) error {
	return c.Send(fmt.Sprintf(
		"👤 *Sizning ma'lumotlaringiz:*\n\n"+
			"🆔 *User ID:* `%d`\n"+
			"📝 *Ism:* %s\n"+
			"🔗 *Username:* %s\n\n"+
			"_User ID ni nusxalash uchun ustiga bosing_",
		c.Sender().ID, senderName(c.Sender()), atUsername(c.Sender())),
		tele.ModeMarkdown)
}

func (b *Bot) cmdInfo(c tele.Context) error {
	return c.Send(fmt.Sprintf(
		"📊 *To'liq ma'lumotlar:*\n\n"+
			"━━━ 💬 *Chat* ━━━\n"+
			"🆔 Chat ID: `%d`\n"+
			"📝 Nomi: %s\n"+
			"📦 Turi: %s\n\n"+
			"━━━ 👤 *Foydalanuvchi* ━━━\n"+
			"🆔 User ID: `%d`\n"+
			"📝 Ism: %s\n"+
			"🔗 Username: %s",
		c.Chat().ID, chatTitle(c.Chat()), c.Chat().Type,
		c.Sender().ID, senderName(c.Sender()), atUsername(c.Sender())),
		tele.ModeMarkdown)
}

func senderName(u *tele.User) string {
	if u == nil {
		return ""
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}

func atUsername(u *tele.User) string {
	if u == nil || u.Username == "" {
		return "Yo'q"
	}
	return "@" + u.Username
}

func chatTitle(ch *tele.Chat) string {
	switch {
	case ch.Title != "":
		return ch.Title
	case ch.FirstName != "":
		return ch.FirstName
	default:
		return "Shaxsiy chat"
	}
}
