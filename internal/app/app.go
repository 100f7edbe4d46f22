// Package app wires configuration, storage, the tracker, the scheduler,
// and both transports into one runnable process.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/clock"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/config"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/httpapi"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/notify"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/reminder"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/runtime/supervisor"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/store"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/tracker"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/transport/telegram"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/pkg/logx"
)

const (
	defaultHTTPAddr = ":3000"
	stopTimeout     = 10 * time.Second
)

// Run boots the bot and blocks until ctx is cancelled or a component
// fails fatally.
func Run(ctx context.Context, configPath string) error {
	mgr := config.NewManager(configPath, logx.NewConsole("info"))
	cfg, err := mgr.Load()
	if err != nil {
		return err
	}

	logSvc, log := logx.New(logxConfig(cfg.Logging))
	defer logSvc.Close()
	log.Info("starting rnd-smart-bot",
		logx.String("config", configPath),
		logx.String("storage", cfg.Storage.Driver),
		logx.Bool("enforce_limit", cfg.Tracker.EnforceLimit))

	clk := clock.New(cfg.Scheduler.UTCOffsetHours)

	st, err := store.Open(ctx, cfg.Storage, log.With(logx.String("component", "store")))
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := st.Close(cctx); err != nil {
			log.Warn("store close failed", logx.Err(err))
		}
	}()

	tr := tracker.New(cfg.Tracker, st, clk, log.With(logx.String("component", "tracker")))

	bot, err := telegram.New(cfg.Telegram, st, tr, clk, log.With(logx.String("component", "telegram")))
	if err != nil {
		return err
	}

	notifier := notify.New(cfg.Notify, bot, log.With(logx.String("component", "notify")))

	rem := reminder.New(reminder.Config{
		Enabled: cfg.Scheduler.Enabled,
		BaseURL: cfg.HTTP.BaseURL,
	}, st, clk, notifier, log.With(logx.String("component", "reminder")))

	httpCfg := cfg.HTTP
	if httpCfg.Addr == "" {
		httpCfg.Addr = defaultHTTPAddr
	}
	api := httpapi.New(httpCfg, st, clk, log.With(logx.String("component", "http")))

	sup := supervisor.New(ctx,
		supervisor.WithLogger(log),
		supervisor.WithCancelOnError(true))

	sup.Go("telegram", bot.Run)
	sup.Go("http", api.Serve)
	sup.Go("config-watch", mgr.Watch)

	if err := rem.Start(sup.Context()); err != nil {
		sup.Cancel()
		return err
	}

	sub := mgr.Subscribe(1)
	sup.Go0("config-apply", func(ctx context.Context) {
		defer mgr.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				logSvc.Apply(logxConfig(next.Logging))
				tr.Apply(next.Tracker)
				notifier.Apply(next.Notify)
				log.Info("configuration reloaded")
			}
		}
	})

	<-sup.Context().Done()
	log.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := rem.Stop(stopCtx); err != nil {
		log.Warn("scheduler stop failed", logx.Err(err))
	}
	if err := sup.Wait(stopCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Warn("shutdown wait", logx.Err(err))
	}
	return sup.Err()
}

func logxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
	}
}
