// Package telegram runs a telebot bot from core configuration: it owns the
// registry, the update poller, the HTTP client and the outbound dispatcher.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/vldos/telegram-survey-bot/core/config"
	"github.com/vldos/telegram-survey-bot/core/logger"
	tghelpers "github.com/vldos/telegram-survey-bot/core/telegram/helpers"
	tgsender "github.com/vldos/telegram-survey-bot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint such as "/start" or
// tele.OnText.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions describe one bot run.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry
	Sender   tgsender.Options

	Middlewares []Middleware
	Routes      []Route

	// KeepWebhook leaves a registered webhook in place in long polling mode.
	KeepWebhook bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks get to see.
type Runtime struct {
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram serves updates until ctx is cancelled. Shutdown order is:
// stop polling, drain queued replies, then OnStop.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config")
	}
	cfg := opts.Config
	rt := Runtime{Registry: opts.Registry}
	if rt.Registry == nil {
		rt.Registry = NewRegistry()
	}

	started := time.Now()
	bot, err := tele.NewBot(settings(ctx, cfg))
	if err != nil {
		return fmt.Errorf("telegram: create bot: %w", err)
	}
	logMode(ctx, cfg, time.Since(started))
	if cfg.Telegram.RunMode != coreconfig.RunModeWebhook && !opts.KeepWebhook {
		dropWebhook(ctx, bot)
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	PublishMenu(bot, rt.Registry)

	rt.Dispatcher = tgsender.NewDispatcher(opts.Sender)
	tghelpers.SetDispatcher(rt.Dispatcher)
	drain := func() {
		rt.Dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			drain()
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
	case <-done:
	}
	drain()

	if opts.OnStop != nil {
		return opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	return nil
}

func settings(ctx context.Context, cfg *coreconfig.Config) tele.Settings {
	return tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: NewPoller(cfg.Telegram, cfg.Webhook),
		// Long polling requests stay open for the poll timeout.
		Client: NewHTTPClient(ClientOptions{Timeout: cfg.Telegram.PollTimeout() + 20*time.Second}),
		OnError: func(err error, c tele.Context) {
			errCtx := ctx
			if c != nil {
				errCtx = tghelpers.BuildContext(c)
			}
			logger.Error(errCtx, "tg", "update.error",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(tgsender.Redact(err), 256)),
			)
		},
	}
}

func logMode(ctx context.Context, cfg *coreconfig.Config, took time.Duration) {
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("mode", cfg.Telegram.RunMode),
		slog.Duration("duration", took),
	}
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		attrs = append(attrs,
			slog.String("listen", fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port)),
			slog.String("public_url", cfg.Webhook.URL),
		)
	} else {
		attrs = append(attrs, slog.Duration("poll_timeout", cfg.Telegram.PollTimeout()))
	}
	logger.Info(ctx, "tg", "bot.mode", attrs...)
}

// webhookRemover is the part of *tele.Bot used before long polling starts.
type webhookRemover interface {
	RemoveWebhook(dropPending ...bool) error
}

// dropWebhook clears a webhook left by an earlier deployment; Telegram
// refuses getUpdates while one is set. Pending updates are kept.
func dropWebhook(ctx context.Context, bot webhookRemover) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.Warn(ctx, "tg", "webhook.remove",
			slog.String("status", "fail"),
			slog.String("err", tgsender.Redact(err)),
		)
		return
	}
	logger.Debug(ctx, "tg", "webhook.remove", slog.String("status", "ok"))
}
