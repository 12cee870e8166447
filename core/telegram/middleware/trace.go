// Package middleware holds the telebot middlewares shared by the bot: request
// tracing, reply counting, rate limiting, admin checks and panic recovery.
package middleware

import (
	"log/slog"
	"unicode/utf8"

	"github.com/vldos/telegram-survey-bot/core/logger"
	"github.com/vldos/telegram-survey-bot/core/telegram/callbacks"
	tghelpers "github.com/vldos/telegram-survey-bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const tracedKey = "traced"

// Trace attaches the request context to c and logs a sampled receipt line.
// It runs once per update even when both the bot and a route install it.
func Trace(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if done, _ := c.Get(tracedKey).(bool); done {
			return next(c)
		}
		c.Set(tracedKey, true)
		ctx := tghelpers.BuildContext(c)
		if logger.ShouldSampleDebug() {
			logger.Debug(ctx, "tg", "update.received", receipt(c)...)
		}
		return next(c)
	}
}

// receipt describes an update without copying answer text into the log.
func receipt(c tele.Context) []slog.Attr {
	upd := c.Update()
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("type", UpdateKind(upd)),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if u := c.Sender(); u != nil {
		if u.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
		}
		if u.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", u.LanguageCode))
		}
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.Parse(upd.Callback)
		attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 64)))
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 128)))
		}
	case upd.Message != nil:
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.Int("text_len", utf8.RuneCountInString(t)))
		}
	}
	return attrs
}
