package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/vldos/telegram-survey-bot/core/logger"
	"github.com/vldos/telegram-survey-bot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var outbox atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes the send helpers through d. With nil they call the
// Bot API inline.
func SetDispatcher(d *sender.Dispatcher) {
	outbox.Store(d)
}

// deliver hands call to the dispatcher. A full or closed queue falls back to
// an inline call so the reply is not lost.
func deliver(c tele.Context, action string, call func() error) error {
	d := outbox.Load()
	if d == nil {
		return call()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, call)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.bypass",
			slog.String("status", "retry"),
			slog.String("op", action),
			slog.String("err", err.Error()),
		)
		return call()
	}
	return err
}

// SendText sends plain text to the chat of c.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	args := make([]any, 0, 1)
	if len(opts) > 0 && opts[0] != nil {
		args = append(args, opts[0])
	}
	return deliver(c, "send.text", func() error {
		return c.Send(text, args...)
	})
}

// SendMD sends Markdown text with an optional keyboard.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return deliver(c, "send.markdown", func() error {
		return c.Send(text, opts)
	})
}

// EditOrSendText replaces the message a button belongs to, or sends a new
// one when the update is not a callback.
func EditOrSendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ReplyMarkup: markup}
	return deliver(c, "edit.text", func() error {
		return c.EditOrSend(text, opts)
	})
}
