// Package router turns the registry into telebot routes: commands, inline
// callbacks and free text. Every handled update ends with one summary line
// and a handler metric.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vldos/telegram-survey-bot/core/logger"
	"github.com/vldos/telegram-survey-bot/core/metrics"
	tghelpers "github.com/vldos/telegram-survey-bot/core/telegram/helpers"
	"github.com/vldos/telegram-survey-bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// run calls fn under the handler name. A nil fn is recorded as skipped.
func run(c tele.Context, name string, fn tele.HandlerFunc, extra ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)
	status := "skip"
	var err error
	if fn != nil {
		err = fn(c)
		status = "ok"
		if err != nil {
			status = "fail"
		}
	}
	summarize(ctx, c, name, status, time.Since(start), err, extra)
	return err
}

func summarize(ctx context.Context, c tele.Context, name, status string, took time.Duration, err error, extra []slog.Attr) {
	metrics.Default().ObserveHandler(name, status, took)

	replies := middleware.RepliesFrom(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.Int("messages", replies.Messages),
		slog.Bool("kb", replies.Keyboard),
		slog.Duration("duration", took),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("outcome", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	} else {
		attrs = append(attrs, slog.String("outcome", "ok"))
	}
	attrs = append(attrs, extra...)

	if err != nil {
		logger.Warn(ctx, "tg", "handler.done", attrs...)
		return
	}
	logger.Info(ctx, "tg", "handler.done", attrs...)
}

// handlerName turns a command or callback key into a metric label.
func handlerName(s string) string {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "/"))
	if s == "" {
		return "unknown"
	}
	return strings.ReplaceAll(s, " ", "_")
}

// errorCode prefers an error's own Code() and falls back to its type name.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(name)
}
