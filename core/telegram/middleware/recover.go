package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/vldos/telegram-survey-bot/core/logger"
	"github.com/vldos/telegram-survey-bot/core/metrics"
	tghelpers "github.com/vldos/telegram-survey-bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Recover logs a handler panic with its stack and swallows it.
func Recover(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error(tghelpers.BuildContext(c), "tg", "handler.panic",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(fmt.Sprint(r), 256)),
				slog.String("stack", string(debug.Stack())),
			)
			metrics.Default().UpdateDropped("panic")
			err = nil
		}()
		return next(c)
	}
}
