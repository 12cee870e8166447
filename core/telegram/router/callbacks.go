package router

import (
	"fmt"
	"log/slog"

	tg "github.com/vldos/telegram-survey-bot/core/telegram"
	"github.com/vldos/telegram-survey-bot/core/telegram/callbacks"
	"github.com/vldos/telegram-survey-bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions configure CallbackRoute.
type CallbackOptions struct {
	// NotFound is used when the registry has no handler for unknown keys.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every inline button press by its unique key.
// Handlers own the callback answer; unknown keys go to the not-found handler.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handle := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key, _ := callbacks.Parse(c.Callback())
		name := "callback." + handlerName(key)
		if h, ok := reg.Callback(key); ok {
			return run(c, name, func(c tele.Context) error {
				err := h(c)
				if rerr := c.Respond(); rerr != nil && err == nil {
					err = fmt.Errorf("answer callback: %w", rerr)
				}
				return err
			}, slog.String("cb_key", key))
		}
		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		return run(c, name, fallback,
			slog.String("cb_key", key),
			slog.String("reason", "not_found"),
		)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: middleware.Trace(handle)}
}
