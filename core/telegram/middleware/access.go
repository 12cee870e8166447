package middleware

import (
	"log/slog"

	"github.com/vldos/telegram-survey-bot/core/logger"
	tghelpers "github.com/vldos/telegram-survey-bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions identify the bot admin. A zero AdminID lets everyone in.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// IsAdmin reports whether the sender of c passes the check.
func (o AdminOptions) IsAdmin(c tele.Context) bool {
	if o.AdminID == 0 {
		return true
	}
	u := c.Sender()
	return u != nil && u.ID == o.AdminID
}

// AdminOnly guards next with the admin check; rejected updates go to
// OnReject when set.
func AdminOnly(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.IsAdmin(c) {
				return next(c)
			}
			logger.Info(tghelpers.BuildContext(c), "tg", "admin.reject", slog.String("status", "skip"))
			if opts.OnReject == nil {
				return nil
			}
			return opts.OnReject(c)
		}
	}
}
