package router

import (
	tg "github.com/vldos/telegram-survey-bot/core/telegram"
	"github.com/vldos/telegram-survey-bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives free text while a user is inside a multi-step flow.
type Conversation interface {
	Active(userID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions configure TextRoutes.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
	// Admin guards admin-only commands reached through an alias.
	Admin middleware.AdminOptions
}

// TextRoutes routes text and documents. An active conversation wins, then
// command aliases, then the registry fallback and finally UnknownText.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	active := func(c tele.Context) bool {
		return conv != nil && c.Sender() != nil && conv.Active(c.Sender().ID)
	}

	onText := func(c tele.Context) error {
		if active(c) {
			return run(c, "survey_text", conv.HandleText)
		}
		if reg != nil {
			if name, cmd, ok := reg.LookupCommand(c.Text()); ok {
				h := cmd.Handler
				if cmd.AdminOnly {
					h = middleware.AdminOnly(opts.Admin)(h)
				}
				return run(c, handlerName(name), h)
			}
			if fb := reg.TextFallback(); fb != nil {
				return run(c, "fallback", fb)
			}
		}
		return run(c, "unknown_text", opts.UnknownText)
	}

	onDocument := func(c tele.Context) error {
		if active(c) {
			return run(c, "survey_document", conv.HandleText)
		}
		return run(c, "unexpected_document", opts.UnknownDocument)
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: middleware.Trace(onText)},
		{Endpoint: tele.OnDocument, Handler: middleware.Trace(onDocument)},
	}
}
