package router

import (
	"log/slog"
	"sort"

	"github.com/vldos/telegram-survey-bot/core/logger"
	tg "github.com/vldos/telegram-survey-bot/core/telegram"
	"github.com/vldos/telegram-survey-bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configure CommandRoutes.
type CommandRouteOptions struct {
	AdminID int64
	// OnAdminReject answers a non-admin calling an admin-only command.
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command, in name order.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	admin := middleware.AdminOnly(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	routes := make([]tg.Route, 0, len(names))
	for _, name := range names {
		h := cmds[name].Handler
		if cmds[name].AdminOnly {
			h = admin(h)
		}
		label := handlerName(name)
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler: middleware.Trace(func(c tele.Context) error {
				return run(c, label, h)
			}),
		})
	}

	logger.Info(logger.Background(), "tg.wire", "routes.commands",
		slog.String("status", "ok"),
		slog.Int("total", len(routes)),
		slog.Int("callbacks", len(reg.CallbackKeys())),
	)
	return routes
}
