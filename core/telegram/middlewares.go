package telegram

import (
	coreconfig "github.com/vldos/telegram-survey-bot/core/config"
	"github.com/vldos/telegram-survey-bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares returns the global chain: panic recovery, request
// tracing, the per-user rate limit when configured and reply counting.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	chain := []Middleware{
		{Name: "recover", Use: middleware.Recover},
		{Name: "trace", Use: middleware.Trace},
	}
	if cfg != nil && cfg.RateLimit.Interval() > 0 {
		chain = append(chain, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimit(middleware.RateLimitOptions{
				Interval:  cfg.RateLimit.Interval(),
				Exclude:   cfg.RateLimit.Excluded(),
				OnLimited: onLimited,
			}),
		})
	}
	return append(chain, Middleware{Name: "replies", Use: middleware.CountReplies})
}
