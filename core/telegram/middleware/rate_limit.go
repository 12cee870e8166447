package middleware

import (
	"log/slog"
	"sync"
	"time"

	coreconfig "github.com/vldos/telegram-survey-bot/core/config"
	"github.com/vldos/telegram-survey-bot/core/logger"
	"github.com/vldos/telegram-survey-bot/core/metrics"
	tghelpers "github.com/vldos/telegram-survey-bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configure RateLimit.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude holds update kinds (see UpdateKind) that are never limited.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	Now       func() time.Time
}

// UpdateKind names the update type the way rate_limit.exclude_updates does.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	case upd.Message != nil:
		return coreconfig.UpdateMessage
	case upd.Query != nil:
		return coreconfig.UpdateInlineQuery
	}
	return "other"
}

// RateLimit lets at most one update per user through every Interval. A
// limited update is answered by OnLimited and otherwise dropped.
func RateLimit(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Interval <= 0 {
		return func(next tele.HandlerFunc) tele.HandlerFunc { return next }
	}
	l := newLimiter(opts.Interval, opts.Now)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			u := c.Sender()
			if u == nil {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}
			if l.allow(u.ID) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "update.rate_limited",
				slog.String("status", "rate_limited"),
				slog.Duration("interval", opts.Interval),
			)
			metrics.Default().UpdateDropped("rate_limited")
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

// sweepEvery bounds how often stale users are pruned from the limiter.
const sweepEvery = time.Minute

type limiter struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	seen     map[int64]time.Time
	sweepAt  time.Time
}

func newLimiter(interval time.Duration, now func() time.Time) *limiter {
	if now == nil {
		now = time.Now
	}
	return &limiter{interval: interval, now: now, seen: make(map[int64]time.Time)}
}

func (l *limiter) allow(userID int64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.After(l.sweepAt) {
		for id, ts := range l.seen {
			if now.Sub(ts) >= l.interval {
				delete(l.seen, id)
			}
		}
		l.sweepAt = now.Add(sweepEvery)
	}
	if last, ok := l.seen[userID]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.seen[userID] = now
	return true
}
