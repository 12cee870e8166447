package logger

import "context"

type metaKey struct{}

// meta is the request metadata carried through a context.
type meta struct {
	rid      string
	handler  string
	updateID int
	userID   int64
	chatID   int64
}

func metaFrom(ctx context.Context) *meta {
	if ctx == nil {
		return nil
	}
	m, _ := ctx.Value(metaKey{}).(*meta)
	return m
}

// withMeta stores a modified copy of the current metadata.
func withMeta(ctx context.Context, edit func(*meta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	next := meta{}
	if cur := metaFrom(ctx); cur != nil {
		next = *cur
	}
	edit(&next)
	return context.WithValue(ctx, metaKey{}, &next)
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *meta) { m.rid = rid })
}

// WithUpdateMeta attaches the Telegram update, user and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *meta) {
		m.updateID, m.userID, m.chatID = updateID, userID, chatID
	})
}

// WithHandler attaches the handler name; an empty name leaves ctx unchanged.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.handler = handler })
}

// RIDFrom returns the request correlation id.
func RIDFrom(ctx context.Context) string {
	if m := metaFrom(ctx); m != nil {
		return m.rid
	}
	return ""
}

// HandlerFrom returns the handler name.
func HandlerFrom(ctx context.Context) string {
	if m := metaFrom(ctx); m != nil {
		return m.handler
	}
	return ""
}

// UpdateIDFrom returns the Telegram update id.
func UpdateIDFrom(ctx context.Context) int {
	if m := metaFrom(ctx); m != nil {
		return m.updateID
	}
	return 0
}

// UserIDFrom returns the Telegram user id.
func UserIDFrom(ctx context.Context) int64 {
	if m := metaFrom(ctx); m != nil {
		return m.userID
	}
	return 0
}

// ChatIDFrom returns the chat id.
func ChatIDFrom(ctx context.Context) int64 {
	if m := metaFrom(ctx); m != nil {
		return m.chatID
	}
	return 0
}
