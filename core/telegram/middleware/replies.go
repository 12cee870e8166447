package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const repliesKey = "replies"

// Replies summarises what a handler sent back.
type Replies struct {
	Messages int
	Keyboard bool
}

type replyCount struct {
	msgs atomic.Int64
	kb   atomic.Bool
}

// replyCounter counts successful sends and edits. Sends may run on sender
// workers, hence the atomics.
type replyCounter struct {
	tele.Context
	n *replyCount
}

func (rc replyCounter) note(err error, opts []any) error {
	if err != nil {
		return err
	}
	rc.n.msgs.Add(1)
	if hasMarkup(opts) {
		rc.n.kb.Store(true)
	}
	return nil
}

func hasMarkup(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		}
	}
	return false
}

func (rc replyCounter) Send(what any, opts ...any) error {
	return rc.note(rc.Context.Send(what, opts...), opts)
}

func (rc replyCounter) Reply(what any, opts ...any) error {
	return rc.note(rc.Context.Reply(what, opts...), opts)
}

func (rc replyCounter) Edit(what any, opts ...any) error {
	return rc.note(rc.Context.Edit(what, opts...), opts)
}

func (rc replyCounter) EditOrSend(what any, opts ...any) error {
	return rc.note(rc.Context.EditOrSend(what, opts...), opts)
}

func (rc replyCounter) EditOrReply(what any, opts ...any) error {
	return rc.note(rc.Context.EditOrReply(what, opts...), opts)
}

// CountReplies lets RepliesFrom report what the downstream handler sent.
func CountReplies(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &replyCount{}
		c.Set(repliesKey, n)
		return next(replyCounter{Context: c, n: n})
	}
}

// RepliesFrom returns the counters installed by CountReplies, or zero.
func RepliesFrom(c tele.Context) Replies {
	n, ok := c.Get(repliesKey).(*replyCount)
	if !ok || n == nil {
		return Replies{}
	}
	return Replies{Messages: int(n.msgs.Load()), Keyboard: n.kb.Load()}
}
