package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vldos/telegram-survey-bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

func chatCtx(chatID int64) context.Context {
	return logger.WithUpdateMeta(context.Background(), 1, chatID, chatID)
}

func TestDispatcherKeepsPerChatOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 1024})

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 50; i++ {
		for _, chat := range []int64{101, 202, -303} {
			err := d.Enqueue(chatCtx(chat), "send.text", func() error {
				mu.Lock()
				got[chat] = append(got[chat], i)
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
		}
	}
	d.Close()

	for _, chat := range []int64{101, 202, -303} {
		require.Len(t, got[chat], 50)
		for i, v := range got[chat] {
			assert.Equal(t, i, v, "chat %d out of order", chat)
		}
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	err := d.Enqueue(context.Background(), "send.text", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
	d.Close()
}

func TestDispatcherReportsFullQueue(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(chatCtx(1), "a", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(chatCtx(1), "b", func() error { return nil }))
	err := d.Enqueue(chatCtx(1), "c", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)
	close(release)
	d.Close()
}

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond, MaxDuration: time.Second})
	calls := 0
	require.NoError(t, d.Enqueue(chatCtx(7), "send.text", func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	}))
	d.Close()
	assert.Equal(t, 3, calls)
	assert.Zero(t, d.Failed())
}

func TestDispatcherCountsFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond, MaxDuration: time.Second})
	calls := 0
	require.NoError(t, d.Enqueue(chatCtx(7), "send.text", func() error {
		calls++
		return errors.New("chat not found")
	}))
	d.Close()
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), d.Failed())
}

func TestErrorHelpers(t *testing.T) {
	msg := Redact(errors.New(`Post "https://api.telegram.org/bot123:ABC-def/sendMessage": timeout`))
	assert.NotContains(t, msg, "123:ABC-def")
	assert.Contains(t, msg, "bot<redacted>")

	flood := tele.FloodError{RetryAfter: 3}
	assert.True(t, Retryable(flood))
	assert.Equal(t, 3*time.Second, retryAfter(flood))
	assert.Equal(t, "FLOOD", Kind(flood))

	assert.False(t, Retryable(context.Canceled))
	assert.Equal(t, "TIMEOUT", Kind(context.DeadlineExceeded))
	assert.Equal(t, "DIAL", Kind(&net.OpError{Op: "dial", Err: errors.New("x")}))
	assert.Equal(t, "HTTP_4XX", Kind(&tele.Error{Code: 403, Description: "Forbidden"}))
	assert.Equal(t, "UNKNOWN", Kind(errors.New("x")))
	assert.Empty(t, Kind(nil))
}
