package helpers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vldos/telegram-survey-bot/core/logger"
	"github.com/vldos/telegram-survey-bot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	store  map[string]any
	sent   []string
	edited []string
	fail   error
}

func newFakeContext() *fakeContext { return &fakeContext{store: map[string]any{}} }

func (f *fakeContext) Update() tele.Update   { return tele.Update{ID: 11} }
func (f *fakeContext) Sender() *tele.User    { return &tele.User{ID: 5} }
func (f *fakeContext) Chat() *tele.Chat      { return &tele.Chat{ID: 6} }
func (f *fakeContext) Get(key string) any    { return f.store[key] }
func (f *fakeContext) Set(key string, v any) { f.store[key] = v }
func (f *fakeContext) Send(what any, _ ...any) error {
	f.sent = append(f.sent, what.(string))
	return f.fail
}
func (f *fakeContext) EditOrSend(what any, _ ...any) error {
	f.edited = append(f.edited, what.(string))
	return f.fail
}

func TestBuildContextCarriesUpdateMeta(t *testing.T) {
	fc := newFakeContext()
	ctx := BuildContext(fc)
	assert.Equal(t, int64(5), logger.UserIDFrom(ctx))
	assert.Equal(t, int64(6), logger.ChatIDFrom(ctx))
	assert.NotEmpty(t, logger.RIDFrom(ctx))

	again := WithHandler(fc, "start")
	assert.Equal(t, "start", logger.HandlerFrom(again))
	cached, ok := ContextFrom(fc)
	require.True(t, ok)
	assert.Equal(t, again, cached)
}

func TestSendSynchronousWithoutDispatcher(t *testing.T) {
	SetDispatcher(nil)
	fc := newFakeContext()
	require.NoError(t, SendText(fc, "hello"))
	require.NoError(t, EditOrSendText(fc, "edited", nil))
	assert.Equal(t, []string{"hello"}, fc.sent)
	assert.Equal(t, []string{"edited"}, fc.edited)

	fc.fail = errors.New("blocked")
	assert.Error(t, SendMD(fc, "*x*"))
}

func TestSendThroughDispatcher(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	SetDispatcher(d)
	defer SetDispatcher(nil)

	fc := newFakeContext()
	require.NoError(t, SendText(fc, "one"))
	require.NoError(t, SendText(fc, "two"))
	d.Close()
	assert.Equal(t, []string{"one", "two"}, fc.sent)
}
