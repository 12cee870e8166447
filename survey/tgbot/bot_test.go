package tgbot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/vldos/telegram-survey-bot/core/telegram"
	"github.com/vldos/telegram-survey-bot/survey/answers"
	"github.com/vldos/telegram-survey-bot/survey/catalog"
	"github.com/vldos/telegram-survey-bot/survey/responses"
	"github.com/vldos/telegram-survey-bot/survey/service"
	"github.com/vldos/telegram-survey-bot/survey/session"

	tele "gopkg.in/telebot.v4"
)

type reply struct {
	text   string
	markup *tele.ReplyMarkup
	edit   bool
}

type fakeContext struct {
	tele.Context
	user      *tele.User
	text      string
	cb        *tele.Callback
	store     map[string]any
	replies    *[]reply
	responded  *[]string
	respondErr error
}

func (f *fakeContext) Update() tele.Update {
	if f.cb != nil {
		return tele.Update{ID: 1, Callback: f.cb}
	}
	return tele.Update{ID: 1, Message: &tele.Message{Text: f.text}}
}
func (f *fakeContext) Sender() *tele.User       { return f.user }
func (f *fakeContext) Chat() *tele.Chat         { return &tele.Chat{ID: f.user.ID, Type: tele.ChatPrivate} }
func (f *fakeContext) Get(key string) any       { return f.store[key] }
func (f *fakeContext) Set(key string, v any)    { f.store[key] = v }
func (f *fakeContext) Text() string             { return f.text }
func (f *fakeContext) Callback() *tele.Callback { return f.cb }

func markupOf(opts []any) *tele.ReplyMarkup {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil {
				return v.ReplyMarkup
			}
		case *tele.ReplyMarkup:
			return v
		}
	}
	return nil
}

func (f *fakeContext) Send(what any, opts ...any) error {
	*f.replies = append(*f.replies, reply{text: what.(string), markup: markupOf(opts)})
	return nil
}

func (f *fakeContext) EditOrSend(what any, opts ...any) error {
	*f.replies = append(*f.replies, reply{text: what.(string), markup: markupOf(opts), edit: true})
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	if f.respondErr != nil {
		return f.respondErr
	}
	for _, r := range resp {
		*f.responded = append(*f.responded, r.Text)
	}
	return nil
}

type fakeStore struct {
	saved   []answers.Answers
	names   []string
	fail    bool
	readErr error
	records []responses.Record
}

func (s *fakeStore) Save(_ context.Context, userID int64, name string, as answers.Answers) (int64, error) {
	if s.fail {
		return 0, &responses.PersistError{UserID: userID, Err: errors.New("connection refused")}
	}
	s.saved = append(s.saved, as.Clone())
	s.names = append(s.names, name)
	return int64(len(s.saved)), nil
}

func (s *fakeStore) LoadAll(context.Context) ([]responses.Record, error) {
	if s.readErr != nil {
		return nil, &responses.ReadError{Op: "load_all", Err: s.readErr}
	}
	return s.records, nil
}

func (s *fakeStore) Recent(_ context.Context, limit int) ([]responses.Record, error) {
	if s.readErr != nil {
		return nil, &responses.ReadError{Op: "recent", Err: s.readErr}
	}
	if len(s.records) < limit {
		limit = len(s.records)
	}
	return s.records[:limit], nil
}

type harness struct {
	bot       *Bot
	cat       *catalog.Catalog
	store     *fakeStore
	replies   []reply
	responded []string
	user      *tele.User
}

func newHarness(t *testing.T, adminID int64) *harness {
	t.Helper()
	cat, err := catalog.New(
		[]catalog.Question{
			{ID: "q1", Prompt: "Where?", Kind: catalog.SingleChoice, Options: []catalog.Option{{Text: "In travels"}, {Text: "In my city"}}},
			{ID: "q2", Prompt: "How?", Kind: catalog.MultipleChoice, Options: []catalog.Option{{Text: "Google"}, {Text: "Friends"}, {Text: "Other", Other: true}}},
		},
		[]catalog.Question{{ID: "age", Prompt: "Age:", Kind: catalog.FreeText}},
	)
	require.NoError(t, err)
	store := &fakeStore{}
	svc := service.New(cat, session.NewMemoryStore(), store, store, service.Options{SaveTimeout: time.Second})
	return &harness{
		bot:   New(svc, Options{AdminID: adminID}),
		cat:   cat,
		store: store,
		user:  &tele.User{ID: 7, FirstName: "Ann", Username: "ann_k"},
	}
}

func (h *harness) message(text string) *fakeContext {
	return &fakeContext{user: h.user, text: text, store: map[string]any{}, replies: &h.replies, responded: &h.responded}
}

func (h *harness) callback(unique, data string) *fakeContext {
	c := h.message("")
	c.cb = &tele.Callback{Unique: unique, Data: data}
	return c
}

func (h *harness) last() reply {
	if len(h.replies) == 0 {
		return reply{}
	}
	return h.replies[len(h.replies)-1]
}

func buttons(m *tele.ReplyMarkup) []tele.InlineButton {
	if m == nil {
		return nil
	}
	var out []tele.InlineButton
	for _, row := range m.InlineKeyboard {
		out = append(out, row...)
	}
	return out
}

func TestRegisterWiresCommandsAndCallbacks(t *testing.T) {
	h := newHarness(t, 0)
	reg := tg.NewRegistry()
	require.NoError(t, h.bot.Register(reg))

	_, ok := reg.Commands()["/start"]
	assert.True(t, ok)
	assert.True(t, reg.Commands()["/stats"].AdminOnly)
	assert.Equal(t, []string{cbFinish, cbMulti, cbSingle, cbSkip, cbStart}, reg.CallbackKeys())

	assert.Error(t, h.bot.Register(reg))
}

func TestStartShowsWelcome(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.bot.onStart(h.message("/start")))

	r := h.last()
	assert.Contains(t, r.text, "*Ann*")
	bs := buttons(r.markup)
	require.Len(t, bs, 1)
	assert.Equal(t, cbStart, bs[0].Unique)
	assert.False(t, h.bot.Active(h.user.ID))
}

func TestFullSurveyWithOtherOverride(t *testing.T) {
	h := newHarness(t, 0)

	require.NoError(t, h.bot.onStartSurvey(h.callback(cbStart, "")))
	r := h.last()
	assert.True(t, r.edit)
	assert.Contains(t, r.text, "Where?")
	bs := buttons(r.markup)
	require.Len(t, bs, 2)
	assert.Equal(t, "q1:0", bs[0].Data)
	assert.True(t, h.bot.Active(h.user.ID))

	require.NoError(t, h.bot.onSingle(h.callback(cbSingle, "q1:0")))
	r = h.last()
	assert.Contains(t, r.text, "How?")
	bs = buttons(r.markup)
	require.Len(t, bs, 4)
	assert.Equal(t, "☐ Google", bs[0].Text)
	assert.Equal(t, cbFinish, bs[3].Unique)
	assert.Equal(t, "q2", bs[3].Data)

	require.NoError(t, h.bot.onMulti(h.callback(cbMulti, "q2:0")))
	assert.Equal(t, "✅ Google", buttons(h.last().markup)[0].Text)

	require.NoError(t, h.bot.onMulti(h.callback(cbMulti, "q2:2")))
	r = h.last()
	assert.Contains(t, r.text, h.cat.Messages.OtherPrompt)
	bs = buttons(r.markup)
	require.Len(t, bs, 1)
	assert.Equal(t, cbSkip, bs[0].Unique)
	assert.Equal(t, h.cat.Messages.BackButton, bs[0].Text)

	require.NoError(t, h.bot.HandleText(h.message("custom thing")))
	r = h.last()
	assert.False(t, r.edit)
	assert.Contains(t, r.text, "Age:")
	assert.Equal(t, cbSkip, buttons(r.markup)[0].Unique)

	require.NoError(t, h.bot.HandleText(h.message("31")))
	assert.Equal(t, h.cat.Messages.Completed, h.last().text)
	assert.False(t, h.bot.Active(h.user.ID))

	require.Len(t, h.store.saved, 1)
	got := h.store.saved[0]
	assert.Equal(t, "In travels", got["q1"].Value())
	assert.Equal(t, []string{"Google", "Other: custom thing"}, got["q2"].Values())
	assert.Equal(t, "31", got["age"].Value())
	assert.Equal(t, "ann_k", h.store.names[0])
}

func TestBackToOptionsRestoresQuestion(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.bot.onStartSurvey(h.callback(cbStart, "")))
	require.NoError(t, h.bot.onSingle(h.callback(cbSingle, "q1:1")))
	require.NoError(t, h.bot.onMulti(h.callback(cbMulti, "q2:2")))

	require.NoError(t, h.bot.onSkip(h.callback(cbSkip, "")))
	r := h.last()
	assert.Contains(t, r.text, "How?")
	assert.Equal(t, "☐ Other", buttons(r.markup)[2].Text)
}

func TestSkipLabelTextSkipsFreeText(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.bot.onStartSurvey(h.callback(cbStart, "")))
	require.NoError(t, h.bot.onSingle(h.callback(cbSingle, "q1:0")))
	require.NoError(t, h.bot.onFinish(h.callback(cbFinish, "q2")))

	require.NoError(t, h.bot.HandleText(h.message(h.cat.Messages.SkipButton)))
	assert.Equal(t, h.cat.Messages.Completed, h.last().text)
	require.Len(t, h.store.saved, 1)
	_, answered := h.store.saved[0]["age"]
	assert.False(t, answered)
	assert.Equal(t, 0, h.store.saved[0]["q2"].Len())
}

func TestTextOnChoiceQuestionAsksForButtons(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.bot.onStartSurvey(h.callback(cbStart, "")))
	before := len(h.replies)

	require.NoError(t, h.bot.HandleText(h.message("somewhere")))
	require.Len(t, h.replies, before+2)
	assert.Equal(t, h.cat.Messages.UseButtons, h.replies[before].text)
	assert.Contains(t, h.replies[before+1].text, "Where?")
}

func TestStaleButtonRerendersCurrentQuestion(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.bot.onStartSurvey(h.callback(cbStart, "")))
	require.NoError(t, h.bot.onSingle(h.callback(cbSingle, "q1:9")))
	assert.Contains(t, h.last().text, "Where?")

	require.NoError(t, h.bot.onSingle(h.callback(cbSingle, "garbage")))
	assert.Contains(t, h.last().text, "Where?")
}

func TestEventsWithoutSessionPromptStart(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.bot.onSingle(h.callback(cbSingle, "q1:0")))
	assert.Equal(t, h.cat.Messages.NoSession, h.last().text)

	require.NoError(t, h.bot.HandleText(h.message("hello")))
	assert.Equal(t, h.cat.Messages.NoSession, h.last().text)

	require.NoError(t, h.bot.UnknownText()(h.message("hi")))
	assert.Equal(t, h.cat.Messages.NoSession, h.last().text)
}

func TestPersistFailureIsRenderedAndReturned(t *testing.T) {
	h := newHarness(t, 0)
	h.store.fail = true
	require.NoError(t, h.bot.onStartSurvey(h.callback(cbStart, "")))
	require.NoError(t, h.bot.onSingle(h.callback(cbSingle, "q1:0")))
	require.NoError(t, h.bot.onFinish(h.callback(cbFinish, "q2")))

	err := h.bot.HandleText(h.message("40"))
	var perr *responses.PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "PERSIST_FAILED", perr.Code())
	assert.Equal(t, h.cat.Messages.CompletedFailed, h.last().text)
	assert.False(t, h.bot.Active(h.user.ID))
}

func TestStats(t *testing.T) {
	h := newHarness(t, 99)

	require.NoError(t, h.bot.onStats(h.message("/stats")))
	assert.Equal(t, h.cat.Messages.Unsupported, h.last().text)

	h.user.ID = 99
	require.NoError(t, h.bot.onStats(h.message("/stats")))
	assert.Equal(t, h.cat.Messages.StatsEmpty, h.last().text)

	h.store.readErr = errors.New("timeout")
	require.NoError(t, h.bot.onStats(h.message("/stats")))
	assert.Equal(t, h.cat.Messages.StatsEmpty, h.last().text)

	h.store.readErr = nil
	created := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)
	h.store.records = []responses.Record{
		{ID: 1, UserID: 1, CreatedAt: created},
	}
	h.store.records[0].Username.String = "bob"
	h.store.records[0].Username.Valid = true
	require.NoError(t, h.bot.onStats(h.message("/stats")))
	text := h.last().text
	assert.True(t, strings.HasPrefix(text, h.cat.Messages.StatsTitle))
	assert.Contains(t, text, h.cat.Messages.StatsTotal+": 1")
	assert.Contains(t, text, "2025-07-01: 1")
	assert.Contains(t, text, "1. bob - 2025-07-01 09:30")
}

func TestUnknownCallbackResponds(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.bot.UnknownCallback()(h.callback("nope", "")))
	assert.Equal(t, []string{h.cat.Messages.Unsupported}, h.responded)

	c := h.callback("nope", "")
	c.respondErr = errors.New("query is too old")
	assert.EqualError(t, h.bot.UnknownCallback()(c), "query is too old")
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "ann_k", displayName(&tele.User{Username: "ann_k", FirstName: "Ann"}))
	assert.Equal(t, "Ann Lee", displayName(&tele.User{FirstName: "Ann", LastName: "Lee"}))
	assert.Equal(t, "", displayName(nil))
}
