package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vldos/telegram-survey-bot/core/metrics"
	"github.com/vldos/telegram-survey-bot/survey/answers"
	"github.com/vldos/telegram-survey-bot/survey/catalog"
	"github.com/vldos/telegram-survey-bot/survey/flow"
	"github.com/vldos/telegram-survey-bot/survey/responses"
	"github.com/vldos/telegram-survey-bot/survey/session"
)

type saveCall struct {
	userID  int64
	name    string
	answers answers.Answers
}

type fakeStore struct {
	mu       sync.Mutex
	calls    []saveCall
	failures int
	records  []responses.Record
	readErr  error
}

func (f *fakeStore) Save(_ context.Context, userID int64, name string, as answers.Answers) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, saveCall{userID: userID, name: name, answers: as.Clone()})
	if f.failures > 0 {
		f.failures--
		return 0, &responses.PersistError{UserID: userID, Err: errors.New("connection reset")}
	}
	id := int64(len(f.records) + 1)
	f.records = append(f.records, responses.Record{ID: id, UserID: userID, CreatedAt: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC), Answers: as.Clone()})
	return id, nil
}

func (f *fakeStore) LoadAll(context.Context) ([]responses.Record, error) {
	if f.readErr != nil {
		return nil, &responses.ReadError{Op: "load_all", Err: f.readErr}
	}
	return f.records, nil
}

func (f *fakeStore) Recent(_ context.Context, limit int) ([]responses.Record, error) {
	if f.readErr != nil {
		return nil, &responses.ReadError{Op: "recent", Err: f.readErr}
	}
	out := make([]responses.Record, 0, limit)
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.records[i])
	}
	return out, nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		[]catalog.Question{
			{ID: "q1", Prompt: "Where?", Kind: catalog.SingleChoice, Options: []catalog.Option{{Text: "In travels"}, {Text: "In my city"}}},
			{ID: "q2", Prompt: "How?", Kind: catalog.MultipleChoice, Options: []catalog.Option{{Text: "Google"}, {Text: "Friends"}, {Text: "Other", Other: true}}},
		},
		[]catalog.Question{{ID: "age", Prompt: "Age:", Kind: catalog.FreeText}},
	)
	require.NoError(t, err)
	return cat
}

func newService(t *testing.T, store *fakeStore, opts Options) (*Service, session.Store) {
	t.Helper()
	sessions := session.NewMemoryStore()
	opts.Metrics = metrics.NewRecorder(prometheus.NewRegistry(), nil)
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}
	return New(testCatalog(t), sessions, store, store, opts), sessions
}

func TestEventsWithoutStartReportNoActiveSession(t *testing.T) {
	svc, _ := newService(t, &fakeStore{}, Options{})
	ctx := context.Background()

	_, err := svc.SelectSingle(ctx, 1, "q1", 0)
	assert.ErrorIs(t, err, flow.ErrNoActiveSession)
	_, err = svc.SubmitText(ctx, 1, "hi")
	assert.ErrorIs(t, err, flow.ErrNoActiveSession)
	_, err = svc.Current(1)
	assert.ErrorIs(t, err, flow.ErrNoActiveSession)
	assert.False(t, svc.InProgress(1))
}

func TestStartRendersFirstQuestion(t *testing.T) {
	svc, _ := newService(t, &fakeStore{}, Options{})
	out, err := svc.Start(context.Background(), 1, "Ann")
	require.NoError(t, err)
	assert.Equal(t, flow.PromptChoice, out.Prompt.Kind)
	assert.Equal(t, "q1", out.Prompt.Question.ID)
	assert.False(t, out.Done())
	assert.True(t, svc.InProgress(1))
	assert.Equal(t, 1, svc.ActiveSessions())
}

func TestRestartReplacesSession(t *testing.T) {
	svc, _ := newService(t, &fakeStore{}, Options{})
	ctx := context.Background()
	first, err := svc.Start(ctx, 1, "Ann")
	require.NoError(t, err)
	_, err = svc.SelectSingle(ctx, 1, "q1", 0)
	require.NoError(t, err)

	second, err := svc.Start(ctx, 1, "Ann")
	require.NoError(t, err)
	assert.NotEqual(t, first.Session.ID, second.Session.ID)
	assert.Empty(t, second.Session.Answers)
	assert.Equal(t, 1, svc.ActiveSessions())
}

func TestInvalidTransitionKeepsPromptForRerender(t *testing.T) {
	svc, _ := newService(t, &fakeStore{}, Options{})
	ctx := context.Background()
	_, err := svc.Start(ctx, 1, "Ann")
	require.NoError(t, err)

	out, err := svc.SelectSingle(ctx, 1, "q1", 9)
	assert.ErrorIs(t, err, flow.ErrInvalidTransition)
	assert.Equal(t, "q1", out.Prompt.Question.ID)
	assert.Equal(t, 0, out.Session.Cursor)
	assert.Empty(t, out.Session.Answers)
}

func TestFullSurveySavesOnceAndRemovesSession(t *testing.T) {
	store := &fakeStore{}
	svc, sessions := newService(t, store, Options{})
	ctx := context.Background()

	_, err := svc.Start(ctx, 7, "Ann")
	require.NoError(t, err)
	_, err = svc.SelectSingle(ctx, 7, "q1", 0)
	require.NoError(t, err)
	_, err = svc.ToggleMulti(ctx, 7, "q2", 2)
	require.NoError(t, err)
	out, err := svc.SubmitText(ctx, 7, "custom thing")
	require.NoError(t, err)
	assert.Equal(t, flow.PromptFreeText, out.Prompt.Kind)

	out, err = svc.SubmitText(ctx, 7, "31")
	require.NoError(t, err)
	assert.True(t, out.Done())
	assert.Equal(t, CompletionSaved, out.Completion)
	assert.Equal(t, int64(1), out.RecordID)
	assert.Equal(t, flow.PromptDone, out.Prompt.Kind)

	require.Len(t, store.calls, 1)
	assert.Equal(t, int64(7), store.calls[0].userID)
	assert.Equal(t, "Ann", store.calls[0].name)
	assert.Equal(t, "In travels", store.calls[0].answers["q1"].Value())
	assert.Equal(t, []string{"Other: custom thing"}, store.calls[0].answers["q2"].Values())
	assert.Equal(t, "31", store.calls[0].answers["age"].Value())

	_, ok := sessions.Get(7)
	assert.False(t, ok)
	assert.False(t, svc.InProgress(7))
}

func TestFailedSaveStillRemovesSession(t *testing.T) {
	store := &fakeStore{failures: 1}
	svc, sessions := newService(t, store, Options{})
	ctx := context.Background()

	_, err := svc.Start(ctx, 7, "")
	require.NoError(t, err)
	_, err = svc.SelectSingle(ctx, 7, "q1", 1)
	require.NoError(t, err)
	_, err = svc.FinishMulti(ctx, 7, "q2")
	require.NoError(t, err)
	out, err := svc.Skip(ctx, 7)

	var pe *responses.PersistError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, CompletionFailed, out.Completion)
	assert.True(t, out.Done())
	assert.Len(t, store.calls, 1)

	_, ok := sessions.Get(7)
	assert.False(t, ok)

	_, err = svc.SubmitText(ctx, 7, "late")
	assert.ErrorIs(t, err, flow.ErrNoActiveSession)
}

func TestSaveRetriesWhenConfigured(t *testing.T) {
	store := &fakeStore{failures: 2}
	svc, _ := newService(t, store, Options{SaveRetries: 2})
	ctx := context.Background()

	_, err := svc.Start(ctx, 7, "")
	require.NoError(t, err)
	_, err = svc.SelectSingle(ctx, 7, "q1", 1)
	require.NoError(t, err)
	_, err = svc.FinishMulti(ctx, 7, "q2")
	require.NoError(t, err)
	out, err := svc.Skip(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, CompletionSaved, out.Completion)
	assert.Len(t, store.calls, 3)
}

func TestStats(t *testing.T) {
	store := &fakeStore{}
	svc, _ := newService(t, store, Options{})
	ctx := context.Background()

	for uid := int64(1); uid <= 6; uid++ {
		_, err := svc.Start(ctx, uid, "")
		require.NoError(t, err)
		_, err = svc.SelectSingle(ctx, uid, "q1", 0)
		require.NoError(t, err)
		_, err = svc.FinishMulti(ctx, uid, "q2")
		require.NoError(t, err)
		_, err = svc.Skip(ctx, uid)
		require.NoError(t, err)
	}
	_, err := svc.Start(ctx, 99, "")
	require.NoError(t, err)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, st.Total)
	assert.Equal(t, 1, st.Active)
	require.Len(t, st.Days, 1)
	assert.Equal(t, 6, st.Days[0].Count)
	require.Len(t, st.Recent, RecentLimit)
	assert.Equal(t, int64(6), st.Recent[0].ID)
}

func TestStatsReadFailure(t *testing.T) {
	store := &fakeStore{readErr: errors.New("timeout")}
	svc, _ := newService(t, store, Options{})
	_, err := svc.Start(context.Background(), 1, "")
	require.NoError(t, err)

	st, err := svc.Stats(context.Background())
	var re *responses.ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, st.Active)
	assert.Zero(t, st.Total)
}
