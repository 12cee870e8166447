// Package service drives survey sessions: it applies inbound events through
// the state machine, persists completed surveys and answers stats queries.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vldos/telegram-survey-bot/core/logger"
	"github.com/vldos/telegram-survey-bot/core/metrics"
	"github.com/vldos/telegram-survey-bot/survey/catalog"
	"github.com/vldos/telegram-survey-bot/survey/flow"
	"github.com/vldos/telegram-survey-bot/survey/report"
	"github.com/vldos/telegram-survey-bot/survey/responses"
	"github.com/vldos/telegram-survey-bot/survey/session"
)

const component = "service.survey"

// RecentLimit is the number of latest responses included in Stats.
const RecentLimit = 5

// Options tunes persistence at the terminal transition.
type Options struct {
	// SaveTimeout bounds each save attempt.
	SaveTimeout time.Duration
	// SaveRetries is the number of extra attempts after a failed save.
	SaveRetries int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration
	Metrics      *metrics.Recorder
	Now          func() time.Time
}

func (o *Options) applyDefaults() {
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = 10 * time.Second
	}
	if o.SaveRetries < 0 {
		o.SaveRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Completion tells how a terminal transition ended.
type Completion string

const (
	CompletionNone   Completion = ""
	CompletionSaved  Completion = "saved"
	CompletionFailed Completion = "failed"
)

// Outcome is the result of an inbound event: the session after the event and
// what to render next.
type Outcome struct {
	Session    flow.Session
	Prompt     flow.Prompt
	Completion Completion
	RecordID   int64
}

// Done reports whether the survey reached its terminal transition.
func (o Outcome) Done() bool { return o.Completion != CompletionNone }

// Stats answers the stats query.
type Stats struct {
	Total  int
	Active int
	Days   []report.DayCount
	Recent []responses.Record
}

// Service orchestrates sessions, the state machine and the persister.
type Service struct {
	cat       *catalog.Catalog
	store     session.Store
	persister responses.Persister
	reader    responses.Reader
	opts      Options
}

// New wires a Service. reader may be nil when stats are not served.
func New(cat *catalog.Catalog, store session.Store, persister responses.Persister, reader responses.Reader, opts Options) *Service {
	opts.applyDefaults()
	return &Service{cat: cat, store: store, persister: persister, reader: reader, opts: opts}
}

// Catalog returns the catalog the service runs.
func (s *Service) Catalog() *catalog.Catalog { return s.cat }

// ActiveSessions returns the number of surveys in progress.
func (s *Service) ActiveSessions() int { return s.store.Len() }

// InProgress reports whether the user has an unfinished survey.
func (s *Service) InProgress(userID int64) bool {
	sess, ok := s.store.Get(userID)
	return ok && !sess.Completed()
}

// Start begins a new survey for the user, replacing any unfinished one.
func (s *Service) Start(ctx context.Context, userID int64, displayName string) (Outcome, error) {
	_, replaced := s.store.Get(userID)
	sess := flow.NewSession(s.cat, userID, displayName, s.opts.Now())
	s.store.Put(sess)
	s.opts.Metrics.SurveyStarted()

	logger.Info(ctx, component, "survey.start",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("session_id", sess.ID),
		slog.Bool("replaced", replaced),
	)
	if sess.Completed() {
		return s.complete(ctx, sess)
	}
	return Outcome{Session: sess, Prompt: flow.PromptFor(s.cat, sess)}, nil
}

// SelectSingle answers a single-choice question.
func (s *Service) SelectSingle(ctx context.Context, userID int64, questionID string, option int) (Outcome, error) {
	return s.apply(ctx, userID, flow.SelectSingle(questionID, option))
}

// ToggleMulti toggles an option of a multiple-choice question.
func (s *Service) ToggleMulti(ctx context.Context, userID int64, questionID string, option int) (Outcome, error) {
	return s.apply(ctx, userID, flow.ToggleMulti(questionID, option))
}

// FinishMulti closes a multiple-choice question.
func (s *Service) FinishMulti(ctx context.Context, userID int64, questionID string) (Outcome, error) {
	return s.apply(ctx, userID, flow.FinishMulti(questionID))
}

// SubmitText answers the current free-text question or Other override.
func (s *Service) SubmitText(ctx context.Context, userID int64, text string) (Outcome, error) {
	return s.apply(ctx, userID, flow.SubmitText(text))
}

// Skip leaves a free-text question unanswered, or returns from an Other
// override to the options.
func (s *Service) Skip(ctx context.Context, userID int64) (Outcome, error) {
	return s.apply(ctx, userID, flow.Skip())
}

// Current returns the prompt of the user's session for re-rendering.
func (s *Service) Current(userID int64) (Outcome, error) {
	sess, ok := s.store.Get(userID)
	if !ok {
		return Outcome{}, flow.ErrNoActiveSession
	}
	return Outcome{Session: sess, Prompt: flow.PromptFor(s.cat, sess)}, nil
}

func (s *Service) apply(ctx context.Context, userID int64, ev flow.Event) (Outcome, error) {
	next, err := s.store.Update(userID, func(cur flow.Session) (flow.Session, error) {
		return flow.Apply(s.cat, cur, ev)
	})
	switch {
	case errors.Is(err, flow.ErrNoActiveSession):
		s.opts.Metrics.Transition(string(ev.Type), "no_session")
		logger.Debug(ctx, component, "survey.transition",
			slog.String("status", "skip"),
			slog.String("type", string(ev.Type)),
			slog.Int64("user_id", userID),
			slog.String("err_code", "NO_ACTIVE_SESSION"),
		)
		return Outcome{}, err
	case err != nil:
		s.opts.Metrics.Transition(string(ev.Type), "invalid")
		logger.Debug(ctx, component, "survey.transition",
			slog.String("status", "fail"),
			slog.String("type", string(ev.Type)),
			slog.Int64("user_id", userID),
			slog.String("question_id", ev.QuestionID),
			slog.String("err", err.Error()),
			slog.String("err_code", "INVALID_TRANSITION"),
		)
		return Outcome{Session: next, Prompt: flow.PromptFor(s.cat, next)}, err
	}

	s.opts.Metrics.Transition(string(ev.Type), "ok")
	logger.Debug(ctx, component, "survey.transition",
		slog.String("status", "ok"),
		slog.String("type", string(ev.Type)),
		slog.Int64("user_id", userID),
		slog.String("question_id", ev.QuestionID),
		slog.String("phase", string(next.Phase)),
		slog.Int("cursor", next.Cursor),
	)
	if next.Completed() {
		return s.complete(ctx, next)
	}
	return Outcome{Session: next, Prompt: flow.PromptFor(s.cat, next)}, nil
}

// complete persists a finished session and drops it from the store whatever
// the save result.
func (s *Service) complete(ctx context.Context, sess flow.Session) (Outcome, error) {
	start := time.Now()
	id, err := s.save(ctx, sess)
	s.store.RemoveSession(sess.UserID, sess.ID)
	s.opts.Metrics.ResponseSaved(err == nil, time.Since(start))

	out := Outcome{Session: sess, Prompt: flow.PromptFor(s.cat, sess)}
	if err != nil {
		out.Completion = CompletionFailed
		logger.Error(ctx, component, "survey.complete",
			slog.String("status", "fail"),
			slog.Int64("user_id", sess.UserID),
			slog.String("session_id", sess.ID),
			slog.Int("answers", len(sess.Answers)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", "PERSIST_FAILED"),
		)
		return out, err
	}
	out.Completion = CompletionSaved
	out.RecordID = id
	logger.Info(ctx, component, "survey.complete",
		slog.String("status", "ok"),
		slog.Int64("user_id", sess.UserID),
		slog.String("session_id", sess.ID),
		slog.Int64("record_id", id),
		slog.Int("answers", len(sess.Answers)),
		slog.Duration("duration", logger.RoundMS(time.Since(sess.StartedAt))),
	)
	return out, nil
}

func (s *Service) save(ctx context.Context, sess flow.Session) (int64, error) {
	var lastErr error
	for attempt := 0; attempt <= s.opts.SaveRetries; attempt++ {
		if attempt > 0 {
			wait := s.opts.RetryBackoff * time.Duration(attempt)
			logger.Warn(ctx, component, "survey.save_retry",
				slog.Int64("user_id", sess.UserID),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", wait),
				slog.String("err", logger.SanitizeLimit(lastErr.Error(), 256)),
			)
			select {
			case <-ctx.Done():
				return 0, lastErr
			case <-time.After(wait):
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.SaveTimeout)
		id, err := s.persister.Save(attemptCtx, sess.UserID, sess.DisplayName, sess.Answers)
		cancel()
		if err == nil {
			return id, nil
		}
		lastErr = err
	}
	return 0, lastErr
}

// Stats returns totals, per-day counts and the latest responses. On a read
// failure the active session count is still filled in.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Active: s.store.Len()}
	if s.reader == nil {
		return st, &responses.ReadError{Op: "stats", Err: errors.New("no response reader configured")}
	}
	records, err := s.reader.LoadAll(ctx)
	if err != nil {
		return st, err
	}
	recent, err := s.reader.Recent(ctx, RecentLimit)
	if err != nil {
		return st, err
	}
	st.Total = len(records)
	st.Days = report.ByDay(records)
	st.Recent = recent
	logger.Debug(ctx, component, "survey.stats",
		slog.String("status", "ok"),
		slog.Int("total", st.Total),
		slog.Int("active", st.Active),
	)
	return st, nil
}
