package flow

import (
	"strings"

	"github.com/vldos/telegram-survey-bot/survey/answers"
	"github.com/vldos/telegram-survey-bot/survey/catalog"
)

// EventType enumerates the session-scoped inbound events.
type EventType string

const (
	EventSelectSingle EventType = "select_single"
	EventToggleMulti  EventType = "toggle_multi"
	EventFinishMulti  EventType = "finish_multi"
	EventSubmitText   EventType = "submit_text"
)

// Event is one inbound survey action. QuestionID may be empty for
// EventSubmitText, which always targets the current question.
type Event struct {
	Type       EventType
	QuestionID string
	Option     int
	Text       string
	Skip       bool
}

// SelectSingle builds a select_single event.
func SelectSingle(questionID string, option int) Event {
	return Event{Type: EventSelectSingle, QuestionID: questionID, Option: option}
}

// ToggleMulti builds a toggle_multi event.
func ToggleMulti(questionID string, option int) Event {
	return Event{Type: EventToggleMulti, QuestionID: questionID, Option: option}
}

// FinishMulti builds a finish_multi event.
func FinishMulti(questionID string) Event {
	return Event{Type: EventFinishMulti, QuestionID: questionID}
}

// SubmitText builds a submit_text event carrying user text.
func SubmitText(text string) Event {
	return Event{Type: EventSubmitText, Text: text}
}

// Skip builds the skip sentinel of submit_text.
func Skip() Event {
	return Event{Type: EventSubmitText, Skip: true}
}

// Apply computes the session that results from ev. The input session is never
// mutated; on error the returned session equals s.
func Apply(cat *catalog.Catalog, s Session, ev Event) (Session, error) {
	next := s.Clone()
	var err error
	switch ev.Type {
	case EventSelectSingle:
		err = selectSingle(cat, &next, ev)
	case EventToggleMulti:
		err = toggleMulti(cat, &next, ev)
	case EventFinishMulti:
		err = finishMulti(cat, &next, ev)
	case EventSubmitText:
		err = submitText(cat, &next, ev)
	default:
		err = reject(ev, ev.QuestionID, "unknown event")
	}
	if err != nil {
		return s, err
	}
	return next, nil
}

// question resolves the question at the cursor and checks it matches the event.
func question(cat *catalog.Catalog, s *Session, ev Event, kind catalog.Kind) (catalog.Question, error) {
	if s.Phase != PhaseMain && s.Phase != PhaseAdditional {
		return catalog.Question{}, reject(ev, ev.QuestionID, "not accepted in phase %s", s.Phase)
	}
	q, ok := Current(cat, *s)
	if !ok {
		return catalog.Question{}, reject(ev, ev.QuestionID, "cursor %d out of range", s.Cursor)
	}
	if ev.QuestionID != "" && ev.QuestionID != q.ID {
		return catalog.Question{}, reject(ev, ev.QuestionID, "current question is %q", q.ID)
	}
	if q.Kind != kind {
		return catalog.Question{}, reject(ev, q.ID, "question kind is %s", q.Kind)
	}
	return q, nil
}

func option(q catalog.Question, ev Event) (catalog.Option, error) {
	opt, ok := q.Option(ev.Option)
	if !ok {
		return catalog.Option{}, reject(ev, q.ID, "option %d out of range [0,%d)", ev.Option, len(q.Options))
	}
	return opt, nil
}

func selectSingle(cat *catalog.Catalog, s *Session, ev Event) error {
	q, err := question(cat, s, ev, catalog.SingleChoice)
	if err != nil {
		return err
	}
	opt, err := option(q, ev)
	if err != nil {
		return err
	}
	if opt.Other {
		awaitOther(s, q)
		return nil
	}
	s.Answers[q.ID] = answers.Single(opt.Text)
	s.Cursor++
	advance(cat, s)
	return nil
}

func toggleMulti(cat *catalog.Catalog, s *Session, ev Event) error {
	q, err := question(cat, s, ev, catalog.MultipleChoice)
	if err != nil {
		return err
	}
	opt, err := option(q, ev)
	if err != nil {
		return err
	}
	current := s.Answers[q.ID]
	if opt.Other {
		if HasOverride(cat, current) {
			s.Answers[q.ID] = current.Without(func(v string) bool {
				return strings.HasPrefix(v, cat.OtherPrefix)
			})
			return nil
		}
		awaitOther(s, q)
		return nil
	}
	if current.Contains(opt.Text) {
		s.Answers[q.ID] = current.Without(func(v string) bool { return v == opt.Text })
	} else {
		s.Answers[q.ID] = current.With(opt.Text)
	}
	return nil
}

func finishMulti(cat *catalog.Catalog, s *Session, ev Event) error {
	if _, err := question(cat, s, ev, catalog.MultipleChoice); err != nil {
		return err
	}
	s.Cursor++
	advance(cat, s)
	return nil
}

func submitText(cat *catalog.Catalog, s *Session, ev Event) error {
	if s.Phase == PhaseAwaitingOther {
		return submitOther(cat, s, ev)
	}
	q, err := question(cat, s, ev, catalog.FreeText)
	if err != nil {
		return err
	}
	if !ev.Skip {
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return reject(ev, q.ID, "empty text")
		}
		s.Answers[q.ID] = answers.Single(text)
	}
	s.Cursor++
	advance(cat, s)
	return nil
}

func submitOther(cat *catalog.Catalog, s *Session, ev Event) error {
	p := s.Pending
	if p == nil {
		return reject(ev, ev.QuestionID, "no pending other question")
	}
	if ev.QuestionID != "" && ev.QuestionID != p.QuestionID {
		return reject(ev, ev.QuestionID, "awaiting text for %q", p.QuestionID)
	}
	if ev.Skip {
		s.Phase, s.Cursor, s.Pending = p.ReturnPhase, p.ReturnCursor, nil
		return nil
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return reject(ev, p.QuestionID, "empty text")
	}
	value := cat.OtherPrefix + text
	switch p.Kind {
	case catalog.MultipleChoice:
		s.Answers[p.QuestionID] = s.Answers[p.QuestionID].With(value)
	default:
		s.Answers[p.QuestionID] = answers.Single(value)
	}
	s.Phase, s.Cursor, s.Pending = p.ReturnPhase, p.ReturnCursor+1, nil
	advance(cat, s)
	return nil
}

func awaitOther(s *Session, q catalog.Question) {
	s.Pending = &PendingOther{
		QuestionID:   q.ID,
		Kind:         q.Kind,
		ReturnPhase:  s.Phase,
		ReturnCursor: s.Cursor,
	}
	s.Phase = PhaseAwaitingOther
}

// HasOverride reports whether a multiple-choice answer carries a free-text
// Other override.
func HasOverride(cat *catalog.Catalog, a answers.Answer) bool {
	for _, v := range a.Flatten() {
		if strings.HasPrefix(v, cat.OtherPrefix) {
			return true
		}
	}
	return false
}
