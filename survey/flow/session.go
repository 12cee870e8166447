// Package flow implements the survey state machine: a pure transition
// function over per-user sessions walking the question catalog.
package flow

import (
	"time"

	"github.com/google/uuid"

	"github.com/vldos/telegram-survey-bot/survey/answers"
	"github.com/vldos/telegram-survey-bot/survey/catalog"
)

// Phase names the question list a session is walking, or a sub-flow.
type Phase string

const (
	PhaseMain          Phase = "main"
	PhaseAdditional    Phase = "additional"
	PhaseAwaitingOther Phase = "awaiting_other_text"
	PhaseCompleted     Phase = "completed"
)

// PendingOther is the return point captured when the Other option is chosen.
type PendingOther struct {
	QuestionID   string
	Kind         catalog.Kind
	ReturnPhase  Phase
	ReturnCursor int
}

// Session is the in-memory progress of one user through the catalog.
type Session struct {
	ID          string
	UserID      int64
	DisplayName string
	Phase       Phase
	Cursor      int
	Answers     answers.Answers
	Pending     *PendingOther
	StartedAt   time.Time
}

// NewSession returns a session positioned at the first question.
// A catalog with an empty main list starts directly in the additional phase.
func NewSession(cat *catalog.Catalog, userID int64, displayName string, now time.Time) Session {
	s := Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		DisplayName: displayName,
		Phase:       PhaseMain,
		Answers:     answers.Answers{},
		StartedAt:   now,
	}
	advance(cat, &s)
	return s
}

// Clone returns a deep copy; the answers map and pending record are not shared.
func (s Session) Clone() Session {
	out := s
	out.Answers = s.Answers.Clone()
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	return out
}

// Completed reports whether the session reached the terminal phase.
func (s Session) Completed() bool { return s.Phase == PhaseCompleted }

// Questions returns the question list the phase walks; nil for sub-flows.
func Questions(cat *catalog.Catalog, phase Phase) []catalog.Question {
	switch phase {
	case PhaseMain:
		return cat.Main
	case PhaseAdditional:
		return cat.Additional
	default:
		return nil
	}
}

// Current returns the question the session is positioned at. While awaiting
// Other text it returns the question the override belongs to.
func Current(cat *catalog.Catalog, s Session) (catalog.Question, bool) {
	if s.Phase == PhaseAwaitingOther {
		if s.Pending == nil {
			return catalog.Question{}, false
		}
		return cat.Question(s.Pending.QuestionID)
	}
	qs := Questions(cat, s.Phase)
	if s.Cursor < 0 || s.Cursor >= len(qs) {
		return catalog.Question{}, false
	}
	return qs[s.Cursor], true
}

// advance applies the phase advance rule until the cursor points at a question
// or the session completes.
func advance(cat *catalog.Catalog, s *Session) {
	for {
		switch s.Phase {
		case PhaseMain:
			if s.Cursor < len(cat.Main) {
				return
			}
			s.Phase, s.Cursor = PhaseAdditional, 0
		case PhaseAdditional:
			if s.Cursor < len(cat.Additional) {
				return
			}
			s.Phase, s.Cursor = PhaseCompleted, 0
		default:
			return
		}
	}
}
