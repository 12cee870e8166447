package flow

import (
	"github.com/vldos/telegram-survey-bot/survey/answers"
	"github.com/vldos/telegram-survey-bot/survey/catalog"
)

// PromptKind tells the transport what to render next.
type PromptKind string

const (
	PromptChoice    PromptKind = "choice"
	PromptFreeText  PromptKind = "free_text"
	PromptOtherText PromptKind = "other_text"
	PromptDone      PromptKind = "done"
)

// Prompt is a rendering request derived from a session. It says what to show,
// never how.
type Prompt struct {
	Kind     PromptKind
	Phase    Phase
	Question catalog.Question
	// Selected holds the options picked so far on a multiple-choice question.
	Selected answers.Answer
	// OtherFilled is set when a multiple-choice answer carries an Other override.
	OtherFilled bool
	// Number is the 1-based position of Question within its phase list.
	Number int
	Total  int
}

// Multi reports whether the prompt renders toggleable options.
func (p Prompt) Multi() bool {
	return p.Kind == PromptChoice && p.Question.Kind == catalog.MultipleChoice
}

// PromptFor returns what the session expects next.
func PromptFor(cat *catalog.Catalog, s Session) Prompt {
	switch s.Phase {
	case PhaseCompleted:
		return Prompt{Kind: PromptDone, Phase: s.Phase}
	case PhaseAwaitingOther:
		q, _ := Current(cat, s)
		return Prompt{Kind: PromptOtherText, Phase: s.Phase, Question: q}
	}
	q, ok := Current(cat, s)
	if !ok {
		return Prompt{Kind: PromptDone, Phase: s.Phase}
	}
	p := Prompt{
		Phase:    s.Phase,
		Question: q,
		Number:   s.Cursor + 1,
		Total:    len(Questions(cat, s.Phase)),
	}
	if q.Kind == catalog.FreeText {
		p.Kind = PromptFreeText
		return p
	}
	p.Kind = PromptChoice
	if q.Kind == catalog.MultipleChoice {
		p.Selected = s.Answers[q.ID]
		p.OtherFilled = HasOverride(cat, p.Selected)
	}
	return p
}
