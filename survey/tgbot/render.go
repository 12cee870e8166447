package tgbot

import (
	"fmt"
	"strings"

	"github.com/vldos/telegram-survey-bot/core/telegram/callbacks"
	"github.com/vldos/telegram-survey-bot/core/telegram/format"
	"github.com/vldos/telegram-survey-bot/core/telegram/keyboard"
	"github.com/vldos/telegram-survey-bot/survey/catalog"
	"github.com/vldos/telegram-survey-bot/survey/flow"
	"github.com/vldos/telegram-survey-bot/survey/service"

	tele "gopkg.in/telebot.v4"
)

// Callback keys.
const (
	cbStart  = "survey_start"
	cbSingle = "survey_single"
	cbMulti  = "survey_multi"
	cbFinish = "survey_finish"
	cbSkip   = "survey_skip"
)

const recentTimeLayout = "2006-01-02 15:04"

// renderPrompt turns a prompt into message text and an inline keyboard.
func renderPrompt(cat *catalog.Catalog, p flow.Prompt) (string, *tele.ReplyMarkup) {
	msgs := cat.Messages
	q := p.Question

	switch p.Kind {
	case flow.PromptOtherText:
		text := msgs.OtherPrompt
		if q.Prompt != "" {
			text = msgs.QuestionPrefix + q.Prompt + "\n\n" + msgs.OtherPrompt
		}
		return text, keyboard.Column(keyboard.Btn(msgs.BackButton, cbSkip, ""))

	case flow.PromptFreeText:
		text := fmt.Sprintf("%s%s\n\n%s", msgs.FreeTextPrefix, q.Prompt, msgs.FreeTextHint)
		return text, keyboard.Column(keyboard.Btn(msgs.SkipButton, cbSkip, ""))

	case flow.PromptChoice:
		text := fmt.Sprintf("%s%s", msgs.QuestionPrefix, q.Prompt)
		if p.Total > 1 {
			text = fmt.Sprintf("%s(%d/%d) %s", msgs.QuestionPrefix, p.Number, p.Total, q.Prompt)
		}
		if p.Multi() {
			return text, multiKeyboard(p, msgs.FinishButton)
		}
		buttons := make([]keyboard.Button, 0, len(q.Options))
		for i, o := range q.Options {
			buttons = append(buttons, keyboard.Btn(o.Text, cbSingle, callbacks.OptionPayload(q.ID, i)))
		}
		return text, keyboard.Column(buttons...)
	}

	return msgs.Completed, nil
}

func multiKeyboard(p flow.Prompt, finish string) *tele.ReplyMarkup {
	q := p.Question
	rows := make([][]keyboard.Button, 0, len(q.Options)+1)
	for i, o := range q.Options {
		on := p.Selected.Contains(o.Text)
		if o.Other {
			on = on || p.OtherFilled
		}
		label := keyboard.Checkbox(o.Text, on)
		rows = append(rows, []keyboard.Button{keyboard.Btn(label, cbMulti, callbacks.OptionPayload(q.ID, i))})
	}
	rows = append(rows, []keyboard.Button{keyboard.Btn(finish, cbFinish, q.ID)})
	return keyboard.Rows(rows...)
}

// welcomeMarkup carries the start button.
func welcomeMarkup(cat *catalog.Catalog) *tele.ReplyMarkup {
	return keyboard.Column(keyboard.Btn(cat.Messages.StartButton, cbStart, ""))
}

// completionText picks the success or failure message.
func completionText(cat *catalog.Catalog, out service.Outcome) string {
	if out.Completion == service.CompletionFailed {
		return cat.Messages.CompletedFailed
	}
	return cat.Messages.Completed
}

// renderStats formats the stats query result.
func renderStats(cat *catalog.Catalog, st service.Stats) string {
	msgs := cat.Messages
	var b strings.Builder
	b.WriteString(msgs.StatsTitle)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s: %d\n", msgs.StatsTotal, st.Total)
	fmt.Fprintf(&b, "%s: %d\n", msgs.StatsActive, st.Active)

	if len(st.Days) > 0 {
		fmt.Fprintf(&b, "\n%s:\n", msgs.StatsByDay)
		for _, d := range st.Days {
			fmt.Fprintf(&b, "%s: %d\n", d.Date, d.Count)
		}
	}
	if len(st.Recent) > 0 {
		fmt.Fprintf(&b, "\n%s:\n", msgs.StatsRecent)
		for i, r := range st.Recent {
			name := r.DisplayName()
			if name == "" {
				name = msgs.Anonymous
			}
			fmt.Fprintf(&b, "%d. %s - %s\n", i+1, name, r.CreatedAt.UTC().Format(recentTimeLayout))
		}
	}
	return format.Clip(strings.TrimRight(b.String(), "\n"), format.MaxMessage)
}
