// Package keyboard builds inline keyboards from callback buttons.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one callback button: Unique routes it, Data is its payload.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Btn is shorthand for a Button literal.
func Btn(text, unique, data string) Button {
	return Button{Text: text, Unique: unique, Data: data}
}

// Checkbox marks a multi-select label as on or off.
func Checkbox(label string, on bool) string {
	if on {
		return "✅ " + label
	}
	return "☐ " + label
}

// Column lays the buttons out one per row.
func Column(buttons ...Button) *tele.ReplyMarkup {
	rows := make([][]Button, len(buttons))
	for i, b := range buttons {
		rows[i] = []Button{b}
	}
	return Rows(rows...)
}

// Rows lays out the given rows and skips empty ones.
func Rows(rows ...[]Button) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, *m.Data(b.Text, b.Unique, b.Data).Inline())
		}
		m.InlineKeyboard = append(m.InlineKeyboard, line)
	}
	return m
}
