// Package format prepares text for Telegram's legacy Markdown parse mode.
package format

import (
	"strings"
	"unicode/utf8"
)

// MaxMessage is the longest text Telegram accepts in one message, in runes.
const MaxMessage = 4096

var mdEscaper = strings.NewReplacer(`_`, `\_`, `*`, `\*`, "`", "\\`", `[`, `\[`)

// MD escapes user or catalog text so it renders literally.
func MD(text string) string {
	return mdEscaper.Replace(text)
}

// Bold escapes text and wraps it in bold markers.
func Bold(text string) string {
	return "*" + MD(text) + "*"
}

// Clip cuts text to at most max runes, ending with an ellipsis when cut.
func Clip(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	r := []rune(text)
	return string(r[:max-1]) + "…"
}
