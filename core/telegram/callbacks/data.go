// Package callbacks reads and builds inline button data.
package callbacks

import (
	"errors"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Sep separates fields inside a payload.
const Sep = ":"

// ErrBadPayload is returned when a payload does not have the expected shape.
var ErrBadPayload = errors.New("callbacks: malformed payload")

// Parse returns the unique key and payload of cb. Raw data has the form
// "\f<unique>|<payload>" when telebot has not split it already.
func Parse(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	key, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(key), payload
}

// Key returns the unique key of the callback in c.
func Key(c tele.Context) string {
	key, _ := Parse(c.Callback())
	return key
}

// Payload returns the payload of the callback in c.
func Payload(c tele.Context) string {
	_, payload := Parse(c.Callback())
	return payload
}

// Join builds a payload. Fields must not contain Sep.
func Join(fields ...string) string {
	return strings.Join(fields, Sep)
}

// OptionPayload encodes an option index of a question.
func OptionPayload(questionID string, index int) string {
	return Join(questionID, strconv.Itoa(index))
}

// KeyIndex decodes a payload built by OptionPayload.
func KeyIndex(c tele.Context) (string, int, error) {
	id, raw, ok := strings.Cut(Payload(c), Sep)
	if !ok || id == "" || strings.Contains(raw, Sep) {
		return "", 0, ErrBadPayload
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 {
		return "", 0, ErrBadPayload
	}
	return id, idx, nil
}
