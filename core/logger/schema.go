package logger

import (
	"log/slog"
	"strings"
)

// Format selects the line encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatKV   Format = "kv"
)

// Level names written to the level key.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// defaultKeyOrder puts the envelope first, then request metadata, then the
// survey and storage fields, then errors. Unlisted keys follow alphabetically.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full",
	"update_id", "user_id", "chat_id", "chat_type", "handler",
	"op", "cb_key", "outcome", "duration_ms",
	"mode", "listen", "public_url", "http_code",
	"session_id", "question_id", "type", "phase", "cursor",
	"record_id", "answers", "total", "active", "rows",
	"db", "driver", "host",
	"err", "err_code", "retryable", "attempt", "attempts", "backoff_ms",
	"collapsed", "repeats",
}

// outcomeValues are the accepted values of the outcome key; others are dropped.
var outcomeValues = map[string]bool{
	"ok": true, "fail": true, "cancelled": true, "rate_limited": true,
}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	default:
		return LevelError
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseFormat maps the configured format; an empty value picks key=value
// output for the debug and dev profiles and JSON otherwise.
func parseFormat(s, profile string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kv", "text", "pretty":
		return FormatKV
	case "json":
		return FormatJSON
	}
	if profile == "debug" || profile == "dev" {
		return FormatKV
	}
	return FormatJSON
}

func splitKeys(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "default" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
