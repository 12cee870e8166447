package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVLineFollowsKeyOrder(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{Level: slog.LevelDebug, Format: FormatKV})

	ctx := WithUpdateMeta(WithRID(context.Background(), BuildRID(10, 20, 30)), 10, 30, 20)
	l.LogAttrs(ctx, slog.LevelInfo, "msg",
		slog.String("zeta", "last"),
		slog.String("event", "survey.saved"),
		slog.String("component", "survey"),
		slog.String("note", "two words"),
	)

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(line, "ts="), line)
	assert.Contains(t, line, " level=INFO component=survey event=survey.saved rid=a.k.u update_id=10 user_id=30 chat_id=20 ")
	assert.Contains(t, line, `note="two words" zeta=last`)
	assert.NotContains(t, line, "rid_full")
}

func TestJSONLineKeepsFullRID(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{Level: slog.LevelInfo, Format: FormatJSON})

	ctx := WithHandler(WithRID(context.Background(), "1:2:3"), "start")
	l.LogAttrs(ctx, slog.LevelWarn, "fallback event",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.Any("err", errors.New("boom")),
		slog.String("outcome", "weird"),
		slog.Group("db", slog.String("driver", "sqlite")),
	)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "WARN", got["level"])
	assert.Equal(t, "app", got["component"])
	assert.Equal(t, "fallback event", got["event"])
	assert.Equal(t, "1.2.3", got["rid"])
	assert.Equal(t, "1:2:3", got["rid_full"])
	assert.Equal(t, "start", got["handler"])
	assert.EqualValues(t, 2, got["duration_ms"])
	assert.Equal(t, "boom", got["err"])
	assert.Equal(t, "sqlite", got["db.driver"])
	assert.NotContains(t, got, "outcome")

	assert.True(t, strings.HasPrefix(buf.String(), `{"ts":`), buf.String())
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{Level: slog.LevelWarn, Format: FormatKV})
	l.Info("dropped")
	assert.Empty(t, buf.String())
}

func TestAsyncWriterRespectsSinkLevels(t *testing.T) {
	var all, errs bytes.Buffer
	w := newAsyncWriter([]sink{{w: &all, min: slog.LevelDebug}, {w: &errs, min: slog.LevelWarn}}, 4)

	require.NoError(t, w.writeLine(slog.LevelInfo, []byte("info\n")))
	require.NoError(t, w.writeLine(slog.LevelError, []byte("error\n")))
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	assert.Equal(t, "info\nerror\n", all.String())
	assert.Equal(t, "error\n", errs.String())
	assert.ErrorIs(t, w.writeLine(slog.LevelInfo, []byte("late\n")), ErrWriterClosed)
}

func TestSamplerRatio(t *testing.T) {
	s := &sampler{}
	s.set(1, 4)
	allowed := 0
	for range 20 {
		if s.allow() {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)

	s.set(0, 0)
	assert.True(t, s.allow())
}

func TestParseRatio(t *testing.T) {
	cases := map[string][2]int{
		"1/10":  {1, 10},
		"25":    {1, 25},
		" 2/ 3": {2, 3},
		"0/5":   {0, 0},
		"off":   {0, 0},
	}
	for in, want := range cases {
		n, d := parseRatio(in)
		assert.Equal(t, want, [2]int{n, d}, in)
	}
}

func TestOptionsFromProfile(t *testing.T) {
	opts := OptionsFrom(nil)
	assert.Equal(t, FormatJSON, opts.Format)
	assert.Equal(t, slog.LevelInfo, opts.Level)

	assert.Equal(t, FormatKV, parseFormat("", "dev"))
	assert.Equal(t, FormatJSON, parseFormat("json", "debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, []string{"ts", "event"}, splitKeys(" ts, ,event "))
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "abc", SanitizeLimit("a\x00bcdef", 3))
	assert.Equal(t, "line\nnext", Sanitize("line\nnext\u200b"))
	assert.Equal(t, "", SanitizeLimit("x", 0))
	assert.Equal(t, "not-a-rid", CompactRID("not-a-rid"))
	assert.Equal(t, "z.-1.0", CompactRID("35:-1:0"))
	assert.Equal(t, time.Duration(0), RoundMS(-time.Second))

	s, cut := SummarizeStrings([]string{"a", "b", "c"}, 2)
	assert.Equal(t, "a, b", s)
	assert.True(t, cut)
}

func TestContextMetaIsCopied(t *testing.T) {
	base := WithRID(context.Background(), "r1")
	child := WithHandler(base, "stats")

	assert.Equal(t, "", HandlerFrom(base))
	assert.Equal(t, "stats", HandlerFrom(child))
	assert.Equal(t, "r1", RIDFrom(child))
	assert.Equal(t, base, WithHandler(base, ""))
	assert.Zero(t, ChatIDFrom(context.Background()))
}

func TestHelpersAreSilentBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Info(context.Background(), "app", "noop")
	})
}
