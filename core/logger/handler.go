package logger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// handler turns slog records into flat, ordered lines. Groups are flattened
// into dotted keys and durations are written as whole milliseconds.
type handler struct {
	out    lineWriter
	level  slog.Leveler
	format Format
	rank   map[string]int
	attrs  []slog.Attr
	prefix string
}

func newHandler(out lineWriter, opts Options) *handler {
	order := opts.KeyOrder
	if len(order) == 0 {
		order = defaultKeyOrder
	}
	rank := make(map[string]int, len(order))
	for i, k := range order {
		if _, dup := rank[k]; !dup {
			rank[k] = i
		}
	}
	format := opts.Format
	if format == "" {
		format = FormatJSON
	}
	return &handler{out: out, level: opts.Level, format: format, rank: rank}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	f := fields{}
	f.set("ts", r.Time.UTC().Truncate(time.Millisecond).Format(timeLayout))
	f.set("level", levelName(r.Level))

	for _, a := range h.attrs {
		f.addAttr("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		f.addAttr(h.prefix, a)
		return true
	})
	f.addContext(ctx)

	if rid, ok := f["rid"].(string); ok {
		if short := CompactRID(rid); short != rid {
			f["rid"] = short
			if h.format == FormatJSON {
				f.setDefault("rid_full", rid)
			}
		}
	}
	if ev, _ := f["event"].(string); ev == "" {
		f["event"] = firstNonEmpty(r.Message, "unknown")
	}
	if c, _ := f["component"].(string); c == "" {
		f["component"] = "app"
	}
	f.normalizeEnums()

	var line []byte
	if h.format == FormatJSON {
		var err error
		if line, err = encodeJSON(f, h.rank); err != nil {
			return err
		}
	} else {
		line = encodeKV(f, h.rank)
	}
	return h.out.writeLine(r.Level, append(line, '\n'))
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.prefix == "" {
		clone.prefix = name
	} else {
		clone.prefix = h.prefix + "." + name
	}
	return &clone
}

// fields is one log line before encoding. Empty strings and nil values are
// never stored.
type fields map[string]any

func (f fields) set(key string, v any) {
	if key == "" || v == nil {
		return
	}
	if s, ok := v.(string); ok && s == "" {
		return
	}
	f[key] = v
}

func (f fields) setDefault(key string, v any) {
	if _, ok := f[key]; !ok {
		f.set(key, v)
	}
}

func (f fields) addAttr(prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			f.addAttr(key, child)
		}
		return
	}
	k, val := plainValue(key, v)
	f.set(k, val)
}

// plainValue converts v into an encodable value. Durations are renamed to
// carry an _ms suffix.
func plainValue(key string, v slog.Value) (string, any) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String())
	case slog.KindBool:
		return key, v.Bool()
	case slog.KindInt64:
		return key, v.Int64()
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u)
		}
		return key, v.Uint64()
	case slog.KindFloat64:
		return key, v.Float64()
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds()
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano)
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil
	case error:
		return key, x.Error()
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds()
	case fmt.Stringer:
		return key, x.String()
	default:
		return key, fmt.Sprint(x)
	}
}

func msKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}

func (f fields) addContext(ctx context.Context) {
	m := metaFrom(ctx)
	if m == nil {
		return
	}
	f.setDefault("rid", m.rid)
	f.setDefault("handler", m.handler)
	if m.updateID != 0 {
		f.setDefault("update_id", int64(m.updateID))
	}
	if m.userID != 0 {
		f.setDefault("user_id", m.userID)
	}
	if m.chatID != 0 {
		f.setDefault("chat_id", m.chatID)
	}
}

// normalizeEnums lower-cases status and drops outcome values outside the
// known set.
func (f fields) normalizeEnums() {
	if s, ok := f["status"].(string); ok {
		f["status"] = strings.ToLower(s)
	}
	if o, ok := f["outcome"].(string); ok {
		o = strings.ToLower(o)
		if outcomeValues[o] {
			f["outcome"] = o
		} else {
			delete(f, "outcome")
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
