// Package logger provides the structured logger used across the bot: one line
// per event with a fixed key order, request ids taken from the context and an
// asynchronous writer fanning out to stdout and optional log files.
package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/vldos/telegram-survey-bot/core/buildinfo"
	coreconfig "github.com/vldos/telegram-survey-bot/core/config"
)

// L is the base logger. It stays nil until InitLogger runs; the package level
// helpers (Info, Warn, ...) are silent until then.
var L *slog.Logger

var (
	initOnce sync.Once
	state    struct {
		sync.Mutex
		writer  *asyncWriter
		closers []io.Closer
		closed  bool
	}
)

// Options are the resolved logger settings.
type Options struct {
	Level    slog.Level
	Format   Format
	KeyOrder []string
	// SampleNum and SampleDen define the debug sampling ratio; zero keeps everything.
	SampleNum, SampleDen int
	Profile              string
}

// OptionsFrom resolves logger options from the core logging section.
func OptionsFrom(cfg *coreconfig.Config) Options {
	opts := Options{
		Level:     slog.LevelInfo,
		Format:    FormatJSON,
		KeyOrder:  defaultKeyOrder,
		SampleNum: 1,
		SampleDen: 50,
		Profile:   "prod",
	}
	if cfg == nil {
		return opts
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		opts.Profile = p
	}
	opts.Level = parseLevel(lc.Level)
	opts.Format = parseFormat(lc.Format, opts.Profile)
	if order := splitKeys(lc.KeysOrder); len(order) > 0 {
		opts.KeyOrder = order
	}
	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		opts.SampleNum, opts.SampleDen = parseRatio(spec)
	}
	return opts
}

// New builds a logger writing synchronously to w. It does not touch L.
func New(w io.Writer, opts Options) *slog.Logger {
	return slog.New(newHandler(&syncSink{w: w}, opts))
}

// InitLogger configures the global logger from cfg. Only the first call has
// an effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		sinks, closers := openSinks(cfg)
		opts := OptionsFrom(cfg)
		debugSampler.set(opts.SampleNum, opts.SampleDen)

		w := newAsyncWriter(sinks, 256)
		state.Lock()
		state.writer, state.closers = w, closers
		state.Unlock()

		L = slog.New(newHandler(w, opts))
		slog.SetDefault(L)

		Info(context.Background(), "app", "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("profile", opts.Profile),
		)
	})
	return nil
}

// openSinks returns stdout plus the optional bot and errors files under
// Logging.Dir. A file that cannot be opened is reported and skipped.
func openSinks(cfg *coreconfig.Config) ([]sink, []io.Closer) {
	sinks := []sink{{w: os.Stdout, min: slog.LevelDebug}}
	if cfg == nil {
		return sinks, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	if dir == "" {
		return sinks, nil
	}
	files := []struct {
		name string
		min  slog.Level
	}{
		{strings.TrimSpace(cfg.Logging.BotFile), slog.LevelDebug},
		{strings.TrimSpace(cfg.Logging.ErrorsFile), slog.LevelWarn},
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("logger: failed to create log dir %s: %v", dir, err)
		return sinks, nil
	}
	var closers []io.Closer
	for _, f := range files {
		if f.name == "" {
			continue
		}
		path := filepath.Join(dir, f.name)
		fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Printf("logger: failed to open log file %s: %v", path, err)
			continue
		}
		sinks = append(sinks, sink{w: fh, min: f.min})
		closers = append(closers, fh)
	}
	return sinks, closers
}

// Shutdown flushes buffered output and closes log files. It is idempotent.
func Shutdown() error {
	state.Lock()
	defer state.Unlock()
	if state.closed {
		return nil
	}
	state.closed = true

	var errs []error
	if state.writer != nil {
		errs = append(errs, state.writer.Close())
	}
	for _, c := range state.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Background returns context.Background for call sites without a request.
func Background() context.Context {
	return context.Background()
}

// Event logs one named event for component at level.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	l := L
	if l == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.Enabled(ctx, level) {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+2)
	if c := strings.TrimSpace(component); c != "" {
		all = append(all, slog.String("component", c))
	}
	all = append(all, slog.String("event", event))
	all = append(all, attrs...)
	l.LogAttrs(ctx, level, event, all...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}
