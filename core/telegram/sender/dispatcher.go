// Package sender delivers outbound Bot API calls off the update goroutine.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vldos/telegram-survey-bot/core/logger"
	"github.com/vldos/telegram-survey-bot/core/metrics"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the chat's lane has no room left.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options size the dispatcher. Zero values take defaults.
type Options struct {
	// QueueSize is shared evenly between the workers.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on one call including retries.
	MaxDuration time.Duration
}

func (o *Options) defaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
}

type job struct {
	ctx    context.Context
	action string
	call   func() error
}

// Dispatcher runs calls on a fixed set of workers. Every chat is pinned to
// one worker lane, so prompts reach a respondent in the order they were
// produced.
type Dispatcher struct {
	opts   Options
	lanes  []chan job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	failed atomic.Uint64
	rr     atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts.defaults()
	depth := max(opts.QueueSize/opts.Workers, 1)
	d := &Dispatcher{opts: opts, lanes: make([]chan job, opts.Workers)}
	d.wg.Add(len(d.lanes))
	for i := range d.lanes {
		d.lanes[i] = make(chan job, depth)
		go d.work(d.lanes[i])
	}
	return d
}

// Enqueue schedules call. It must be safe to repeat when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, action string, call func() error) error {
	if call == nil {
		return errors.New("telegram sender: nil call")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.lanes[d.laneOf(ctx)] <- job{ctx: ctx, action: action, call: call}:
		return nil
	default:
		return ErrQueueFull
	}
}

// laneOf picks the chat's lane, falling back to the user and then to round
// robin for calls without either.
func (d *Dispatcher) laneOf(ctx context.Context) int {
	key := logger.ChatIDFrom(ctx)
	if key == 0 {
		key = logger.UserIDFrom(ctx)
	}
	n := uint64(len(d.lanes))
	if key == 0 {
		return int(d.rr.Add(1) % n)
	}
	return int(uint64(key) % n)
}

// Failed returns how many calls gave up.
func (d *Dispatcher) Failed() uint64 { return d.failed.Load() }

// Close stops accepting calls and waits for queued ones to finish. It is
// safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, lane := range d.lanes {
			close(lane)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(lane <-chan job) {
	defer d.wg.Done()
	for j := range lane {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.call(); err == nil {
			if attempt > 1 {
				logger.Info(j.ctx, "tg.sender", "send.recovered",
					slog.String("status", "ok"),
					slog.String("op", j.action),
					slog.Int("attempt", attempt),
					slog.Duration("duration", time.Since(start)),
				)
			}
			metrics.Default().Outbound(j.action, "ok")
			return
		}
		if attempt == attempts || !Retryable(err) {
			break
		}
		delay := d.backoff(attempt, err)
		logger.Debug(j.ctx, "tg.sender", "send.retry",
			slog.String("status", "retry"),
			slog.String("op", j.action),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
		)
		if !sleep(ctx, delay) {
			err = ctx.Err()
			break
		}
	}

	d.failed.Add(1)
	metrics.Default().Outbound(j.action, "fail")
	logger.Error(j.ctx, "tg.sender", "send.fail",
		slog.String("status", "fail"),
		slog.String("op", j.action),
		slog.String("err", Redact(err)),
		slog.String("err_code", Kind(err)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", time.Since(start)),
	)
}

// backoff grows linearly with the attempt; flood control replies carry
// their own wait.
func (d *Dispatcher) backoff(attempt int, err error) time.Duration {
	if wait := retryAfter(err); wait > 0 {
		return wait
	}
	return d.opts.RetryBackoff * time.Duration(attempt)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
