package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// ErrWriterClosed is returned for lines written after Shutdown.
var ErrWriterClosed = errors.New("logger: writer closed")

// lineWriter receives encoded log lines.
type lineWriter interface {
	writeLine(level slog.Level, line []byte) error
}

// syncSink writes lines straight to w.
type syncSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncSink) writeLine(_ slog.Level, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(line)
	return err
}

// sink is one output of the async writer; lines below min are not written to it.
type sink struct {
	w   io.Writer
	min slog.Level
}

type bufferedSink struct {
	*bufio.Writer
	min slog.Level
}

// entry is either a line to write or a flush request when ack is set.
type entry struct {
	level slog.Level
	line  []byte
	ack   chan error
}

// asyncWriter moves the actual I/O off the logging goroutines. A single
// loop owns the sinks, so lines keep their submission order.
type asyncWriter struct {
	mu     sync.RWMutex
	closed bool
	queue  chan entry
	done   chan struct{}
	sinks  []bufferedSink

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(sinks []sink, queueSize int) *asyncWriter {
	if queueSize <= 0 {
		queueSize = 256
	}
	w := &asyncWriter{
		queue: make(chan entry, queueSize),
		done:  make(chan struct{}),
	}
	for _, s := range sinks {
		if s.w == nil {
			continue
		}
		w.sinks = append(w.sinks, bufferedSink{Writer: bufio.NewWriterSize(s.w, 32*1024), min: s.min})
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for e := range w.queue {
		if e.ack != nil {
			e.ack <- w.flush()
			continue
		}
		for _, s := range w.sinks {
			if e.level < s.min {
				continue
			}
			if _, err := s.Write(e.line); err != nil {
				w.setErr(err)
			}
		}
		// Flush when the queue is drained so tail lines are not held back.
		if len(w.queue) == 0 {
			if err := w.flush(); err != nil {
				w.setErr(err)
			}
		}
	}
	if err := w.flush(); err != nil {
		w.setErr(err)
	}
}

func (w *asyncWriter) writeLine(level slog.Level, line []byte) error {
	if err := w.getErr(); err != nil {
		return err
	}
	buf := make([]byte, len(line))
	copy(buf, line)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}
	w.queue <- entry{level: level, line: buf}
	return nil
}

// Flush blocks until every queued line has reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return w.getErr()
	}
	w.queue <- entry{ack: ack}
	w.mu.RUnlock()
	return <-ack
}

// Close drains the queue and returns the first write error seen.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	return w.getErr()
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, s := range w.sinks {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) getErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *asyncWriter) setErr(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
