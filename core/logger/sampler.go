package logger

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets through num out of every den calls.
type sampler struct {
	num, den atomic.Int64
	seq      atomic.Uint64
}

var debugSampler = func() *sampler {
	s := &sampler{}
	s.set(1, 50)
	return s
}()

func (s *sampler) set(num, den int) {
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	if num > den {
		num = den
	}
	s.num.Store(int64(num))
	s.den.Store(int64(den))
	s.seq.Store(0)
}

func (s *sampler) allow() bool {
	den := s.den.Load()
	if den <= 0 {
		return true
	}
	n := s.seq.Add(1) - 1
	return int64(n%uint64(den)) < s.num.Load()
}

// parseRatio reads "n/m" or "m" (meaning 1/m). Anything else disables
// sampling.
func parseRatio(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if num, den, ok := strings.Cut(spec, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
			return 0, 0
		}
		return n, d
	}
	d, err := strconv.Atoi(spec)
	if err != nil || d <= 0 {
		return 0, 0
	}
	return 1, d
}

// ShouldSampleDebug reports whether a high-volume debug event should be
// logged. LOG_TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	switch strings.ToLower(os.Getenv("LOG_TRACE")) {
	case "1", "true", "on", "yes":
		return true
	}
	return debugSampler.allow()
}
