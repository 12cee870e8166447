package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"regexp"
	"syscall"
	"time"

	tele "gopkg.in/telebot.v4"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Retryable reports failures worth another attempt: flood control, network
// timeouts, refused or reset connections and failed dials.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if retryAfter(err) > 0 {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}

func retryAfter(err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return 0
}

// Kind names the failure class for the err_code log key.
func Kind(err error) string {
	var (
		dns   *net.DNSError
		op    *net.OpError
		ne    net.Error
		alert tls.AlertError
		api   *tele.Error
		flood tele.FloodError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.As(err, &flood):
		return "FLOOD"
	case errors.As(err, &dns):
		return "DNS"
	case errors.As(err, &ne) && ne.Timeout():
		return "TIMEOUT"
	case errors.As(err, &op) && op.Op == "dial":
		return "DIAL"
	case errors.As(err, &alert):
		return "TLS"
	case errors.As(err, &api) && api.Code >= 500:
		return "HTTP_5XX"
	case errors.As(err, &api) && api.Code >= 400:
		return "HTTP_4XX"
	}
	return "UNKNOWN"
}

// Redact returns the error text with bot tokens masked.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
