package telegram

import (
	"errors"
	"net"
	"net/http"
	"time"

	tgsender "github.com/vldos/telegram-survey-bot/core/telegram/sender"
)

// ClientOptions tune the HTTP client used for Bot API calls. Zero values
// take the defaults below.
type ClientOptions struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

const (
	defaultClientTimeout = 30 * time.Second
	defaultRetries       = 3
	defaultBackoff       = 2 * time.Second
)

// NewHTTPClient returns a client with bounded dial and header timeouts that
// retries requests failing before a response arrives.
func NewHTTPClient(opts ClientOptions) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultClientTimeout
	}
	if opts.Retries <= 0 {
		opts.Retries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: &retryTransport{next: base, retries: opts.Retries, backoff: opts.Backoff},
	}
}

// retryTransport repeats a request after transport failures. Responses, even
// 5xx ones, are returned as is: telebot reads Bot API errors from the body.
type retryTransport struct {
	next    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var err error
	for attempt := 0; ; attempt++ {
		r := req
		if attempt > 0 {
			if r, err = rewind(req); err != nil {
				return nil, err
			}
		}
		var resp *http.Response
		resp, err = t.next.RoundTrip(r)
		if err == nil || attempt >= t.retries || !tgsender.Retryable(err) {
			return resp, err
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(t.backoff * time.Duration(attempt+1)):
		}
	}
}

// rewind clones req with a fresh body.
func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("telegram: request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	r.Body = body
	return r, nil
}
