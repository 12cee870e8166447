package telegram

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedTransport struct {
	errs   []error
	calls  int
	bodies []string
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls++
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		s.bodies = append(s.bodies, string(b))
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func TestRetryTransportReplaysBody(t *testing.T) {
	dial := &net.OpError{Op: "dial", Err: errors.New("refused")}
	next := &scriptedTransport{errs: []error{dial, dial}}
	rt := &retryTransport{next: next, retries: 3, backoff: time.Millisecond}

	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/x", strings.NewReader("chat_id=1"))
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, []string{"chat_id=1", "chat_id=1", "chat_id=1"}, next.bodies)
}

func TestRetryTransportStopsOnPermanentErrors(t *testing.T) {
	next := &scriptedTransport{errs: []error{errors.New("bad certificate")}}
	rt := &retryTransport{next: next, retries: 3, backoff: time.Millisecond}

	req, err := http.NewRequest(http.MethodGet, "https://api.telegram.org/x", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	assert.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestNewHTTPClientDefaults(t *testing.T) {
	c := NewHTTPClient(ClientOptions{})
	assert.Equal(t, defaultClientTimeout, c.Timeout)
	rt, ok := c.Transport.(*retryTransport)
	require.True(t, ok)
	assert.Equal(t, defaultRetries, rt.retries)
}
