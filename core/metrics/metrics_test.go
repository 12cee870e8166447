package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg, func() float64 { return 3 })

	r.SurveyStarted()
	r.Transition("select_single", "ok")
	r.Transition("select_single", "ok")
	r.Transition("select_single", "invalid")
	r.ResponseSaved(true, 10*time.Millisecond)
	r.ResponseSaved(false, time.Second)
	r.ObserveHandler("start", "ok", time.Millisecond)
	r.UpdateDropped("rate_limited")
	r.Outbound("send.text", "ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.surveysStarted))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.transitions.WithLabelValues("select_single", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.saves.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.handlersTotal.WithLabelValues("start", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.activeSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.dropped.WithLabelValues("rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sends.WithLabelValues("send.text", "ok")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.SurveyStarted()
		r.Transition("x", "ok")
		r.ResponseSaved(true, 0)
		r.ObserveHandler("x", "ok", 0)
		r.UpdateDropped("panic")
		r.Outbound("x", "fail")
	})
}

func TestDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	r := NewRecorder(prometheus.NewRegistry(), nil)
	SetDefault(r)
	assert.Same(t, r, Default())
}
