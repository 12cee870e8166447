// Package metrics exposes Prometheus instrumentation shared by the bot runtime
// and the survey service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds every collector registered by the bot.
type Recorder struct {
	handlersTotal   *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	surveysStarted  prometheus.Counter
	transitions     *prometheus.CounterVec
	saves           *prometheus.CounterVec
	saveDuration    prometheus.Histogram
	dropped         *prometheus.CounterVec
	sends           *prometheus.CounterVec
	activeSessions  prometheus.GaugeFunc
}

// NewRecorder registers the collectors on reg. activeSessions may be nil.
func NewRecorder(reg prometheus.Registerer, activeSessions func() float64) *Recorder {
	f := promauto.With(reg)
	r := &Recorder{
		handlersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveybot_handler_total",
				Help: "Telegram updates handled by handler and status",
			},
			[]string{"handler", "status"},
		),
		handlerDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "surveybot_handler_duration_seconds",
				Help:    "Duration of Telegram update handlers in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler"},
		),
		surveysStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "surveybot_surveys_started_total",
			Help: "Survey sessions started",
		}),
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveybot_transitions_total",
				Help: "Survey events by type and outcome",
			},
			[]string{"event", "outcome"},
		),
		saves: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveybot_responses_saved_total",
				Help: "Completed surveys persisted by status",
			},
			[]string{"status"},
		),
		saveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "surveybot_response_save_duration_seconds",
			Help:    "Duration of response persistence including retries",
			Buckets: prometheus.DefBuckets,
		}),
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveybot_updates_dropped_total",
				Help: "Updates not answered by a handler, by reason",
			},
			[]string{"reason"},
		),
		sends: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveybot_outbound_total",
				Help: "Outbound Bot API calls by action and status",
			},
			[]string{"action", "status"},
		),
	}
	if activeSessions != nil {
		r.activeSessions = f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "surveybot_active_sessions",
			Help: "Surveys currently in progress",
		}, activeSessions)
	}
	return r
}

// ObserveHandler records one handled update.
func (r *Recorder) ObserveHandler(handler, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.handlersTotal.WithLabelValues(handler, status).Inc()
	r.handlerDuration.WithLabelValues(handler).Observe(d.Seconds())
}

// SurveyStarted counts a new session.
func (r *Recorder) SurveyStarted() {
	if r == nil {
		return
	}
	r.surveysStarted.Inc()
}

// Transition counts one survey event; outcome is ok, invalid or no_session.
func (r *Recorder) Transition(event, outcome string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(event, outcome).Inc()
}

// ResponseSaved records a persistence attempt sequence.
func (r *Recorder) ResponseSaved(success bool, d time.Duration) {
	if r == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	r.saves.WithLabelValues(status).Inc()
	r.saveDuration.Observe(d.Seconds())
}

// UpdateDropped counts an update stopped by middleware; reason is
// rate_limited or panic.
func (r *Recorder) UpdateDropped(reason string) {
	if r == nil {
		return
	}
	r.dropped.WithLabelValues(reason).Inc()
}

// Outbound counts one Bot API call made by the sender.
func (r *Recorder) Outbound(action, status string) {
	if r == nil {
		return
	}
	r.sends.WithLabelValues(action, status).Inc()
}

var (
	defaultMu  sync.RWMutex
	defaultRec *Recorder
)

// SetDefault installs the recorder used by package-level helpers.
func SetDefault(r *Recorder) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRec = r
}

// Default returns the installed recorder or nil.
func Default() *Recorder {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRec
}
