package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the checkpoint daemon.
// Tracks frame decoding, scan outcomes, shift transitions and roster freshness.
type Metrics struct {
	FramesTotal           *prometheus.CounterVec
	DecodeDuration        prometheus.Histogram
	ScansTotal            *prometheus.CounterVec
	TransitionsTotal      *prometheus.CounterVec
	RosterRefreshTotal    *prometheus.CounterVec
	RosterRefreshDuration prometheus.Histogram
	RosterSize            prometheus.Gauge
	NotificationsTotal    *prometheus.CounterVec
}

// New creates a new Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_frames_total",
			Help: "Total number of camera frames processed, by whether a code was decoded",
		}, []string{"decoded"}),
		DecodeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkpoint_frame_decode_duration_seconds",
			Help:    "Time spent decoding a single frame",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.016, 0.025, 0.05, 0.1, 0.25},
		}),
		ScansTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_scans_total",
			Help: "Total number of resolved scans, by feedback kind",
		}, []string{"result"}),
		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_transitions_total",
			Help: "Total number of shift transitions attempted, by action and result",
		}, []string{"action", "result"}),
		RosterRefreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_roster_refresh_total",
			Help: "Total number of roster refreshes, by result",
		}, []string{"result"}),
		RosterRefreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkpoint_roster_refresh_duration_seconds",
			Help:    "Duration of roster fetches from the fleet API",
			Buckets: prometheus.DefBuckets,
		}),
		RosterSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "checkpoint_roster_size",
			Help: "Number of drivers in the last successfully fetched roster",
		}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_notifications_total",
			Help: "Total number of notifications sent, by channel and result",
		}, []string{"channel", "result"}),
	}
}

// ObserveFrame records one decoded frame.
func (m *Metrics) ObserveFrame(decoded bool, took time.Duration) {
	m.FramesTotal.WithLabelValues(strconv.FormatBool(decoded)).Inc()
	m.DecodeDuration.Observe(took.Seconds())
}

// ObserveRosterRefresh records one roster fetch.
func (m *Metrics) ObserveRosterRefresh(size int, err error, took time.Duration) {
	m.RosterRefreshDuration.Observe(took.Seconds())
	if err != nil {
		m.RosterRefreshTotal.WithLabelValues("error").Inc()
		return
	}
	m.RosterRefreshTotal.WithLabelValues("success").Inc()
	m.RosterSize.Set(float64(size))
}

// ObserveScan records the feedback kind of a resolved scan and, when a transition was
// decided, its action.
func (m *Metrics) ObserveScan(result, action string) {
	m.ScansTotal.WithLabelValues(result).Inc()
	if action != "" {
		m.TransitionsTotal.WithLabelValues(action, result).Inc()
	}
}

// ObserveNotification records one notification delivery attempt.
func (m *Metrics) ObserveNotification(channel string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.NotificationsTotal.WithLabelValues(channel, result).Inc()
}
