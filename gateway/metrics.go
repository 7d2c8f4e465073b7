package gateway

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmcleod/tablehand/internal/clock"
)

type metrics struct {
	requests  *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	teardowns prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tablehand",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Outbound requests by method and final outcome",
			},
			[]string{"method", "outcome"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tablehand",
				Subsystem: "gateway",
				Name:      "refreshes_total",
				Help:      "Credential renewals requested after a 401, by result",
			},
			[]string{"result"},
		),
		teardowns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tablehand",
				Subsystem: "gateway",
				Name:      "teardowns_total",
				Help:      "Sessions torn down after a second 401",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.refreshes, m.teardowns)
	}
	return m
}

// AlertType identifies the kind of anomaly detected.
type AlertType string

const AlertUnauthorizedSpike AlertType = "unauthorized_spike"

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

const (
	defaultUnauthorizedWindow    = time.Minute
	defaultUnauthorizedThreshold = 20
)

// unauthorizedWindow raises an alert when too many 401s arrive within a
// sliding window, which usually means the backend is rotating keys or the
// clock is off.
type unauthorizedWindow struct {
	mu        sync.Mutex
	seen      []time.Time
	window    time.Duration
	threshold int
	clock     clock.Clock
	alertFn   AlertFunc
}

func newUnauthorizedWindow(alertFn AlertFunc, clk clock.Clock, window time.Duration, threshold int) *unauthorizedWindow {
	if window <= 0 {
		window = defaultUnauthorizedWindow
	}
	if threshold <= 0 {
		threshold = defaultUnauthorizedThreshold
	}
	return &unauthorizedWindow{window: window, threshold: threshold, clock: clk, alertFn: alertFn}
}

func (w *unauthorizedWindow) record() {
	if w == nil || w.alertFn == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	w.seen = append(w.seen, now)
	w.seen = trimWindow(w.seen, now, w.window)
	if len(w.seen) >= w.threshold {
		w.alertFn(AlertEvent{
			Type:      AlertUnauthorizedSpike,
			Message:   "401 rate exceeds threshold",
			Count:     len(w.seen),
			Threshold: w.threshold,
			Timestamp: now,
		})
		// Reset to avoid repeated alerts within the same spike.
		w.seen = w.seen[:0]
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
