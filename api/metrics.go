package api

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmcleod/tablehand/internal/clock"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertLoginFailureSpike AlertType = "login_failure_spike"
	AlertRefreshReuse      AlertType = "refresh_reuse_spike"
)

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

// metricsCollector counts audit events for Prometheus and keeps sliding
// windows for anomaly alerts.
type metricsCollector struct {
	mu    sync.Mutex
	clock clock.Clock

	events *prometheus.CounterVec

	loginFailures  []time.Time
	loginWindow    time.Duration
	loginThreshold int

	// Refresh tokens presented after they were consumed or revoked.
	refreshRejects   []time.Time
	refreshWindow    time.Duration
	refreshThreshold int

	alertFn AlertFunc
}

const (
	defaultLoginFailureWindow    = 1 * time.Minute
	defaultLoginFailureThreshold = 50
	defaultRefreshWindow         = 5 * time.Minute
	defaultRefreshThreshold      = 20
)

func newMetricsCollector(alertFn AlertFunc, clk clock.Clock, reg prometheus.Registerer) *metricsCollector {
	if clk == nil {
		clk = clock.Real()
	}
	m := &metricsCollector{
		clock: clk,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tablehand",
			Subsystem: "api",
			Name:      "audit_events_total",
			Help:      "Audit events by type.",
		}, []string{"event"}),
		loginWindow:      defaultLoginFailureWindow,
		loginThreshold:   defaultLoginFailureThreshold,
		refreshWindow:    defaultRefreshWindow,
		refreshThreshold: defaultRefreshThreshold,
		alertFn:          alertFn,
	}
	if reg != nil {
		reg.MustRegister(m.events)
	}
	return m
}

// recordEvent counts an audit event and updates the alert windows.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(event)).Inc()
	if m.alertFn == nil {
		return
	}
	switch event {
	case AuditLoginFailure:
		m.record(&m.loginFailures, m.loginWindow, m.loginThreshold,
			AlertLoginFailureSpike, "login failure rate exceeds threshold")
	case AuditRefreshDenied:
		m.record(&m.refreshRejects, m.refreshWindow, m.refreshThreshold,
			AlertRefreshReuse, "rejected refresh rate exceeds threshold")
	}
}

func (m *metricsCollector) record(window *[]time.Time, span time.Duration, threshold int, typ AlertType, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	*window = trimWindow(append(*window, now), now, span)
	if len(*window) >= threshold {
		m.alertFn(AlertEvent{
			Type:      typ,
			Message:   msg,
			Count:     len(*window),
			Threshold: threshold,
			Timestamp: now,
		})
		// Reset to avoid repeated alerts within the same spike.
		*window = (*window)[:0]
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
