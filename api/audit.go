package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jmcleod/tablehand/internal/clock"
)

// AuditEvent identifies the type of action being logged.
type AuditEvent string

const (
	AuditLoginSuccess     AuditEvent = "login_success"
	AuditLoginFailure     AuditEvent = "login_failure"
	AuditLoginRateLimited AuditEvent = "login_rate_limited"
	AuditRefresh          AuditEvent = "refresh"
	AuditRefreshDenied    AuditEvent = "refresh_denied"
	AuditLogout           AuditEvent = "logout"
	AuditTableOpened      AuditEvent = "table_opened"
	AuditTableClosed      AuditEvent = "table_closed"
	AuditSaleClosed       AuditEvent = "sale_closed"
	AuditSaleCancelled    AuditEvent = "sale_cancelled"
	AuditPaymentRecorded  AuditEvent = "payment_recorded"
	AuditCashboxOpened    AuditEvent = "cashbox_opened"
	AuditCashboxClosed    AuditEvent = "cashbox_closed"
	AuditCheckIn          AuditEvent = "check_in"
	AuditCheckOut         AuditEvent = "check_out"
)

// auditLogger wraps slog.Logger for structured audit logging.
type auditLogger struct {
	logger  *slog.Logger
	clock   clock.Clock
	metrics *metricsCollector
	webhook *auditWebhook // nil when not configured
}

func newAuditLogger(logger *slog.Logger, clk clock.Clock, metrics *metricsCollector, webhook *auditWebhook) *auditLogger {
	return &auditLogger{
		logger:  logger.With("component", "audit"),
		clock:   clk,
		metrics: metrics,
		webhook: webhook,
	}
}

// log writes a structured audit entry.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	ts := al.clock.Now().UTC().Format(time.RFC3339)
	base := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", r.Header.Get(requestIDHeader)),
		slog.String("timestamp", ts),
	}
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", append(base, attrs...)...)
	al.metrics.recordEvent(event)

	if al.webhook != nil {
		evt := webhookEvent{
			Event:      string(event),
			RemoteAddr: r.RemoteAddr,
			RequestID:  r.Header.Get(requestIDHeader),
			Timestamp:  ts,
		}
		for _, a := range attrs {
			if a.Key == "user_id" {
				evt.UserID = a.Value.String()
				continue
			}
			if evt.Attrs == nil {
				evt.Attrs = map[string]string{}
			}
			evt.Attrs[a.Key] = a.Value.String()
		}
		al.webhook.enqueue(evt)
	}
}

// logUser is a convenience for events performed by a known user.
func (al *auditLogger) logUser(event AuditEvent, r *http.Request, userID string, extra ...slog.Attr) {
	al.log(event, r, append([]slog.Attr{slog.String("user_id", userID)}, extra...)...)
}
