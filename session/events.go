package session

import (
	"context"
	"log/slog"
	"time"
)

// Event identifies a session lifecycle record.
type Event string

const (
	EventLoginSuccess   Event = "login_success"
	EventLoginFailure   Event = "login_failure"
	EventRefreshSuccess Event = "refresh_success"
	EventRefreshDenied  Event = "refresh_denied"
	EventRefreshFailure Event = "refresh_failure"
	EventRestored       Event = "restored"
	EventLogout         Event = "logout"
	EventTeardown       Event = "teardown"
	EventCashboxUpdated Event = "cashbox_updated"
)

type eventLogger struct {
	logger *slog.Logger
}

func newEventLogger(logger *slog.Logger) *eventLogger {
	return &eventLogger{logger: logger.With("component", "session")}
}

// log never receives token material; callers pass user ids and reasons only.
func (el *eventLogger) log(ctx context.Context, level slog.Level, event Event, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	el.logger.LogAttrs(ctx, level, "session", append(base, attrs...)...)
}
