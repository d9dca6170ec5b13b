// Package audit records login and logout events off the validation path.
package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/upb/sessiongate/models"
	"go.uber.org/zap"
)

// Recorder persists auth events
type Recorder interface {
	Record(ctx context.Context, event *models.AuthEvent) error
}

// NewEvent builds an event for the request. RemoteAddr is expected to have
// been rewritten by chi's RealIP middleware when running behind a proxy.
func NewEvent(r *http.Request, action models.AuthAction, subject, email string) *models.AuthEvent {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return &models.AuthEvent{
		ID:        uuid.New(),
		Action:    action,
		Subject:   subject,
		Email:     email,
		IPAddress: ip,
		UserAgent: r.UserAgent(),
		RequestID: chimiddleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

// LogRecorder writes events to the structured log. Used when no audit
// database is configured.
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder creates a new LogRecorder
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

// Record logs the event at info level
func (l *LogRecorder) Record(_ context.Context, event *models.AuthEvent) error {
	l.logger.Info("auth event",
		zap.String("event_id", event.ID.String()),
		zap.String("action", string(event.Action)),
		zap.String("subject", event.Subject),
		zap.String("ip_address", event.IPAddress),
		zap.String("request_id", event.RequestID),
		zap.Time("timestamp", event.Timestamp))
	return nil
}
