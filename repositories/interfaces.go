package repositories

import (
	"context"

	"github.com/upb/sessiongate/models"
)

// AuthEventRepository handles the login audit trail.
// It is write-mostly and never consulted when validating a session.
type AuthEventRepository interface {
	// Record appends an event
	Record(ctx context.Context, event *models.AuthEvent) error

	// ListBySubject returns the most recent events for subject, newest first
	ListBySubject(ctx context.Context, subject string, limit int) ([]*models.AuthEvent, error)
}
