package postgres

import (
	"context"
	"fmt"

	"github.com/upb/sessiongate/models"
	"github.com/upb/sessiongate/repositories"
	"go.uber.org/zap"
)

var _ repositories.AuthEventRepository = (*AuthEventRepository)(nil)

// AuthEventRepository stores auth events in the auth_events table.
// It satisfies audit.Recorder.
type AuthEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuthEventRepository creates a new auth event repository
func NewAuthEventRepository(db *DB, logger *zap.Logger) *AuthEventRepository {
	return &AuthEventRepository{
		db:     db,
		logger: logger,
	}
}

// Record inserts one event
func (r *AuthEventRepository) Record(ctx context.Context, event *models.AuthEvent) error {
	if !event.Action.IsValid() {
		return fmt.Errorf("invalid auth action %q", event.Action)
	}

	query := `
		INSERT INTO auth_events (
			id, action, subject, email, ip_address, user_agent, request_id, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Action,
		event.Subject,
		event.Email,
		event.IPAddress,
		event.UserAgent,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}

	r.logger.Debug("auth event inserted",
		zap.String("id", event.ID.String()),
		zap.String("action", string(event.Action)))
	return nil
}

// ListBySubject returns the most recent events for subject, newest first
func (r *AuthEventRepository) ListBySubject(ctx context.Context, subject string, limit int) ([]*models.AuthEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, action, subject, email, ip_address, user_agent, request_id, timestamp
		FROM auth_events
		WHERE subject = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list auth events: %w", err)
	}
	defer rows.Close()

	var events []*models.AuthEvent
	for rows.Next() {
		event := &models.AuthEvent{}
		if err := rows.Scan(
			&event.ID,
			&event.Action,
			&event.Subject,
			&event.Email,
			&event.IPAddress,
			&event.UserAgent,
			&event.RequestID,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate auth events: %w", err)
	}

	return events, nil
}
