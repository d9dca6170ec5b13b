package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthAction represents the session lifecycle step being audited
type AuthAction string

const (
	AuthActionLogin  AuthAction = "login"
	AuthActionLogout AuthAction = "logout"
)

// IsValid reports whether the action is a known value
func (a AuthAction) IsValid() bool {
	switch a {
	case AuthActionLogin, AuthActionLogout:
		return true
	}
	return false
}

// AuthEvent is one entry of the login audit trail.
// It never carries token values.
type AuthEvent struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Action    AuthAction `json:"action" db:"action"`
	Subject   string     `json:"subject" db:"subject"`
	Email     string     `json:"email" db:"email"`
	IPAddress string     `json:"ip_address" db:"ip_address"`
	UserAgent string     `json:"user_agent" db:"user_agent"`
	RequestID string     `json:"request_id" db:"request_id"`
	Timestamp time.Time  `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for auth events
func (AuthEvent) TableName() string {
	return "auth_events"
}
