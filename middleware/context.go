package middleware

import (
	"context"
)

// Context key type to avoid collisions
type contextKey string

// PrincipalKey is the context key for the resolved Principal
const PrincipalKey contextKey = "principal"

// Principal is the identity resolved for one request.
// The zero value is the anonymous principal.
type Principal struct {
	Subject       string `json:"subject,omitempty"`
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// Anonymous returns the unauthenticated principal
func Anonymous() Principal {
	return Principal{}
}

// WithPrincipal stores the principal in the context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// PrincipalFromContext returns the principal stored by Authenticate,
// or the anonymous principal when none was stored.
func PrincipalFromContext(ctx context.Context) Principal {
	if val := ctx.Value(PrincipalKey); val != nil {
		if p, ok := val.(Principal); ok {
			return p
		}
	}
	return Anonymous()
}
