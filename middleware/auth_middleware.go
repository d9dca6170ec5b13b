package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/sessiongate/internal/observability"
	"github.com/upb/sessiongate/session"
	"github.com/upb/sessiongate/token"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating session tokens
type TokenValidator interface {
	// Validate verifies the token and returns its claims
	Validate(raw string) (token.ClaimSet, error)
}

// Authenticator resolves the caller's Principal from the session cookie
type Authenticator struct {
	cookies   *session.CookieAdapter
	validator TokenValidator
	metrics   *observability.AuthMetrics
	logger    *zap.Logger
}

// NewAuthenticator creates a new Authenticator. metrics may be nil.
func NewAuthenticator(
	cookies *session.CookieAdapter,
	validator TokenValidator,
	metrics *observability.AuthMetrics,
	logger *zap.Logger,
) *Authenticator {
	return &Authenticator{
		cookies:   cookies,
		validator: validator,
		metrics:   metrics,
		logger:    logger,
	}
}

// Resolve returns the authenticated principal for a valid session cookie
// and the anonymous principal in every other case.
func (a *Authenticator) Resolve(r *http.Request) Principal {
	raw, ok := a.cookies.Extract(r)
	if !ok {
		a.metrics.TokenValidated(observability.ValidationAbsent)
		return Anonymous()
	}

	claims, err := a.validator.Validate(raw)
	if err != nil {
		result := validationResult(err)
		a.metrics.TokenValidated(result)
		a.logger.Debug("session cookie rejected",
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.String("reason", result))
		return Anonymous()
	}

	a.metrics.TokenValidated(observability.ValidationOK)
	return Principal{
		Subject:       claims.Subject(),
		Email:         claims.Email(),
		DisplayName:   claims.Name(),
		Authenticated: true,
	}
}

// Authenticate stores the resolved principal in the request context.
// It never rejects a request; RoutePolicy.Enforce does that.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := a.Resolve(r)
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func validationResult(err error) string {
	switch token.KindOf(err) {
	case token.KindExpired:
		return observability.ValidationExpired
	case token.KindBadSignature:
		return observability.ValidationBadSignature
	default:
		return observability.ValidationMalformed
	}
}
