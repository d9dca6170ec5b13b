package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/upb/sessiongate/middleware"
	"github.com/upb/sessiongate/models"
	"github.com/upb/sessiongate/utils"
	"go.uber.org/zap"
)

// MessageResponse is the body of the greeting endpoints
type MessageResponse struct {
	Message string `json:"message"`
}

// HelloHandler handles GET /api/hello
func HelloHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Hello from sessiongate"})
	}
}

// PublicHandler handles GET /api/public
func PublicHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, http.StatusOK, MessageResponse{Message: "This endpoint is public"})
	}
}

// CurrentUserHandler handles GET /api/me. The route policy guarantees an
// authenticated principal; the check here guards against misrouting.
func CurrentUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := middleware.PrincipalFromContext(r.Context())
		if !p.Authenticated {
			_ = utils.WriteUnauthorized(w, "")
			return
		}
		_ = utils.WriteJSON(w, http.StatusOK, p)
	}
}

// ActivityLister reads the caller's audit trail
type ActivityLister interface {
	ListBySubject(ctx context.Context, subject string, limit int) ([]*models.AuthEvent, error)
}

// ActivityResponse is the body of GET /api/me/activity
type ActivityResponse struct {
	Events []*models.AuthEvent `json:"events"`
}

// ActivityHandler handles GET /api/me/activity?limit=N
func ActivityHandler(lister ActivityLister, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := middleware.PrincipalFromContext(r.Context())
		if !p.Authenticated {
			_ = utils.WriteUnauthorized(w, "")
			return
		}

		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 100 {
				_ = utils.WriteBadRequest(w, "limit must be between 1 and 100", nil)
				return
			}
			limit = n
		}

		events, err := lister.ListBySubject(r.Context(), p.Subject, limit)
		if err != nil {
			logger.Error("failed to list auth events", zap.Error(err))
			_ = utils.WriteInternalServerError(w, "")
			return
		}
		if events == nil {
			events = []*models.AuthEvent{}
		}
		_ = utils.WriteJSON(w, http.StatusOK, ActivityResponse{Events: events})
	}
}
