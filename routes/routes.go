package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/sessiongate/app"
	"github.com/upb/sessiongate/handlers"
	"github.com/upb/sessiongate/internal/observability"
	"github.com/upb/sessiongate/utils"
)

// SetupRoutes configures all application routes and middleware.
//
// Every request passes through the authenticator, which only resolves the
// principal, and then the route policy, which is the single place that
// rejects unauthenticated callers.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.AccessLog(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(deps.Metrics.Instrument)
	r.Use(middleware.Timeout(cfg.Transcription.Timeout + 15*time.Second))

	// CORS middleware; credentials are required for the session cookie
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Session
	r.Use(deps.Authenticator.Authenticate)
	r.Use(deps.Policy.Enforce)

	// Health check endpoints
	health := handlers.NewHealthHandler(deps.HealthChecker(), deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	// OIDC login flow
	r.Get("/oauth2/authorization/oidc", deps.AuthHandler.HandleLogin)
	r.Get("/login/oauth2/code/oidc", deps.AuthHandler.HandleCallback)

	r.Get("/", handlers.HelloHandler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/hello", handlers.HelloHandler())
		r.Get("/public", handlers.PublicHandler())

		r.Get("/logout", deps.AuthHandler.HandleLogout)
		r.Post("/logout", deps.AuthHandler.HandleLogout)

		r.Get("/me", handlers.CurrentUserHandler())
		if deps.AuthEvents != nil {
			r.Get("/me/activity", handlers.ActivityHandler(deps.AuthEvents, deps.Logger))
		}

		transcribe := handlers.NewTranscriptionHandler(deps.Transcriber, cfg.Transcription.MaxUploadBytes, deps.Logger)
		r.Post("/transcribe", transcribe.HandleTranscribe)
		r.Get("/transcribe/health", transcribe.HandleHealth)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusNotFound, "endpoint not found", nil)
	})

	return r
}
