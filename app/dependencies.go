package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/upb/sessiongate/audit"
	"github.com/upb/sessiongate/auth"
	"github.com/upb/sessiongate/config"
	"github.com/upb/sessiongate/handlers"
	"github.com/upb/sessiongate/internal/observability"
	"github.com/upb/sessiongate/middleware"
	"github.com/upb/sessiongate/oidc"
	"github.com/upb/sessiongate/repositories"
	"github.com/upb/sessiongate/repositories/postgres"
	"github.com/upb/sessiongate/session"
	"github.com/upb/sessiongate/token"
	"github.com/upb/sessiongate/transcription"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config   *config.Config
	Logger   *zap.Logger
	DB       *postgres.DB // nil when no audit database is configured
	Registry *prometheus.Registry
	Metrics  *observability.AuthMetrics

	// Session
	Codec   *token.Codec
	Cookies *session.CookieAdapter

	// Audit
	Recorder   audit.Recorder
	AuthEvents repositories.AuthEventRepository // nil without a database

	// Auth
	Provider      *oidc.Provider // nil when OIDC is not configured
	Authenticator *middleware.Authenticator
	Policy        *middleware.RoutePolicy
	AuthHandler   *auth.Handler

	// Transcription
	Transcriber *transcription.Client
}

// NewDependencies creates and wires up all application dependencies.
// Neither the database nor the OIDC provider is required; without them the
// audit trail goes to the log and the login endpoints answer 500.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initMetrics()

	if err := deps.initSession(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initAuth(ctx, cfg); err != nil {
		deps.closeDB()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	deps.initTranscription(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initMetrics() {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = observability.NewAuthMetrics(d.Registry)
}

func (d *Dependencies) initSession(cfg *config.Config) error {
	codec, err := token.NewCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL())
	if err != nil {
		return err
	}
	d.Codec = codec
	d.Cookies = session.NewCookieAdapter(session.CookieConfig{
		MaxAge:   codec.TTL(),
		Secure:   cfg.Auth.CookieSecure,
		SameSite: cfg.Auth.SameSite(),
	})

	if !d.Cookies.Secure() {
		d.Logger.Warn("session cookie issued without the Secure attribute; use only for local plaintext development")
	}
	return nil
}

// initDatabase opens the audit database when one is configured
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if !cfg.Database.Enabled() {
		d.Logger.Info("no database configured, auth events go to the log")
		d.Recorder = audit.NewLogRecorder(d.Logger)
		return nil
	}

	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return err
	}

	repo := postgres.NewAuthEventRepository(db, d.Logger)
	d.DB = db
	d.AuthEvents = repo
	d.Recorder = repo
	return nil
}

func (d *Dependencies) initAuth(ctx context.Context, cfg *config.Config) error {
	d.Authenticator = middleware.NewAuthenticator(d.Cookies, d.Codec, d.Metrics, d.Logger)

	policy, err := middleware.NewRoutePolicy(middleware.DefaultRules(), d.Metrics, d.Logger)
	if err != nil {
		return err
	}
	d.Policy = policy

	var identityProvider auth.IdentityProvider
	if cfg.OIDC.Enabled() {
		provider, err := oidc.NewProvider(ctx, oidc.Config{
			IssuerURL:    cfg.OIDC.IssuerURL,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURI:  cfg.OIDC.RedirectURI,
			Scopes:       cfg.OIDC.Scopes,
		}, d.Logger)
		if err != nil {
			return err
		}
		d.Provider = provider
		identityProvider = provider
	} else {
		d.Logger.Warn("oidc not configured, login endpoints disabled")
	}

	d.AuthHandler = auth.NewHandler(cfg.Auth, identityProvider, d.Codec, d.Cookies, d.Recorder, d.Metrics, d.Logger)
	d.Logger.Info("auth handler initialized", zap.Bool("oidc_enabled", d.Provider != nil))
	return nil
}

func (d *Dependencies) initTranscription(cfg *config.Config) {
	d.Transcriber = transcription.NewClient(transcription.Config{
		APIKey:   cfg.Transcription.APIKey,
		BaseURL:  cfg.Transcription.BaseURL,
		Model:    cfg.Transcription.Model,
		Language: cfg.Transcription.Language,
		Timeout:  cfg.Transcription.Timeout,
	}, d.Logger)

	if !d.Transcriber.Configured() {
		d.Logger.Warn("OPENAI_API_KEY not set, transcription requests will fail")
	}
}

// HealthChecker returns the readiness probe target, or nil without a database
func (d *Dependencies) HealthChecker() handlers.HealthChecker {
	if d.DB == nil {
		return nil
	}
	return d.DB
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

func (d *Dependencies) closeDB() {
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
