// Package auth turns a completed federated login into a session cookie.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/upb/sessiongate/audit"
	"github.com/upb/sessiongate/config"
	"github.com/upb/sessiongate/internal/observability"
	"github.com/upb/sessiongate/middleware"
	"github.com/upb/sessiongate/models"
	"github.com/upb/sessiongate/oidc"
	"github.com/upb/sessiongate/session"
	"github.com/upb/sessiongate/token"
	"github.com/upb/sessiongate/utils"
	"go.uber.org/zap"
)

const (
	// StateCookieName is the cookie name for OAuth state (CSRF)
	StateCookieName = "oauth_state"
	// NonceCookieName is the cookie name for the ID token nonce
	NonceCookieName = "oauth_nonce"

	handshakeCookieMaxAge = 600
	auditTimeout          = 3 * time.Second
)

// IdentityProvider runs the upstream OIDC handshake
type IdentityProvider interface {
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, nonce string) (oidc.Identity, error)
}

// Minter signs session tokens
type Minter interface {
	Mint(claims token.ClaimSet, subject string) (string, error)
}

// Handler handles the login, callback and logout flows.
type Handler struct {
	redirectURL string
	provider    IdentityProvider
	minter      Minter
	cookies     *session.CookieAdapter
	recorder    audit.Recorder
	metrics     *observability.AuthMetrics
	logger      *zap.Logger
}

// NewHandler creates a new auth handler. provider is nil when OIDC is not
// configured; CompleteLogin still works without it.
func NewHandler(
	cfg config.AuthConfig,
	provider IdentityProvider,
	minter Minter,
	cookies *session.CookieAdapter,
	recorder audit.Recorder,
	metrics *observability.AuthMetrics,
	logger *zap.Logger,
) *Handler {
	if recorder == nil {
		recorder = audit.NewLogRecorder(logger)
	}
	return &Handler{
		redirectURL: cfg.RedirectSuccessURL,
		provider:    provider,
		minter:      minter,
		cookies:     cookies,
		recorder:    recorder,
		metrics:     metrics,
		logger:      logger,
	}
}

// CompleteLogin mints a session for an identity the provider has already
// verified, attaches it as the session cookie and redirects to the frontend.
func (h *Handler) CompleteLogin(w http.ResponseWriter, r *http.Request, identity oidc.Identity) {
	logger := observability.RequestLogger(h.logger, r)

	claims := token.ClaimSet{
		token.ClaimEmail: identity.Email,
		token.ClaimName:  identity.DisplayName,
	}

	signed, err := h.minter.Mint(claims, identity.Subject)
	if err != nil {
		h.metrics.TokenMinted(false)
		logger.Error("failed to mint session token", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to create session")
		return
	}
	h.metrics.TokenMinted(true)

	h.cookies.Attach(w, signed)
	h.record(r, models.AuthActionLogin, identity.Subject, identity.Email)

	logger.Info("login completed", zap.String("subject", identity.Subject))
	utils.WriteRedirect(w, r, h.redirectURL)
}

// HandleLogin redirects to the provider's authorization endpoint
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		h.logger.Error("oidc provider not configured")
		_ = utils.WriteInternalServerError(w, "Authentication not configured")
		return
	}

	state := uuid.NewString()
	nonce := uuid.NewString()
	h.setHandshakeCookie(w, StateCookieName, state, handshakeCookieMaxAge)
	h.setHandshakeCookie(w, NonceCookieName, nonce, handshakeCookieMaxAge)

	http.Redirect(w, r, h.provider.AuthCodeURL(state, nonce), http.StatusFound)
}

// HandleCallback exchanges the authorization code and completes the login
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	logger := observability.RequestLogger(h.logger, r)

	if h.provider == nil {
		logger.Error("oidc provider not configured")
		_ = utils.WriteInternalServerError(w, "Authentication not configured")
		return
	}

	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		logger.Warn("provider returned error", zap.String("error", errCode))
		_ = utils.WriteUnauthorized(w, "Authentication failed")
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" {
		_ = utils.WriteBadRequest(w, "Missing authorization code", nil)
		return
	}
	if state == "" {
		_ = utils.WriteBadRequest(w, "Missing state parameter", nil)
		return
	}

	stateCookie, err := r.Cookie(StateCookieName)
	if err != nil || stateCookie.Value != state {
		_ = utils.WriteBadRequest(w, "Invalid or expired state", nil)
		return
	}
	var nonce string
	if c, err := r.Cookie(NonceCookieName); err == nil {
		nonce = c.Value
	}

	h.setHandshakeCookie(w, StateCookieName, "", -1)
	h.setHandshakeCookie(w, NonceCookieName, "", -1)

	identity, err := h.provider.Exchange(r.Context(), code, nonce)
	if err != nil {
		logger.Warn("code exchange failed", zap.Error(err))
		_ = utils.WriteUnauthorized(w, "Authentication failed")
		return
	}

	h.CompleteLogin(w, r, identity)
}

// HandleLogout clears the session cookie. The token itself stays valid
// until it expires.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)

	if p := middleware.PrincipalFromContext(r.Context()); p.Authenticated {
		h.record(r, models.AuthActionLogout, p.Subject, p.Email)
	}

	utils.WriteNoContent(w)
}

func (h *Handler) record(r *http.Request, action models.AuthAction, subject, email string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), auditTimeout)
	defer cancel()

	if err := h.recorder.Record(ctx, audit.NewEvent(r, action, subject, email)); err != nil {
		h.logger.Warn("failed to record auth event",
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func (h *Handler) setHandshakeCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure(),
		SameSite: http.SameSiteLaxMode,
	})
}
