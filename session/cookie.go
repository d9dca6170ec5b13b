package session

import (
	"net/http"
	"strings"
	"time"
)

// CookieName is the fixed name of the session cookie
const CookieName = "APP_AUTH"

// CookieConfig controls the attributes of the session cookie
type CookieConfig struct {
	// MaxAge mirrors the token TTL; the browser enforces it independently of
	// the server-side expiry check
	MaxAge time.Duration
	// Secure must only be false for plaintext local development
	Secure bool
	// SameSite is left unset by default
	SameSite http.SameSite
}

// CookieAdapter writes and reads the session cookie independently of the
// router in use. It is immutable and safe for concurrent use.
type CookieAdapter struct {
	cfg CookieConfig
}

// NewCookieAdapter creates a new CookieAdapter
func NewCookieAdapter(cfg CookieConfig) *CookieAdapter {
	return &CookieAdapter{cfg: cfg}
}

// Secure reports whether cookies are issued with the Secure attribute
func (a *CookieAdapter) Secure() bool {
	return a.cfg.Secure
}

// Attach sets the session cookie carrying token on the response
func (a *CookieAdapter) Attach(w http.ResponseWriter, token string) {
	http.SetCookie(w, a.cookie(token, int(a.cfg.MaxAge/time.Second)))
}

// Clear overwrites the session cookie with an immediately expired one.
// Tokens already handed out stay valid until their own expiry.
func (a *CookieAdapter) Clear(w http.ResponseWriter) {
	http.SetCookie(w, a.cookie("", -1))
}

// Extract returns the session token from the request, if any.
// A missing or empty cookie is not an error.
func (a *CookieAdapter) Extract(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return "", false
	}
	return value, true
}

func (a *CookieAdapter) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.cfg.Secure,
		SameSite: a.cfg.SameSite,
	}
}

// ParseSameSite maps a config string to an http.SameSite value.
// An empty string leaves the attribute off the cookie.
func ParseSameSite(value string) (http.SameSite, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return 0, true
	case "lax":
		return http.SameSiteLaxMode, true
	case "strict":
		return http.SameSiteStrictMode, true
	case "none":
		return http.SameSiteNoneMode, true
	default:
		return 0, false
	}
}
