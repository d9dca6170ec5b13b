package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/sessiongate/auth"
	"github.com/upb/sessiongate/config"
	"github.com/upb/sessiongate/internal/observability"
	"github.com/upb/sessiongate/middleware"
	"github.com/upb/sessiongate/models"
	"github.com/upb/sessiongate/oidc"
	"github.com/upb/sessiongate/session"
	"github.com/upb/sessiongate/token"
	"go.uber.org/zap"
)

const redirectURL = "http://localhost:5173/auth/callback"

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// MockIdentityProvider mocks the OIDC handshake
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) AuthCodeURL(state, nonce string) string {
	return m.Called(state, nonce).String(0)
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, code, nonce string) (oidc.Identity, error) {
	args := m.Called(ctx, code, nonce)
	return args.Get(0).(oidc.Identity), args.Error(1)
}

// MockRecorder mocks the audit recorder
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, event *models.AuthEvent) error {
	return m.Called(ctx, event).Error(0)
}

func eventFor(action models.AuthAction, subject string) interface{} {
	return mock.MatchedBy(func(e *models.AuthEvent) bool {
		return e.Action == action && e.Subject == subject
	})
}

type fixture struct {
	handler  *auth.Handler
	codec    *token.Codec
	provider *MockIdentityProvider
	recorder *MockRecorder
	registry *prometheus.Registry
}

func newFixture(t *testing.T, minter auth.Minter) *fixture {
	t.Helper()

	codec, err := token.NewCodec(testSecret, 120*time.Minute)
	require.NoError(t, err)
	if minter == nil {
		minter = codec
	}

	f := &fixture{
		codec:    codec,
		provider: new(MockIdentityProvider),
		recorder: new(MockRecorder),
		registry: prometheus.NewRegistry(),
	}
	cookies := session.NewCookieAdapter(session.CookieConfig{MaxAge: codec.TTL(), Secure: true})
	f.handler = auth.NewHandler(
		config.AuthConfig{RedirectSuccessURL: redirectURL},
		f.provider,
		minter,
		cookies,
		f.recorder,
		observability.NewAuthMetrics(f.registry),
		zap.NewNop(),
	)
	return f
}

func cookiesNamed(resp *http.Response, name string) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func TestCompleteLogin(t *testing.T) {
	t.Run("sets exactly one session cookie and redirects", func(t *testing.T) {
		f := newFixture(t, nil)
		f.recorder.On("Record", mock.Anything, eventFor(models.AuthActionLogin, "u1")).Return(nil)

		req := httptest.NewRequest(http.MethodGet, "/login/oauth2/code/oidc", nil)
		rec := httptest.NewRecorder()
		f.handler.CompleteLogin(rec, req, oidc.Identity{Subject: "u1", Email: "a@b.com", DisplayName: "Ann"})

		resp := rec.Result()
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, redirectURL, resp.Header.Get("Location"))
		require.Len(t, rec.Header().Values("Set-Cookie"), 1)

		cookies := cookiesNamed(resp, session.CookieName)
		require.Len(t, cookies, 1)
		c := cookies[0]
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, 7200, c.MaxAge)

		claims, err := f.codec.Validate(c.Value)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.Subject())
		assert.Equal(t, "a@b.com", claims.Email())
		assert.Equal(t, "Ann", claims.Name())

		count, err := testutil.GatherAndCount(f.registry, "sessiongate_tokens_minted_total")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		f.recorder.AssertExpectations(t)
	})

	t.Run("mint failure returns 500 without cookie", func(t *testing.T) {
		f := newFixture(t, &token.Codec{})

		req := httptest.NewRequest(http.MethodGet, "/login/oauth2/code/oidc", nil)
		rec := httptest.NewRecorder()
		f.handler.CompleteLogin(rec, req, oidc.Identity{Subject: "u1", Email: "a@b.com"})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, rec.Header().Values("Set-Cookie"))
		assert.Contains(t, rec.Body.String(), "internal_error")
		f.recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	})

	t.Run("audit failure does not affect the response", func(t *testing.T) {
		f := newFixture(t, nil)
		f.recorder.On("Record", mock.Anything, mock.Anything).Return(errors.New("db down"))

		req := httptest.NewRequest(http.MethodGet, "/login/oauth2/code/oidc", nil)
		rec := httptest.NewRecorder()
		f.handler.CompleteLogin(rec, req, oidc.Identity{Subject: "u1", Email: "a@b.com"})

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Len(t, cookiesNamed(rec.Result(), session.CookieName), 1)
	})
}

func TestHandleLogin(t *testing.T) {
	t.Run("stores state and nonce and redirects to provider", func(t *testing.T) {
		f := newFixture(t, nil)
		f.provider.On("AuthCodeURL", mock.Anything, mock.Anything).Return("https://idp.example.com/authorize?client_id=x")

		rec := httptest.NewRecorder()
		f.handler.HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/oauth2/authorization/oidc", nil))

		resp := rec.Result()
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://idp.example.com/authorize?client_id=x", resp.Header.Get("Location"))

		state := cookiesNamed(resp, auth.StateCookieName)
		nonce := cookiesNamed(resp, auth.NonceCookieName)
		require.Len(t, state, 1)
		require.Len(t, nonce, 1)
		assert.NotEmpty(t, state[0].Value)
		assert.NotEqual(t, state[0].Value, nonce[0].Value)
		assert.Equal(t, 600, state[0].MaxAge)
		assert.Equal(t, http.SameSiteLaxMode, state[0].SameSite)
		assert.True(t, state[0].HttpOnly)

		f.provider.AssertCalled(t, "AuthCodeURL", state[0].Value, nonce[0].Value)
		assert.Empty(t, cookiesNamed(resp, session.CookieName))
	})

	t.Run("provider not configured", func(t *testing.T) {
		cookies := session.NewCookieAdapter(session.CookieConfig{MaxAge: time.Hour})
		h := auth.NewHandler(config.AuthConfig{RedirectSuccessURL: redirectURL}, nil, &token.Codec{}, cookies, nil, nil, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/oauth2/authorization/oidc", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func callbackRequest(query string, state, nonce string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/login/oauth2/code/oidc?"+query, nil)
	if state != "" {
		req.AddCookie(&http.Cookie{Name: auth.StateCookieName, Value: state})
	}
	if nonce != "" {
		req.AddCookie(&http.Cookie{Name: auth.NonceCookieName, Value: nonce})
	}
	return req
}

func TestHandleCallback(t *testing.T) {
	identity := oidc.Identity{Subject: "u1", Email: "a@b.com", DisplayName: "Ann"}

	t.Run("successful exchange completes login", func(t *testing.T) {
		f := newFixture(t, nil)
		f.provider.On("Exchange", mock.Anything, "abc", "n1").Return(identity, nil)
		f.recorder.On("Record", mock.Anything, eventFor(models.AuthActionLogin, "u1")).Return(nil)

		rec := httptest.NewRecorder()
		f.handler.HandleCallback(rec, callbackRequest("code=abc&state=s1", "s1", "n1"))

		resp := rec.Result()
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, redirectURL, resp.Header.Get("Location"))

		sessionCookies := cookiesNamed(resp, session.CookieName)
		require.Len(t, sessionCookies, 1)
		claims, err := f.codec.Validate(sessionCookies[0].Value)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", claims.Email())

		for _, name := range []string{auth.StateCookieName, auth.NonceCookieName} {
			cleared := cookiesNamed(resp, name)
			require.Len(t, cleared, 1, name)
			assert.LessOrEqual(t, cleared[0].MaxAge, 0, name)
		}
		f.provider.AssertExpectations(t)
	})

	tests := []struct {
		name   string
		query  string
		state  string
		status int
	}{
		{"state mismatch", "code=abc&state=s1", "other", http.StatusBadRequest},
		{"missing state cookie", "code=abc&state=s1", "", http.StatusBadRequest},
		{"missing code", "state=s1", "s1", http.StatusBadRequest},
		{"missing state", "code=abc", "s1", http.StatusBadRequest},
		{"provider error", "error=access_denied&state=s1", "s1", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			rec := httptest.NewRecorder()
			f.handler.HandleCallback(rec, callbackRequest(tt.query, tt.state, "n1"))

			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, cookiesNamed(rec.Result(), session.CookieName))
			f.provider.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("exchange failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.provider.On("Exchange", mock.Anything, "abc", "n1").Return(oidc.Identity{}, oidc.ErrNonceMismatch)

		rec := httptest.NewRecorder()
		f.handler.HandleCallback(rec, callbackRequest("code=abc&state=s1", "s1", "n1"))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, cookiesNamed(rec.Result(), session.CookieName))
		f.recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	})
}

func TestHandleLogout(t *testing.T) {
	t.Run("clears cookie and records event", func(t *testing.T) {
		f := newFixture(t, nil)
		f.recorder.On("Record", mock.Anything, eventFor(models.AuthActionLogout, "u1")).Return(nil)

		old, err := f.codec.Mint(token.ClaimSet{token.ClaimEmail: "a@b.com"}, "u1")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
		req = req.WithContext(middleware.WithPrincipal(req.Context(), middleware.Principal{
			Subject: "u1", Email: "a@b.com", Authenticated: true,
		}))
		rec := httptest.NewRecorder()
		f.handler.HandleLogout(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		cleared := cookiesNamed(rec.Result(), session.CookieName)
		require.Len(t, cleared, 1)
		assert.LessOrEqual(t, cleared[0].MaxAge, 0)
		assert.Empty(t, cleared[0].Value)
		assert.True(t, strings.Contains(rec.Header().Get("Set-Cookie"), "Max-Age=0"))

		// no revocation: the old token keeps validating until it expires
		_, err = f.codec.Validate(old)
		assert.NoError(t, err)
		f.recorder.AssertExpectations(t)
	})

	t.Run("anonymous caller is not audited", func(t *testing.T) {
		f := newFixture(t, nil)

		rec := httptest.NewRecorder()
		f.handler.HandleLogout(rec, httptest.NewRequest(http.MethodGet, "/api/logout", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Len(t, cookiesNamed(rec.Result(), session.CookieName), 1)
		f.recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	})
}
