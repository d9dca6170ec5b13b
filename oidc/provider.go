// Package oidc adapts an upstream OpenID Connect provider to the login flow.
// It performs discovery, builds authorization URLs, exchanges codes and
// verifies ID tokens, yielding only the subject, email and display name.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/upb/sessiongate/utils"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	// ErrMissingIDToken is returned when the token response carries no id_token
	ErrMissingIDToken = errors.New("token response missing id_token")

	// ErrNonceMismatch is returned when the ID token nonce differs from the one sent
	ErrNonceMismatch = errors.New("ID token nonce does not match expected value")

	// ErrInvalidIdentity is returned when the verified claims lack a subject or a valid email
	ErrInvalidIdentity = errors.New("identity claims are incomplete")
)

// Config holds the relying-party registration
type Config struct {
	IssuerURL    string `validate:"required,url"`
	ClientID     string `validate:"required"`
	ClientSecret string
	RedirectURI  string `validate:"required,url"`
	Scopes       []string
}

// Identity is the subset of upstream attributes carried into the session
type Identity struct {
	Subject     string `validate:"required"`
	Email       string `validate:"required,email"`
	DisplayName string
}

// Validate checks that the identity can be turned into a session
func (i Identity) Validate() error {
	if err := utils.ValidateStruct(i); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return nil
}

// Provider exchanges authorization codes for verified identities
type Provider struct {
	oauth2Config *oauth2.Config
	verifier     *gooidc.IDTokenVerifier
	httpClient   *http.Client
	logger       *zap.Logger
}

// Option configures a Provider
type Option func(*Provider)

// WithHTTPClient sets the client used for discovery, key fetches and code exchange
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// NewProvider performs OIDC discovery against cfg.IssuerURL
func NewProvider(ctx context.Context, cfg Config, logger *zap.Logger, opts ...Option) (*Provider, error) {
	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid oidc config: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "email", "profile"}
	}
	if !slices.Contains(scopes, gooidc.ScopeOpenID) {
		return nil, errors.New("openid scope is required")
	}

	p := &Provider{
		httpClient: http.DefaultClient,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	upstream, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC endpoints: %w", err)
	}

	endpoint := upstream.Endpoint()
	p.oauth2Config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   endpoint.AuthURL,
			TokenURL:  endpoint.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	p.verifier = upstream.Verifier(&gooidc.Config{ClientID: cfg.ClientID})

	logger.Info("oidc provider discovered",
		zap.String("issuer", cfg.IssuerURL),
		zap.String("client_id", cfg.ClientID),
		zap.Strings("scopes", scopes))

	return p, nil
}

// AuthCodeURL returns the provider authorization URL carrying state and nonce
func (p *Provider) AuthCodeURL(state, nonce string) string {
	return p.oauth2Config.AuthCodeURL(state, gooidc.Nonce(nonce))
}

// Exchange trades code for tokens, verifies the ID token and its nonce,
// and returns the identity it asserts.
func (p *Provider) Exchange(ctx context.Context, code, nonce string) (Identity, error) {
	ctx = gooidc.ClientContext(ctx, p.httpClient)

	tok, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("code exchange failed: %w", err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return Identity{}, ErrMissingIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to verify ID token: %w", err)
	}
	if idToken.Nonce != nonce {
		return Identity{}, ErrNonceMismatch
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("failed to decode ID token claims: %w", err)
	}

	identity := Identity{
		Subject:     idToken.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}
	if err := identity.Validate(); err != nil {
		return Identity{}, err
	}

	p.logger.Debug("authorization code exchange successful",
		zap.String("subject", identity.Subject))

	return identity, nil
}
