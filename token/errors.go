package token

import (
	"errors"
	"fmt"
)

// MinSecretLength is the minimum HMAC-SHA256 key size in bytes (256 bits)
const MinSecretLength = 32

// ConfigError reports a missing or weak signing configuration.
// It is fatal: a codec that cannot sign safely must not issue sessions.
type ConfigError struct {
	Reason string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("token config: %s", e.Reason)
}

// Is matches any *ConfigError so callers can test with errors.Is(err, ErrConfig)
func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// ErrConfig is the sentinel for errors.Is checks against ConfigError
var ErrConfig = &ConfigError{Reason: "invalid signing configuration"}

// ErrorKind classifies why a token was rejected
type ErrorKind string

const (
	KindMalformed    ErrorKind = "malformed"
	KindBadSignature ErrorKind = "bad_signature"
	KindExpired      ErrorKind = "expired"
)

// AuthError is returned by Validate. Kinds are distinguishable for diagnostics
// but callers outside this package collapse them to "anonymous".
type AuthError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("token %s", e.Kind)
}

// Unwrap implements errors.Unwrap
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is compares kinds, so wrapped causes do not affect matching
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	// ErrMalformed is returned for tokens with a wrong structure, undecodable
	// segments, an unsupported algorithm or missing required claims
	ErrMalformed = &AuthError{Kind: KindMalformed}

	// ErrBadSignature is returned when the HMAC does not match
	ErrBadSignature = &AuthError{Kind: KindBadSignature}

	// ErrExpired is returned when the signature is valid but now >= exp
	ErrExpired = &AuthError{Kind: KindExpired}
)

func newAuthError(kind ErrorKind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

// KindOf returns the kind of an AuthError, or "" if err is not one
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return ""
}
