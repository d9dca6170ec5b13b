package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec mints and validates HS256 session tokens.
//
// A Codec is immutable after NewCodec and safe for concurrent use; the signing
// key never leaves it.
type Codec struct {
	key    []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Codec
type Option func(*Codec)

// WithClock overrides the time source used for minting and expiry checks
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec creates a codec from a shared secret and token lifetime.
// It fails with a *ConfigError when the secret is missing or shorter than
// MinSecretLength, or when ttl is not positive.
func NewCodec(secret []byte, ttl time.Duration, opts ...Option) (*Codec, error) {
	if err := checkKey(secret); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, &ConfigError{Reason: "token TTL must be positive"}
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	c := &Codec{
		key: key,
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Algorithm enforcement happens in keyFunc so that a foreign alg is
	// reported as malformed rather than as a signature failure.
	c.parser = jwt.NewParser(
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)
	return c, nil
}

// TTL returns the configured token lifetime
func (c *Codec) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// Mint signs a new token for subject carrying a copy of claims.
// The "sub", "iat" and "exp" keys are always overwritten.
func (c *Codec) Mint(claims ClaimSet, subject string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	issuedAt := c.now().Truncate(time.Second)
	out := claims.Clone()
	out[ClaimSubject] = subject
	out[ClaimIssuedAt] = issuedAt.Unix()
	out[ClaimExpiresAt] = issuedAt.Add(c.ttl).Unix()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(out)).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies the signature and then the expiry of raw, returning its
// claims. Failures are *AuthError values matching ErrMalformed,
// ErrBadSignature or ErrExpired.
func (c *Codec) Validate(raw string) (ClaimSet, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	parsed, err := c.parser.ParseWithClaims(raw, jwt.MapClaims{}, c.keyFunc)
	if err != nil {
		return nil, classify(raw, err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, newAuthError(KindMalformed, jwt.ErrTokenInvalidClaims)
	}

	claims := ClaimSet(mapClaims)
	claims.normalizeTimes()
	return claims, nil
}

// IsExpired reports whether raw is unusable. Any validation failure,
// including a forged or malformed token, counts as expired; use Validate to
// tell them apart.
func (c *Codec) IsExpired(raw string) bool {
	_, err := c.Validate(raw)
	return err != nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unsupported signing algorithm: %v", t.Header["alg"])
	}
	return c.key, nil
}

func (c *Codec) ready() error {
	if c == nil {
		return &ConfigError{Reason: "codec not initialized"}
	}
	if err := checkKey(c.key); err != nil {
		return err
	}
	if c.ttl <= 0 || c.now == nil || c.parser == nil {
		return &ConfigError{Reason: "codec not initialized"}
	}
	return nil
}

func checkKey(key []byte) error {
	if len(key) == 0 {
		return &ConfigError{Reason: "signing secret is required"}
	}
	if len(key) < MinSecretLength {
		return &ConfigError{Reason: fmt.Sprintf("signing secret must be at least %d bytes", MinSecretLength)}
	}
	return nil
}

// classify maps golang-jwt errors onto the three AuthError kinds.
// The parser verifies the signature before any claim, so an expired error
// always comes from a correctly signed token.
func classify(raw string, err error) *AuthError {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return newAuthError(KindBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return newAuthError(KindExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed) && onlySignatureUndecodable(raw):
		return newAuthError(KindBadSignature, err)
	default:
		return newAuthError(KindMalformed, err)
	}
}

// onlySignatureUndecodable reports whether header and claims are well-formed
// JSON objects, meaning a malformed error can only come from the signature.
func onlySignatureUndecodable(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return false
	}
	for _, seg := range parts[:2] {
		decoded, err := base64.RawURLEncoding.Strict().DecodeString(seg)
		if err != nil {
			return false
		}
		var obj map[string]any
		if err := json.Unmarshal(decoded, &obj); err != nil {
			return false
		}
	}
	return true
}
