package middleware

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/sessiongate/internal/observability"
	"github.com/upb/sessiongate/utils"
	"go.uber.org/zap"
)

// Access is the requirement a rule places on the caller.
// The zero value requires authentication.
type Access int

const (
	Authenticated Access = iota
	Public
)

func (a Access) String() string {
	if a == Public {
		return "public"
	}
	return "authenticated"
}

// Rule maps a method and path pattern to an access requirement.
//
// Pattern is an absolute path. A "*" segment matches exactly one segment
// and a trailing "/**" matches the prefix itself and anything below it.
// An empty Method matches every method.
type Rule struct {
	Method  string
	Pattern string
	Access  Access
}

// RouteDecision is the outcome of evaluating the rule table
type RouteDecision struct {
	Allow  bool
	Reason string
}

type compiledRule struct {
	Rule
	segments []string
	suffix   bool
}

// RoutePolicy is an ordered rule table. The first matching rule wins and a
// request that matches no rule is denied. It is immutable after construction.
type RoutePolicy struct {
	rules   []compiledRule
	metrics *observability.AuthMetrics
	logger  *zap.Logger
}

// NewRoutePolicy compiles rules in order. metrics may be nil.
func NewRoutePolicy(rules []Rule, metrics *observability.AuthMetrics, logger *zap.Logger) (*RoutePolicy, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, rule := range rules {
		c, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		compiled = append(compiled, c)
	}
	return &RoutePolicy{
		rules:   compiled,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// DefaultRules returns the route table for the browser-facing API
func DefaultRules() []Rule {
	return []Rule{
		{Method: http.MethodGet, Pattern: "/", Access: Public},
		{Method: http.MethodGet, Pattern: "/api/hello", Access: Public},
		{Method: http.MethodGet, Pattern: "/api/public", Access: Public},
		{Pattern: "/oauth2/**", Access: Public},
		{Pattern: "/login/**", Access: Public},
		{Method: http.MethodGet, Pattern: "/healthz", Access: Public},
		{Method: http.MethodGet, Pattern: "/readyz", Access: Public},
		{Pattern: "/api/logout", Access: Public},
		{Method: http.MethodOptions, Pattern: "/**", Access: Public},
		{Pattern: "/**", Access: Authenticated},
	}
}

// Decide evaluates the table for one request
func (p *RoutePolicy) Decide(method, requestPath string, principal Principal) RouteDecision {
	segments := splitPath(cleanPath(requestPath))

	for _, rule := range p.rules {
		if !rule.matches(method, segments) {
			continue
		}
		if rule.Access == Public {
			return RouteDecision{Allow: true, Reason: "public route"}
		}
		if principal.Authenticated {
			return RouteDecision{Allow: true, Reason: "authenticated"}
		}
		return RouteDecision{Allow: false, Reason: "authentication required"}
	}

	return RouteDecision{Allow: false, Reason: "no matching rule"}
}

// Enforce rejects requests the table denies with 401. It must run after
// Authenticator.Authenticate. Every rejection carries the same body.
func (p *RoutePolicy) Enforce(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := PrincipalFromContext(r.Context())
		decision := p.Decide(r.Method, r.URL.Path, principal)
		p.metrics.RouteDecision(decision.Allow)

		if !decision.Allow {
			p.logger.Debug("request denied by route policy",
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("reason", decision.Reason))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func compileRule(rule Rule) (compiledRule, error) {
	if !strings.HasPrefix(rule.Pattern, "/") {
		return compiledRule{}, fmt.Errorf("pattern %q must start with /", rule.Pattern)
	}

	c := compiledRule{Rule: rule}
	segments := splitPath(rule.Pattern)
	if n := len(segments); n > 0 && segments[n-1] == "**" {
		c.suffix = true
		segments = segments[:n-1]
	}
	for _, seg := range segments {
		if seg == "**" {
			return compiledRule{}, fmt.Errorf("pattern %q: ** is only allowed as the last segment", rule.Pattern)
		}
	}
	c.segments = segments
	return c, nil
}

func (c compiledRule) matches(method string, segments []string) bool {
	if c.Method != "" && !strings.EqualFold(c.Method, method) {
		return false
	}
	if c.suffix {
		if len(segments) < len(c.segments) {
			return false
		}
	} else if len(segments) != len(c.segments) {
		return false
	}
	for i, want := range c.segments {
		if want != "*" && want != segments[i] {
			return false
		}
	}
	return true
}

// cleanPath resolves dot segments so "/api/public/../me" is judged as "/api/me"
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
