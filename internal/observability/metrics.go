package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sessiongate"

// Label values for sessiongate_token_validations_total
const (
	ValidationOK           = "ok"
	ValidationAbsent       = "absent"
	ValidationMalformed    = "malformed"
	ValidationBadSignature = "bad_signature"
	ValidationExpired      = "expired"
)

// AuthMetrics holds the authentication counters
type AuthMetrics struct {
	tokensMinted     *prometheus.CounterVec
	tokenValidations *prometheus.CounterVec
	routeDecisions   *prometheus.CounterVec
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// NewAuthMetrics registers the collectors on reg
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	factory := promauto.With(reg)

	return &AuthMetrics{
		tokensMinted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_minted_total",
			Help:      "Session tokens minted, by result",
		}, []string{"result"}),

		tokenValidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_validations_total",
			Help:      "Session cookie validations, by result",
		}, []string{"result"}),

		routeDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_decisions_total",
			Help:      "Route policy decisions",
		}, []string{"decision"}),

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status",
		}, []string{"method", "route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// TokenMinted counts a mint attempt
func (m *AuthMetrics) TokenMinted(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.tokensMinted.WithLabelValues(result).Inc()
}

// TokenValidated counts a validation outcome; result is one of the Validation* values
func (m *AuthMetrics) TokenValidated(result string) {
	if m == nil {
		return
	}
	m.tokenValidations.WithLabelValues(result).Inc()
}

// RouteDecision counts an allow or deny
func (m *AuthMetrics) RouteDecision(allowed bool) {
	if m == nil {
		return
	}
	decision := "allow"
	if !allowed {
		decision = "deny"
	}
	m.routeDecisions.WithLabelValues(decision).Inc()
}

// Instrument records per-route request counts and latency.
// Unmatched requests are labelled with route "unmatched" to bound cardinality.
func (m *AuthMetrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
