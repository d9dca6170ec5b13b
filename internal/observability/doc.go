// Package observability provides structured logging and metrics for
// sessiongate.
//
// This package implements:
//   - zap logger construction from level and format settings
//   - Prometheus counters for token minting, token validation and route decisions
//   - Per-route HTTP request metrics keyed by the chi route pattern
//
// A nil *AuthMetrics is valid and records nothing, so components can be
// built without a registry in tests.
package observability
