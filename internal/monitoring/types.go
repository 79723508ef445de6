// Package monitoring - types.go defines shared types.
//
// DESIGN: These types are used by both gateway/ and monitoring/ packages.
// Defined here ONCE to avoid duplication and circular imports.
//
// TYPES:
//   - CacheStatus:   How the cache layer treated a request
//   - ErrKind*:      Failure taxonomy labels
//   - RequestEvent:  Telemetry data for each proxied request
//   - TelemetryConfig
package monitoring

import "time"

// =============================================================================
// CACHE STATUS - Reported in X-Cache and telemetry
// =============================================================================

// CacheStatus identifies how the cache layer handled a request.
type CacheStatus string

const (
	CacheHit    CacheStatus = "HIT"
	CacheMiss   CacheStatus = "MISS"
	CacheBypass CacheStatus = "BYPASS"
)

// =============================================================================
// ERROR KINDS - Failure taxonomy shared with the gateway
// =============================================================================

const (
	ErrKindAuthenticationMissing = "authentication_missing"
	ErrKindUpstreamFailure       = "upstream_failure"
	ErrKindNetworkFailure        = "network_failure"
	ErrKindMalformedResponse     = "malformed_response"
)

// =============================================================================
// EVENT TYPES - Structured data for telemetry recording
// =============================================================================

// RequestEvent captures one proxied call. The bearer token is never recorded.
type RequestEvent struct {
	RequestID        string      `json:"request_id"`
	Timestamp        time.Time   `json:"timestamp"`
	Method           string      `json:"method"`
	Slug             string      `json:"slug"`
	ClientIP         string      `json:"client_ip"`
	StatusCode       int         `json:"status_code"`
	Cache            CacheStatus `json:"cache"`
	ContentKind      string      `json:"content_kind,omitempty"`
	SessionAttached  bool        `json:"session_attached"`
	RequestBodySize  int         `json:"request_body_size"`
	ResponseBodySize int64       `json:"response_body_size"`
	Success          bool        `json:"success"`
	ErrorKind        string      `json:"error_kind,omitempty"`
	Error            string      `json:"error,omitempty"`
	ForwardLatencyMs int64       `json:"forward_latency_ms"`
	TotalLatencyMs   int64       `json:"total_latency_ms"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// TelemetryConfig configures the JSONL request log.
type TelemetryConfig struct {
	Enabled     bool
	LogPath     string
	LogToStdout bool
}
