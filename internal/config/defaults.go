// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined here.
// This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// SERVER
// =============================================================================

// DefaultPort is the gateway listen port (same as the web client dev server API).
const DefaultPort = 3000

// DefaultReadTimeout bounds reading an inbound request.
const DefaultReadTimeout = 30 * time.Second

// DefaultWriteTimeout bounds writing a response, including large binary downloads.
const DefaultWriteTimeout = 2 * time.Minute

// DefaultShutdownTimeout is the grace period for in-flight requests on shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// =============================================================================
// LEGACY SERVER
// =============================================================================

// DefaultLegacyTimeout bounds a single outbound legacy call up to its response
// headers and any buffered body. Streamed binary bodies are bounded by the
// server write timeout instead.
const DefaultLegacyTimeout = 60 * time.Second

// DefaultLegacyAPIPath is where the legacy metadata servlets are mounted.
const DefaultLegacyAPIPath = "/sws/com.etendoerp.metadata"

// DefaultDialTimeout is the TCP dial timeout for the legacy server.
const DefaultDialTimeout = 30 * time.Second

// =============================================================================
// SESSION STORE
// =============================================================================

// DefaultSessionTTL of zero keeps legacy sessions until cleared.
const DefaultSessionTTL = 0

// DefaultSessionDBPath is the SQLite file used by the sqlite session backend.
const DefaultSessionDBPath = "erp-gateway-sessions.db"

// =============================================================================
// CACHE
// =============================================================================

// DefaultCacheTTL is how long an idempotent GET response is reused.
const DefaultCacheTTL = 5 * time.Minute

// DefaultCacheMaxEntries bounds the memory cache backend.
const DefaultCacheMaxEntries = 10000

// =============================================================================
// CLEANUP AND LIMITS
// =============================================================================

// DefaultCleanupInterval is the frequency for background cleanup goroutines.
const DefaultCleanupInterval = 5 * time.Minute

// MaxRequestBodySize is the maximum allowed request body (50MB).
const MaxRequestBodySize = 50 * 1024 * 1024

// MaxResponseSize is the maximum buffered upstream response body (50MB).
// Binary responses are streamed and not subject to it.
const MaxResponseSize = 50 * 1024 * 1024

// MaxErrorBodyLogLen limits error response body in logs to prevent bloat.
const MaxErrorBodyLogLen = 500

// =============================================================================
// BACKENDS
// =============================================================================

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)
