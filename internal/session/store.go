// Package session maps modern-side bearer tokens to legacy session artifacts.
//
// DESIGN: The legacy ERP keeps a stateful session (cookie + CSRF token) while
// browser clients only present a stateless bearer token. The login flow
// performs the legacy handshake and stores the artifacts here; every proxied
// call reads them back.
//
// Backends:
//   - MemoryStore: process-local map, optional TTL with background cleanup
//   - SQLiteStore: survives restarts, same TTL semantics applied on read
//
// Exactly one entry is live per token; Set replaces the previous entry
// entirely. A missing entry is a normal outcome, not an error.
package session

import (
	"context"
	"time"
)

// Entry holds the legacy session artifacts for one bearer token.
type Entry struct {
	BearerToken  string
	CookieHeader string
	CSRFToken    string
	CreatedAt    time.Time
}

// Store is implemented by every session backend. Implementations must be
// safe for concurrent use.
type Store interface {
	// Set stores or fully replaces the entry for token.
	Set(ctx context.Context, token, cookieHeader, csrfToken string) error

	// Get returns the live entry for token. ok is false when absent or expired.
	Get(ctx context.Context, token string) (entry Entry, ok bool, err error)

	// Clear removes the entry for token. Clearing an absent token is a no-op.
	Clear(ctx context.Context, token string) error

	// Len returns the number of stored entries, expired ones included until purged.
	Len() int

	// Close releases background resources.
	Close() error
}

func expired(createdAt time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(createdAt) > ttl
}
