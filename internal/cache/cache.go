// Package cache memoizes idempotent legacy reads per user.
//
// DESIGN: A TTL-bounded, keyed memoization of successful GET responses.
//   - Key always includes the bearer token: no cross-user hits
//   - Only GET on non-mutation paths may consult the cache (Cacheable)
//   - Fetch errors are never stored and never evict earlier values
//   - Concurrent cold fetches for one key are not deduplicated; the last
//     completed fetch wins
//
// Backends: MemoryBackend (process-local) and RedisBackend (shared between
// gateway replicas). Backend failures degrade to a cache miss.
package cache

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Entry is a cached legacy response. Body holds the JSON payload.
// Entries returned from a backend are shared; callers must not mutate them.
type Entry struct {
	Status      int       `json:"status"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body"`
	StoredAt    time.Time `json:"stored_at"`

	// NoStore marks a fetched entry that must be returned but not cached.
	NoStore bool `json:"-"`
}

// Header returns the response headers to replay for this entry.
func (e *Entry) Header() http.Header {
	h := make(http.Header)
	if e.ContentType != "" {
		h.Set("Content-Type", e.ContentType)
	}
	return h
}

// Fetcher produces a fresh entry on a cache miss.
type Fetcher func(ctx context.Context) (*Entry, error)

// Backend stores entries by their rendered key.
type Backend interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
	// Len returns the number of live entries, or -1 when unknown.
	Len() int
	Close() error
}

// Layer is the cache front used by the gateway.
type Layer struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache layer. ttl <= 0 disables caching: every call fetches.
func New(backend Backend, ttl time.Duration) *Layer {
	return &Layer{backend: backend, ttl: ttl, now: time.Now}
}

// Enabled reports whether lookups can ever hit.
func (l *Layer) Enabled() bool {
	return l != nil && l.backend != nil && l.ttl > 0
}

// GetOrFetch returns the live entry for key, or calls fetch and stores its
// result. hit is true when fetch was not invoked.
func (l *Layer) GetOrFetch(ctx context.Context, key Key, fetch Fetcher) (entry *Entry, hit bool, err error) {
	if !l.Enabled() {
		entry, err = fetch(ctx)
		return entry, false, err
	}

	k := key.String()
	cached, ok, err := l.backend.Get(ctx, k)
	if err != nil {
		log.Warn().Err(err).Str("path", key.Path).Msg("cache: lookup failed, fetching")
	} else if ok {
		return cached, true, nil
	}

	entry, err = fetch(ctx)
	if err != nil {
		return nil, false, err
	}
	if entry == nil || entry.NoStore {
		return entry, false, nil
	}

	entry.StoredAt = l.now()
	if err := l.backend.Set(ctx, k, entry, l.ttl); err != nil {
		log.Warn().Err(err).Str("path", key.Path).Msg("cache: store failed")
	}
	return entry, false, nil
}

// Len returns the backend entry count, or -1 when unknown.
func (l *Layer) Len() int {
	if l == nil || l.backend == nil {
		return 0
	}
	return l.backend.Len()
}

// Close releases the backend.
func (l *Layer) Close() error {
	if l == nil || l.backend == nil {
		return nil
	}
	return l.backend.Close()
}
