package session

import (
	"context"
	"sync"
	"time"
)

const defaultCleanupInterval = 5 * time.Minute

// MemoryStore keeps sessions in a mutex-guarded map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Entry
	ttl      time.Duration
	now      func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates an in-memory store. ttl <= 0 keeps entries until
// cleared. A cleanup goroutine runs only when a TTL is configured.
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]Entry),
		ttl:      ttl,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	if ttl > 0 {
		if cleanupInterval <= 0 {
			cleanupInterval = defaultCleanupInterval
		}
		go s.cleanupLoop(cleanupInterval)
	}
	return s
}

// Set stores or replaces the entry for token.
func (s *MemoryStore) Set(_ context.Context, token, cookieHeader, csrfToken string) error {
	entry := Entry{
		BearerToken:  token,
		CookieHeader: cookieHeader,
		CSRFToken:    csrfToken,
		CreatedAt:    s.now(),
	}
	s.mu.Lock()
	s.sessions[token] = entry
	s.mu.Unlock()
	return nil
}

// Get returns the entry for token if present and not expired.
func (s *MemoryStore) Get(_ context.Context, token string) (Entry, bool, error) {
	s.mu.RLock()
	entry, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	if expired(entry.CreatedAt, s.ttl, s.now()) {
		s.mu.Lock()
		// re-check: a concurrent Set may have replaced it
		if cur, still := s.sessions[token]; still && cur.CreatedAt.Equal(entry.CreatedAt) {
			delete(s.sessions, token)
		}
		s.mu.Unlock()
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Clear removes the entry for token.
func (s *MemoryStore) Clear(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.purge()
		}
	}
}

// purge drops expired entries and returns how many were removed.
func (s *MemoryStore) purge() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, entry := range s.sessions {
		if expired(entry.CreatedAt, s.ttl, now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}
