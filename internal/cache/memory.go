package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const defaultCleanupInterval = 5 * time.Minute

type memoryItem struct {
	key       string
	entry     *Entry
	expiresAt time.Time
}

// MemoryBackend is a process-local backend bounded by TTL and entry count.
// When full, the oldest insertion is evicted first.
type MemoryBackend struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = oldest
	maxEntries int
	now        func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryBackend creates a memory backend. maxEntries <= 0 means unbounded.
func NewMemoryBackend(maxEntries int, cleanupInterval time.Duration) *MemoryBackend {
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}
	b := &MemoryBackend{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
	go b.cleanupLoop(cleanupInterval)
	return b
}

// Get returns the live entry for key.
func (b *MemoryBackend) Get(_ context.Context, key string) (*Entry, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	el, ok := b.items[key]
	if !ok {
		return nil, false, nil
	}
	item := el.Value.(*memoryItem)
	if !b.now().Before(item.expiresAt) {
		b.removeElement(el)
		return nil, false, nil
	}
	return item.entry, true, nil
}

// Set stores entry under key for ttl.
func (b *MemoryBackend) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	expiresAt := b.now().Add(ttl)
	if el, ok := b.items[key]; ok {
		item := el.Value.(*memoryItem)
		item.entry = entry
		item.expiresAt = expiresAt
		b.order.MoveToBack(el)
		return nil
	}

	if b.maxEntries > 0 && len(b.items) >= b.maxEntries {
		b.evictExpiredLocked()
		for len(b.items) >= b.maxEntries {
			b.removeElement(b.order.Front())
		}
	}

	el := b.order.PushBack(&memoryItem{key: key, entry: entry, expiresAt: expiresAt})
	b.items[key] = el
	return nil
}

// Len returns the number of stored entries, expired ones included until swept.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Close stops the cleanup goroutine.
func (b *MemoryBackend) Close() error {
	b.stopOnce.Do(func() { close(b.stopCh) })
	return nil
}

func (b *MemoryBackend) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.mu.Lock()
			b.evictExpiredLocked()
			b.mu.Unlock()
		}
	}
}

func (b *MemoryBackend) evictExpiredLocked() {
	now := b.now()
	for el := b.order.Front(); el != nil; {
		next := el.Next()
		if !now.Before(el.Value.(*memoryItem).expiresAt) {
			b.removeElement(el)
		}
		el = next
	}
}

func (b *MemoryBackend) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	item := b.order.Remove(el).(*memoryItem)
	delete(b.items, item.key)
}
