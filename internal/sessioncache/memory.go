package sessioncache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxEntries = 10000

type entry struct {
	token     string
	expiresAt time.Time
}

// MemoryCache is a process-local Store bounded by size and TTL. When the size
// bound is hit the least recently used user is dropped first.
type MemoryCache struct {
	mu    sync.RWMutex
	cache *lru.Cache[string, *entry]
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryCache creates a MemoryCache. Non-positive arguments fall back to
// DefaultTTL and a 10000 entry bound.
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	cache, err := lru.New[string, *entry](maxEntries)
	if err != nil {
		// only fails for a non-positive size
		panic("failed to create LRU cache: " + err.Error())
	}

	return &MemoryCache{
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *MemoryCache) expired(e *entry) bool {
	return !c.now().Before(e.expiresAt)
}

// Get returns the cached token, evicting it if it has expired.
func (c *MemoryCache) Get(_ context.Context, userID string) (string, bool) {
	c.mu.RLock()
	e, ok := c.cache.Get(userID)
	c.mu.RUnlock()
	if !ok {
		return "", false
	}

	if c.expired(e) {
		c.mu.Lock()
		// a concurrent Set may have replaced the entry
		if current, ok := c.cache.Peek(userID); ok && current == e {
			c.cache.Remove(userID)
		}
		c.mu.Unlock()
		return "", false
	}

	return e.token, true
}

// Set stores token for userID, replacing any previous token.
func (c *MemoryCache) Set(_ context.Context, userID, token string) {
	c.mu.Lock()
	c.cache.Add(userID, &entry{token: token, expiresAt: c.now().Add(c.ttl)})
	c.mu.Unlock()
}

func (c *MemoryCache) Clear(_ context.Context, userID string) {
	c.mu.Lock()
	c.cache.Remove(userID)
	c.mu.Unlock()
}

// PurgeExpired drops every expired entry and returns how many were removed.
func (c *MemoryCache) PurgeExpired(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, userID := range c.cache.Keys() {
		if e, ok := c.cache.Peek(userID); ok && c.expired(e) {
			c.cache.Remove(userID)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of entries currently held, expired or not.
func (c *MemoryCache) Len() int {
	return c.cache.Len()
}
