package cache

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

type entry struct {
	key       string
	payload   []byte
	expiresAt time.Time // zero = no expiry
}

// MemoryCache is a concurrency-safe bounded in-memory cache. Values are
// stored encoded so callers never share mutable state through it.
type MemoryCache struct {
	mu sync.Mutex

	// insertion-ordered entries; index maps key -> entry
	order []*entry
	index map[string]*entry

	maxEntries int // max number of entries (0 = unlimited)
	now        func() time.Time
}

// NewMemoryCache creates a MemoryCache. If maxEntries is <= 0, it is
// treated as unlimited.
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		index:      make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get decodes the live entry for key into dst.
func (c *MemoryCache) Get(_ context.Context, key string, dst any) error {
	c.mu.Lock()
	e, ok := c.index[key]
	if ok && !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.removeLocked(key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(e.payload, dst)
}

// Set stores value under key and enforces the entry limit.
func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{key: key, payload: payload}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	if _, exists := c.index[key]; exists {
		c.removeLocked(key)
	}
	c.order = append(c.order, e)
	c.index[key] = e

	// Enforce retention by count, oldest first.
	if c.maxEntries > 0 && len(c.order) > c.maxEntries {
		over := len(c.order) - c.maxEntries
		for _, old := range c.order[:over] {
			delete(c.index, old.key)
		}
		c.order = c.order[over:]
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

func (c *MemoryCache) removeLocked(key string) {
	delete(c.index, key)
	for i, e := range c.order {
		if e.key == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
