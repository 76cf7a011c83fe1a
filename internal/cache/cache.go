package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// MemoryCache is an in-memory cache implementation with TTL support
type MemoryCache struct {
	mu     sync.RWMutex
	items  map[string]entry
	ttl    time.Duration
	stopCh chan struct{}
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// NewMemory creates a new in-memory cache with the specified default TTL
func NewMemory(ttl time.Duration) *MemoryCache {
	c := &MemoryCache{
		items:  make(map[string]entry),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *MemoryCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

func (c *MemoryCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

func (c *MemoryCache) SetNX(key string, value interface{}, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok && time.Now().Before(e.expiresAt) {
		return false
	}
	c.items[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return true
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry)
}

func (c *MemoryCache) Stop() {
	close(c.stopCh)
}

func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, key)
		}
	}
}

// GetOrCompute returns the cached value under key, or runs produce, stores
// its result for ttl and returns it. Cache failures fall through to produce;
// a missing cache only costs an extra upstream call.
func GetOrCompute[T any](c Cache, key string, ttl time.Duration, produce func() (T, error)) (T, error) {
	if c != nil {
		if cached, ok := c.Get(key); ok {
			if v, ok := cached.(T); ok {
				return v, nil
			}
			// Values coming back from a shared backend may be JSON-decoded
			// generics; re-marshal into the requested type.
			if raw, err := json.Marshal(cached); err == nil {
				var v T
				if err := json.Unmarshal(raw, &v); err == nil {
					return v, nil
				}
			}
		}
	}

	v, err := produce()
	if err != nil {
		return v, err
	}
	if c != nil {
		c.SetWithTTL(key, v, ttl)
	}
	return v, nil
}

// Ensure MemoryCache implements Cache interface
var _ Cache = (*MemoryCache)(nil)
