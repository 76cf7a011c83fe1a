package cache

import "time"

// Cache defines the interface for cache backends
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	SetWithTTL(key string, value interface{}, ttl time.Duration)
	// SetNX stores the value only if the key is currently absent and reports
	// whether the write happened. Used as a single-flight lock across
	// processes sharing the same backend.
	SetNX(key string, value interface{}, ttl time.Duration) bool
	Delete(key string)
	Clear()
}
