package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter gates actions identified by a key
type RateLimiter interface {
	Allow(key string) bool
}

// Limiter enforces a minimum interval between requests to the same host
type Limiter struct {
	mu          sync.Mutex
	hosts       map[string]time.Time
	minInterval time.Duration
}

// New creates a limiter with the given minimum interval per host
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		hosts:       make(map[string]time.Time),
		minInterval: minInterval,
	}
}

// Allow reports whether a request to host may proceed now. A successful
// Allow records the request time; a rejected one does not.
func (l *Limiter) Allow(host string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if last, ok := l.hosts[host]; ok {
		if now.Sub(last) < l.minInterval {
			return false
		}
	}
	l.hosts[host] = now
	return true
}

// Wait blocks until a request to host is permitted, then records it
func (l *Limiter) Wait(host string) {
	l.mu.Lock()
	now := time.Now()
	last, ok := l.hosts[host]
	if !ok || now.Sub(last) >= l.minInterval {
		l.hosts[host] = now
		l.mu.Unlock()
		return
	}
	wait := l.minInterval - now.Sub(last)
	l.hosts[host] = last.Add(l.minInterval)
	l.mu.Unlock()

	time.Sleep(wait)
}

// Reset clears the recorded request time for host
func (l *Limiter) Reset(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hosts, host)
}

// ResetAll clears all recorded request times
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hosts = make(map[string]time.Time)
}

var _ RateLimiter = (*Limiter)(nil)

// RedisLimiter is a distributed rate limiter backed by Redis SET NX
type RedisLimiter struct {
	client      *redis.Client
	prefix      string
	minInterval time.Duration
}

// NewRedis creates a Redis-backed limiter. Keys expire after minInterval,
// so Allow succeeds at most once per interval across all processes.
func NewRedis(client *redis.Client, prefix string, minInterval time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		prefix:      prefix,
		minInterval: minInterval,
	}
}

func (l *RedisLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := l.client.SetNX(ctx, l.prefix+key, time.Now().Unix(), l.minInterval).Result()
	if err != nil {
		// Redis unavailable: fail open, rate limiting is best effort
		return true
	}
	return ok
}

var _ RateLimiter = (*RedisLimiter)(nil)
