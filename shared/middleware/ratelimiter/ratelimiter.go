package ratelimiter

import (
	"sync"
	"time"
)

// bucket is a token bucket for a single key.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	timer      *time.Timer
}

// KeyedRateLimiter keeps an independent token bucket per key (ip, email,
// user id). Buckets unused for ttl are dropped.
type KeyedRateLimiter struct {
	mu       sync.RWMutex
	buckets  map[string]*bucket
	rate     float64 // tokens per second
	capacity float64
	ttl      time.Duration
	now      func() time.Time
}

func New(rate, capacity float64, ttl time.Duration) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

func OncePerSecond() *KeyedRateLimiter { return New(1, 1, time.Hour) }
func OncePerMinute() *KeyedRateLimiter { return New(1.0/60, 1, time.Hour) }
func Rps10() *KeyedRateLimiter         { return New(10, 10, time.Hour) }
func Rps100() *KeyedRateLimiter        { return New(100, 100, time.Hour) }

// Allow takes one token from key's bucket.
func (l *KeyedRateLimiter) Allow(key string) bool {
	b := l.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * l.rate
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *KeyedRateLimiter) bucket(key string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		l.touch(key, b)
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// lost the race to another request with the same key
	if b, ok = l.buckets[key]; ok {
		l.touch(key, b)
		return b
	}

	b = &bucket{tokens: l.capacity, lastRefill: l.now()}
	l.buckets[key] = b
	l.touch(key, b)
	return b
}

// touch restarts the expiry timer of b.
func (l *KeyedRateLimiter) touch(key string, b *bucket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(l.ttl, func() { l.forget(key, b) })
}

func (l *KeyedRateLimiter) forget(key string, b *bucket) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// only drop the bucket this timer belongs to
	if l.buckets[key] == b {
		delete(l.buckets, key)
	}
}

// Len reports how many keys are tracked.
func (l *KeyedRateLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// Stop cancels all expiry timers.
func (l *KeyedRateLimiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.buckets {
		b.mu.Lock()
		if b.timer != nil {
			b.timer.Stop()
		}
		b.mu.Unlock()
	}
}
