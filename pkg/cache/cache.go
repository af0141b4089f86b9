package cache

import (
	"sync"
	"time"
)

// entry represents a cached value with TTL
type entry struct {
	value     interface{}
	expiresAt time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// Stats tracks cache performance
type Stats struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
}

// LocalCache is an in-memory cache with TTL support
type LocalCache struct {
	mu    sync.RWMutex
	data  map[string]*entry
	stats Stats
	done  chan struct{}
	once  sync.Once
}

// NewLocalCache creates a new in-memory cache and starts its cleanup loop
func NewLocalCache() *LocalCache {
	c := &LocalCache{
		data: make(map[string]*entry),
		done: make(chan struct{}),
	}
	go c.cleanupExpired()
	return c
}

// Get retrieves a value from the cache
func (c *LocalCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	if e.expired() {
		delete(c.data, key)
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	return e.value, true
}

// Set stores a value in the cache with a TTL
func (c *LocalCache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = &entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	c.stats.Sets++
}

// Delete removes a value from the cache
func (c *LocalCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.stats.Deletes++
}

// GetStats returns a snapshot of cache statistics
func (c *LocalCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Close stops the background cleanup loop
func (c *LocalCache) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *LocalCache) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			for key, e := range c.data {
				if e.expired() {
					delete(c.data, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
