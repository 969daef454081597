// Package cache is a small JSON cache over Redis for the admin dashboard
// aggregates. Cache failures are never fatal: a miss or a Redis outage just
// means the caller reads from the database directly.
package cache

import (
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at addr. The returned cache is usable even when
// Redis is down; every operation degrades to a no-op.
func New(addr string, ttl time.Duration) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping().Err(); err != nil {
		log.Printf("WARN: redis cache unreachable - %v", err)
	}
	return &Cache{client: client, ttl: ttl}
}

// Get unmarshals the cached value for key into out, reporting a hit.
func (c *Cache) Get(key string, out interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}
	data, err := c.client.Get(key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("WARN: cache get %v failed - %v", key, err)
		}
		return false
	}
	if err = json.Unmarshal(data, out); err != nil {
		log.Printf("WARN: cache entry %v is corrupt - %v", key, err)
		return false
	}
	return true
}

// Set stores value under key with the configured TTL.
func (c *Cache) Set(key string, value interface{}) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("WARN: cache set %v failed to marshal - %v", key, err)
		return
	}
	if err = c.client.Set(key, data, c.ttl).Err(); err != nil {
		log.Printf("WARN: cache set %v failed - %v", key, err)
	}
}

// Invalidate drops the given keys.
func (c *Cache) Invalidate(keys ...string) {
	if c == nil || c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(keys...).Err(); err != nil {
		log.Printf("WARN: cache invalidation failed - %v", err)
	}
}

// Close releases the client.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
