// Package contentcache provides a Redis-backed read-through cache for
// generated module content. With no Redis address configured the cache
// degrades to a no-op and every lookup is a miss.
package contentcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillatlas/skillatlas/internal/models"
)

const defaultTTL = 24 * time.Hour

// Cache caches generated module content keyed by course and module ID.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at redisAddr. An empty address yields a
// disabled cache.
func New(ctx context.Context, redisAddr string) (*Cache, error) {
	if redisAddr == "" {
		return &Cache{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/contentcache/contentcache.go/New(): error while `client.Ping()` calling: %w",
				err,
			)
	}

	return &Cache{
		client: client,
		ttl:    defaultTTL,
	}, nil
}

func cacheKey(courseID, moduleID string) string {
	return "module_content:" + courseID + ":" + moduleID
}

// Get fetches cached module content. A disabled cache always misses.
func (c *Cache) Get(ctx context.Context, courseID, moduleID string) (*models.ModuleContent, bool, error) {
	if c.client == nil {
		return nil, false, nil
	}

	data, err := c.client.Get(ctx, cacheKey(courseID, moduleID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var content models.ModuleContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, false, err
	}

	return &content, true, nil
}

// Set stores module content under the cache TTL. A disabled cache
// silently accepts the write.
func (c *Cache) Set(ctx context.Context, courseID, moduleID string, content *models.ModuleContent) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf(
			"in internal/contentcache/contentcache.go/Set(): error while `json.Marshal()` calling: %w",
			err,
		)
	}

	return c.client.Set(ctx, cacheKey(courseID, moduleID), data, c.ttl).Err()
}

// Close releases the Redis connection if one was opened.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}

	return c.client.Close()
}
