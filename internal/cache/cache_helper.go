package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache errors
var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")
)

// CacheHelper provides prefixed Redis operations
type CacheHelper struct {
	client *redis.Client
	prefix string
}

// NewCacheHelper creates a new cache helper instance
func NewCacheHelper(client *redis.Client, prefix string) *CacheHelper {
	return &CacheHelper{
		client: client,
		prefix: prefix,
	}
}

// CacheConfig defines cache configuration for different data types
type CacheConfig struct {
	TTL    time.Duration
	Prefix string
}

var (
	// Candidate session state: submission markers, locks and in-progress markers.
	// Entries in here carry their own TTL.
	StateCacheConfig = CacheConfig{
		Prefix: "hirescribe:state:",
	}

	// Generated AI insights, per assessment
	InsightCacheConfig = CacheConfig{
		TTL:    30 * time.Minute,
		Prefix: "hirescribe:insight:",
	}

	// Persisted assessments read by the admin dashboard
	AssessmentCacheConfig = CacheConfig{
		TTL:    5 * time.Minute,
		Prefix: "hirescribe:assessment:",
	}
)

// GetCacheKey generates a cache key with prefix
func (c *CacheHelper) GetCacheKey(key string) string {
	return fmt.Sprintf("%s%s", c.prefix, key)
}

// Available reports whether a Redis client is attached.
func (c *CacheHelper) Available() bool {
	return c != nil && c.client != nil
}

// Get retrieves and unmarshals data from cache
func (c *CacheHelper) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.GetString(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}

	return nil
}

// Set marshals and stores data in cache
func (c *CacheHelper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil // Graceful degradation when cache not available
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	return c.client.Set(ctx, c.GetCacheKey(key), data, ttl).Err()
}

// SetString stores string data in cache. A zero ttl keeps the key forever.
func (c *CacheHelper) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}

	return c.client.Set(ctx, c.GetCacheKey(key), value, ttl).Err()
}

// GetString retrieves string data from cache
func (c *CacheHelper) GetString(ctx context.Context, key string) (string, error) {
	if c.client == nil {
		return "", ErrCacheNotAvailable
	}

	result, err := c.client.Get(ctx, c.GetCacheKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheNotFound
		}
		// Sanitize error to prevent log injection
		return "", fmt.Errorf("cache get string error: %w", err)
	}

	return result, nil
}

// SetNX stores value only when key does not exist yet and reports whether
// it was written.
func (c *CacheHelper) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	if c.client == nil {
		return false, ErrCacheNotAvailable
	}

	ok, err := c.client.SetNX(ctx, c.GetCacheKey(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache setnx error: %w", err)
	}
	return ok, nil
}

// Delete removes data from cache using pipeline for multiple keys
func (c *CacheHelper) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}

	cacheKeys := make([]string, len(keys))
	for i, key := range keys {
		cacheKeys[i] = c.GetCacheKey(key)
	}

	if len(cacheKeys) > 1 {
		pipe := c.client.Pipeline()
		pipe.Del(ctx, cacheKeys...)
		_, err := pipe.Exec(ctx)
		return err
	}

	return c.client.Del(ctx, cacheKeys...).Err()
}

// Exists checks if a key exists in cache
func (c *CacheHelper) Exists(ctx context.Context, key string) (bool, error) {
	if c.client == nil {
		return false, ErrCacheNotAvailable
	}

	count, err := c.client.Exists(ctx, c.GetCacheKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists error: %w", err)
	}

	return count > 0, nil
}

// ScanKeys returns the unprefixed keys matching a glob pattern. It uses
// SCAN instead of KEYS.
func (c *CacheHelper) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	if c.client == nil {
		return nil, ErrCacheNotAvailable
	}

	fullPattern := c.GetCacheKey(pattern)
	var cursor uint64
	var keys []string

	for {
		var scanKeys []string
		var err error
		scanKeys, cursor, err = c.client.Scan(ctx, cursor, fullPattern, 100).Result()
		if err != nil {
			slog.ErrorContext(ctx, "Cache scan pattern error",
				"error", err,
				"pattern", fullPattern)
			return nil, fmt.Errorf("cache scan pattern error: %w", err)
		}
		for _, k := range scanKeys {
			keys = append(keys, strings.TrimPrefix(k, c.prefix))
		}
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// InvalidatePattern removes all keys matching a pattern and returns how
// many were removed.
func (c *CacheHelper) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	if c.client == nil {
		return 0, nil
	}

	keys, err := c.ScanKeys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := c.client.Pipeline()
	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := make([]string, 0, end-i)
		for _, k := range keys[i:end] {
			batch = append(batch, c.GetCacheKey(k))
		}
		pipe.Del(ctx, batch...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		slog.ErrorContext(ctx, "Cache pipeline delete error",
			"error", err,
			"total_keys", len(keys))
		return 0, fmt.Errorf("cache pipeline delete error: %w", err)
	}

	return len(keys), nil
}

// CacheOrExecute implements cache-aside pattern with proper error handling
func (c *CacheHelper) CacheOrExecute(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetchFunc func() (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}

	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheNotAvailable) {
		slog.Info("Cache get error, proceeding to fetch", "error", err, "key", key)
	}

	value, err := fetchFunc()
	if err != nil {
		return fmt.Errorf("fetch function error: %w", err)
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		slog.Error("Cache set error", "error", err, "key", key)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal result error: %w", err)
	}

	return json.Unmarshal(data, dest)
}

// CacheManager manages the cache helpers of the service
type CacheManager struct {
	State      *CacheHelper
	Insight    *CacheHelper
	Assessment *CacheHelper
}

// NewCacheManager creates cache manager with all cache helpers
func NewCacheManager(client *redis.Client) *CacheManager {
	return &CacheManager{
		State:      NewCacheHelper(client, StateCacheConfig.Prefix),
		Insight:    NewCacheHelper(client, InsightCacheConfig.Prefix),
		Assessment: NewCacheHelper(client, AssessmentCacheConfig.Prefix),
	}
}

// HealthCheck verifies cache connectivity
func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if !cm.State.Available() {
		return ErrCacheNotAvailable
	}

	if _, err := cm.State.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}

	return nil
}

// InvalidateAssessment drops the cached copy and insights of one assessment.
func (cm *CacheManager) InvalidateAssessment(ctx context.Context, assessmentID string) {
	SafeDelete(ctx, cm.Assessment, "id:"+assessmentID)
	SafeDelete(ctx, cm.Insight, "id:"+assessmentID)
	SafeInvalidatePattern(ctx, cm.Assessment, "list:*")
}
