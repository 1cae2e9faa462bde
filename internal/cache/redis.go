package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/engine"
)

// ResultCache handles Redis-based caching of classification results, keyed by
// a hash of the canonical record serialization. The engine itself stays pure;
// the cache is only a lookup in front of it.
type ResultCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	hits   int64
	misses int64
}

// NewResultCache creates a new Redis-based result cache
func NewResultCache(config *Config, logger *zap.Logger) (*ResultCache, error) {
	// Parse Redis URL
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	rc := &ResultCache{
		client: client,
		config: config,
		logger: logger,
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rc.client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Result cache initialized successfully",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return rc, nil
}

// RecordKey derives a deterministic cache key for a record. encoding/json
// sorts map keys, so equal records always produce equal keys.
func RecordKey(prefix string, record engine.Record) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to serialize record: %w", err)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:record:%s", prefix, hex.EncodeToString(hash[:])), nil
}

// Key derives the cache key for a record using this cache's configured prefix.
func (rc *ResultCache) Key(record engine.Record) (string, error) {
	return RecordKey(rc.config.KeyPrefix, record)
}

// Get looks up a cached classification result. A nil result with nil error is
// a cache miss.
func (rc *ResultCache) Get(ctx context.Context, key string) (*CachedResult, error) {
	data, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		atomic.AddInt64(&rc.misses, 1)
		rc.logger.Debug("Cache miss", zap.String("key", key))
		return nil, nil
	} else if err != nil {
		atomic.AddInt64(&rc.misses, 1)
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}

	var result CachedResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		rc.logger.Error("Failed to unmarshal cached result", zap.Error(err))
		// Delete corrupted cache entry
		rc.client.Del(ctx, key)
		atomic.AddInt64(&rc.misses, 1)
		return nil, nil
	}

	atomic.AddInt64(&rc.hits, 1)
	return &result, nil
}

// Set stores a classification result under the given key with the default TTL.
func (rc *ResultCache) Set(ctx context.Context, key string, result *CachedResult) error {
	if result.CachedAt.IsZero() {
		result.CachedAt = time.Now()
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := rc.client.Set(ctx, key, data, rc.config.DefaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	return nil
}

// GetStats returns cache performance statistics
func (rc *ResultCache) GetStats(ctx context.Context) (*CacheStats, error) {
	hits := atomic.LoadInt64(&rc.hits)
	misses := atomic.LoadInt64(&rc.misses)

	stats := &CacheStats{
		Hits:   hits,
		Misses: misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total) * 100
	}

	keys, err := rc.client.DBSize(ctx).Result()
	if err != nil {
		rc.logger.Warn("Failed to get cache key count", zap.Error(err))
	} else {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Clear removes all cached results under this cache's key prefix.
func (rc *ResultCache) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("%s:record:*", rc.config.KeyPrefix)

	iter := rc.client.Scan(ctx, 0, pattern, 0).Iterator()
	var deleted int64
	for iter.Next(ctx) {
		if err := rc.client.Del(ctx, iter.Val()).Err(); err != nil {
			rc.logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan failed: %w", err)
	}

	rc.logger.Info("Cache cleared", zap.Int64("deleted_keys", deleted))
	return nil
}

// Close closes the Redis connection
func (rc *ResultCache) Close() error {
	return rc.client.Close()
}

// maskRedisURL masks credentials in a Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				userParts[len(userParts)-1] = "***"
				parts[0] = strings.Join(userParts, ":")
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
