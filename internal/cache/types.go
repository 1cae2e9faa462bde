package cache

import (
	"time"

	"github.com/raaihank/pii-sentinel/internal/engine"
)

// CachedResult is a classification result stored in Redis. The original
// record is never cached, only the redacted serialization.
type CachedResult struct {
	IsPII        bool             `json:"is_pii"`
	RedactedJSON string           `json:"redacted_json"`
	Findings     []engine.Finding `json:"findings,omitempty"`
	CachedAt     time.Time        `json:"cached_at"`
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes"`
}

// Config contains cache configuration
type Config struct {
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}
