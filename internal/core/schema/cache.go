package schema

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/inkwell/internal/platform/constants"
)

// specCacheTTL bounds staleness if an invalidation is ever lost.
const specCacheTTL = 5 * time.Minute

// Cache is a Redis-backed cache for the current schema specification.
//
// Every content operation needs the schema, so the specification is the
// hottest read in the system. Cache failures are deliberately soft: a broken
// Redis degrades to direct repository reads and a warning log, never to a
// request failure.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCache constructs a specification cache on top of a Redis client.
func NewCache(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

func (cache *Cache) key() string {
	return constants.RedisPrefixSchemaSpec + "current"
}

// Get returns the cached specification, reporting whether one was present.
func (cache *Cache) Get(context context.Context) (Spec, bool) {
	raw, err := cache.client.Get(context, cache.key()).Bytes()
	if err != nil {
		if err != redis.Nil {
			cache.logger.Warn("schema cache read failed", slog.String("error", err.Error()))
		}
		return Spec{}, false
	}

	var spec Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		cache.logger.Warn("schema cache entry corrupt, dropping", slog.String("error", err.Error()))
		cache.Invalidate(context)
		return Spec{}, false
	}

	return spec, true
}

// Set stores the specification.
func (cache *Cache) Set(context context.Context, spec Spec) {
	raw, err := json.Marshal(spec)
	if err != nil {
		return
	}
	if err := cache.client.Set(context, cache.key(), raw, specCacheTTL).Err(); err != nil {
		cache.logger.Warn("schema cache write failed", slog.String("error", err.Error()))
	}
}

// Invalidate drops the cached specification after an update.
func (cache *Cache) Invalidate(context context.Context) {
	if err := cache.client.Del(context, cache.key()).Err(); err != nil {
		cache.logger.Warn("schema cache invalidation failed", slog.String("error", err.Error()))
	}
}
