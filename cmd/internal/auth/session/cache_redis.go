package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"taskbridge/cmd/security/secret"
)

const (
	cacheKeyPrefix = "taskbridge:session:"
	cacheOpTimeout = 250 * time.Millisecond
)

// RedisCache is a read-through Store decorator. Only active sessions are
// cached, each for min(ttl, time until expiry). Redis failures fall through to
// the wrapped store.
//
// A session revoked at the identity provider stays resolvable from the cache for
// at most ttl.
type RedisCache struct {
	next Store
	rdb  redis.UniversalClient
	ttl  time.Duration
	log  *slog.Logger
}

// NewRedisCache wraps next with a Redis-backed cache.
func NewRedisCache(next Store, rdb redis.UniversalClient, ttl time.Duration, log *slog.Logger) *RedisCache {
	if log == nil {
		log = slog.Default()
	}
	return &RedisCache{next: next, rdb: rdb, ttl: ttl, log: log}
}

func cacheKey(token string) string {
	return cacheKeyPrefix + secret.HashSHA256Hex(token)
}

func (c *RedisCache) FindActive(ctx context.Context, token string, now time.Time) (Identity, error) {
	key := cacheKey(token)

	if id, ok := c.get(ctx, key); ok && id.Active(now) {
		return id, nil
	}

	id, err := c.next.FindActive(ctx, token, now)
	if err != nil {
		return Identity{}, err
	}

	if ttl := min(c.ttl, id.Session.ExpiresAt.Sub(now)); ttl > 0 {
		c.set(ctx, key, id, ttl)
	}
	return id, nil
}

// Invalidate drops the cached entry for token.
func (c *RedisCache) Invalidate(ctx context.Context, token string) error {
	cctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	return c.rdb.Del(cctx, cacheKey(token)).Err()
}

func (c *RedisCache) get(ctx context.Context, key string) (Identity, bool) {
	cctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	raw, err := c.rdb.Get(cctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("session.cache.get.fail", "err", err)
		}
		return Identity{}, false
	}

	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		c.log.Warn("session.cache.decode.fail", "err", err)
		return Identity{}, false
	}
	return id, true
}

func (c *RedisCache) set(ctx context.Context, key string, id Identity, ttl time.Duration) {
	raw, err := json.Marshal(id)
	if err != nil {
		c.log.Warn("session.cache.encode.fail", "err", err)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	if err := c.rdb.Set(cctx, key, raw, ttl).Err(); err != nil {
		c.log.Warn("session.cache.set.fail", "err", err)
	}
}
