package nearclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	goredis "github.com/redis/go-redis/v9"

	"github.com/zavodil/near-social-auth/internal/platform/redis"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "near_auth_access_key_cache_hits_total",
		Help: "Access key list lookups served from Redis",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "near_auth_access_key_cache_misses_total",
		Help: "Access key list lookups that went to the RPC node",
	})
)

const cacheKeyPrefix = "near:ak:"

// CachedLister fronts an AccessKeyLister with a short-TTL Redis cache so a
// burst of verifications for the same account does not hammer the RPC node.
// The cache is best effort: Redis failures fall through to the node.
type CachedLister struct {
	next   AccessKeyLister
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedLister wraps next with the cache. A nil client returns next
// unchanged, so callers can wire it unconditionally.
func NewCachedLister(next AccessKeyLister, client *redis.Client, ttl time.Duration, logger *slog.Logger) AccessKeyLister {
	if client == nil {
		return next
	}
	return &CachedLister{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *CachedLister) ListAccessKeys(ctx context.Context, accountID string) ([]AccessKey, error) {
	key := cacheKeyPrefix + accountID

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var keys []AccessKey
		if err := json.Unmarshal(raw, &keys); err == nil {
			cacheHits.Inc()
			return keys, nil
		}
		// Undecodable entry: drop it and refetch.
		_ = c.client.Del(ctx, key).Err()
	} else if !errors.Is(err, goredis.Nil) {
		c.logger.WarnContext(ctx, "access key cache read failed", "account_id", accountID, "error", err)
	}

	cacheMisses.Inc()
	keys, err := c.next.ListAccessKeys(ctx, accountID)
	if err != nil {
		// Negative results (including unknown accounts) are not cached; the
		// account may be created or re-keyed at any moment.
		return nil, err
	}

	if encoded, err := json.Marshal(keys); err == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "access key cache write failed", "account_id", accountID, "error", err)
		}
	}
	return keys, nil
}
