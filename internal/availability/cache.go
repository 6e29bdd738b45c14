package availability

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/SuperK55/aluri-back-sub001/pkg/logging"
	"github.com/redis/go-redis/v9"
)

const resourceCachePrefix = "availability:resource:"

// CachedResourceStore is a read-through Redis cache in front of a ResourceStore.
// Cache failures degrade to the underlying store.
type CachedResourceStore struct {
	next   ResourceStore
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedResourceStore wraps next with a Redis cache.
func NewCachedResourceStore(next ResourceStore, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedResourceStore {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedResourceStore{next: next, redis: client, ttl: ttl, logger: logger}
}

func (c *CachedResourceStore) GetResource(ctx context.Context, resourceID string) (*Resource, error) {
	if c.redis == nil {
		return c.next.GetResource(ctx, resourceID)
	}
	key := resourceCachePrefix + resourceID
	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var res Resource
		if jsonErr := json.Unmarshal(data, &res); jsonErr == nil {
			return &res, nil
		}
		c.logger.Warn("availability cache: discarding unreadable entry", "resource_id", resourceID)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("availability cache: read failed", "resource_id", resourceID, "error", err)
	}

	res, err := c.next.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(res); err == nil {
		if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("availability cache: write failed", "resource_id", resourceID, "error", err)
		}
	}
	return res, nil
}

func (c *CachedResourceStore) ListPeers(ctx context.Context, ownerID, excludeResourceID string) ([]Resource, error) {
	return c.next.ListPeers(ctx, ownerID, excludeResourceID)
}
