package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "catalog:"

// cachedRepository is a read-through cache in front of a Repository.
// Staleness only affects quoting; accepted orders snapshot their price.
type cachedRepository struct {
	Repository

	rdb redis.UniversalClient
	ttl time.Duration
	log *zap.Logger
}

// NewCachedRepository wraps repo with a redis read-through cache. A nil redis
// client disables caching and returns repo unchanged.
func NewCachedRepository(repo Repository, rdb redis.UniversalClient, ttl time.Duration, log *zap.Logger) Repository {
	if rdb == nil {
		return repo
	}
	return &cachedRepository{Repository: repo, rdb: rdb, ttl: ttl, log: log}
}

func (c *cachedRepository) GetItemByCode(ctx context.Context, code string) (*Item, error) {
	key := cacheKeyPrefix + "item:" + code
	var item Item
	if ok := c.get(ctx, key, &item); ok {
		return &item, nil
	}

	fresh, err := c.Repository.GetItemByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, fresh)
	return fresh, nil
}

func (c *cachedRepository) ListActiveItems(ctx context.Context) ([]*Item, error) {
	key := cacheKeyPrefix + "items:active"
	var items []*Item
	if ok := c.get(ctx, key, &items); ok {
		return items, nil
	}

	fresh, err := c.Repository.ListActiveItems(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, fresh)
	return fresh, nil
}

func (c *cachedRepository) GetModifiersByCodes(ctx context.Context, codes []string) ([]*Modifier, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	key := cacheKeyPrefix + "modifiers:" + strings.Join(sorted, ",")

	var modifiers []*Modifier
	if ok := c.get(ctx, key, &modifiers); ok {
		return modifiers, nil
	}

	fresh, err := c.Repository.GetModifiersByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, fresh)
	return fresh, nil
}

func (c *cachedRepository) GetPlanByID(ctx context.Context, id string) (*Plan, error) {
	key := cacheKeyPrefix + "plan:id:" + id
	var plan Plan
	if ok := c.get(ctx, key, &plan); ok {
		return &plan, nil
	}

	fresh, err := c.Repository.GetPlanByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, fresh)
	return fresh, nil
}

func (c *cachedRepository) get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warn("catalog cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *cachedRepository) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateItem drops the cached entry for one item code and the active list.
func InvalidateItem(ctx context.Context, rdb redis.UniversalClient, code string) error {
	if rdb == nil {
		return nil
	}
	if err := rdb.Del(ctx, cacheKeyPrefix+"item:"+code, cacheKeyPrefix+"items:active").Err(); err != nil {
		return fmt.Errorf("invalidate item cache: %w", err)
	}
	return nil
}
