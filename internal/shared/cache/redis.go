package cache

import (
	"context"
	"time"

	"github.com/chopshop/server/internal/shared/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates the Redis client backing the catalog read-through
// cache. The connection check is bounded so a down Redis cannot stall
// startup; the caller degrades to direct reads on error.
func NewRedisClient(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Close closes the Redis client.
func Close(client redis.UniversalClient) error {
	return client.Close()
}
