package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/recyclepay/backend/internal/models"
)

// StatsCache stores derived UserStats. Every Invalidate bumps a per-user
// version; Get only returns a value written under the current version, so a
// recompute that raced an invalidation is never served afterwards.
type StatsCache interface {
	// Get returns the cached stats (nil on miss) and the current version.
	Get(ctx context.Context, userID string) (*models.UserStats, int64, error)
	// Set stores stats tagged with stats.Version.
	Set(ctx context.Context, stats *models.UserStats) error
	Invalidate(ctx context.Context, userID string) error
}

type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStatsCache(client *redis.Client, ttl time.Duration) *RedisStatsCache {
	return &RedisStatsCache{client: client, ttl: ttl}
}

func statsKey(userID string) string { return "stats:" + userID }
func statsVersionKey(userID string) string { return "stats:version:" + userID }

func (c *RedisStatsCache) Get(ctx context.Context, userID string) (*models.UserStats, int64, error) {
	version, err := c.client.Get(ctx, statsVersionKey(userID)).Int64()
	if err != nil && err != redis.Nil {
		return nil, 0, err
	}

	data, err := c.client.Get(ctx, statsKey(userID)).Result()
	if err == redis.Nil {
		return nil, version, nil
	}
	if err != nil {
		return nil, version, err
	}

	var stats models.UserStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, version, nil
	}
	if stats.Version != version {
		return nil, version, nil
	}
	return &stats, version, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, stats *models.UserStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statsKey(stats.UserID), string(data), c.ttl).Err()
}

func (c *RedisStatsCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Incr(ctx, statsVersionKey(userID)).Err(); err != nil {
		return err
	}
	return c.client.Del(ctx, statsKey(userID)).Err()
}

// noStatsCache is used when Redis is unavailable: every read recomputes.
type noStatsCache struct{}

func (noStatsCache) Get(context.Context, string) (*models.UserStats, int64, error) { return nil, 0, nil }
func (noStatsCache) Set(context.Context, *models.UserStats) error                  { return nil }
func (noStatsCache) Invalidate(context.Context, string) error                      { return nil }
