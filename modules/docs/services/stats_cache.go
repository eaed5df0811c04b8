package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StatsCache keeps the per-tenant status counts in redis for a short TTL.
// Callers treat it as best effort: a redis failure reads as a miss and writes
// are fire-and-forget.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if client == nil {
		return nil
	}
	return &StatsCache{client: client, ttl: ttl}
}

func (c *StatsCache) key(tenantID uuid.UUID) string {
	return fmt.Sprintf("docflow:change_requests:stats:{%s}", tenantID)
}

func (c *StatsCache) Get(ctx context.Context, tenantID uuid.UUID) (map[string]int, bool) {
	raw, err := c.client.Get(ctx, c.key(tenantID)).Result()
	if err != nil {
		return nil, false
	}
	var counts map[string]int
	if err := json.Unmarshal([]byte(raw), &counts); err != nil {
		return nil, false
	}
	return counts, true
}

func (c *StatsCache) Set(ctx context.Context, tenantID uuid.UUID, counts map[string]int) {
	raw, err := json.Marshal(counts)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(tenantID), raw, c.ttl).Err()
}

func (c *StatsCache) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	_ = c.client.Del(ctx, c.key(tenantID)).Err()
}
