package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedSource is a Redis read-through cache in front of another RoleSource.
// Role lookups sit on the transition hot path; the TTL bounds how stale a
// revoked role can appear.
type CachedSource struct {
	inner  RoleSource
	client *redis.Client
	ttl    time.Duration
}

func NewCachedSource(inner RoleSource, client *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{inner: inner, client: client, ttl: ttl}
}

func cacheKey(agentID string) string {
	return "roles:" + agentID
}

func (c *CachedSource) GetRoles(ctx context.Context, agentID string) ([]Role, error) {
	raw, err := c.client.Get(ctx, cacheKey(agentID)).Result()
	if err == nil {
		var held []Role
		if jsonErr := json.Unmarshal([]byte(raw), &held); jsonErr == nil {
			return held, nil
		}
		// Corrupt entry: fall through to the source and overwrite.
	} else if err != redis.Nil {
		// Cache outage is not a role-source outage; fall back to the inner
		// source rather than failing the lookup.
		held, innerErr := c.inner.GetRoles(ctx, agentID)
		if innerErr != nil {
			return nil, fmt.Errorf("role cache and source both failed: %v / %w", err, innerErr)
		}
		return held, nil
	}

	held, err := c.inner.GetRoles(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if encoded, jsonErr := json.Marshal(held); jsonErr == nil {
		c.client.Set(ctx, cacheKey(agentID), encoded, c.ttl)
	}
	return held, nil
}

// Invalidate drops the cached entry, forcing the next lookup to the source.
func (c *CachedSource) Invalidate(ctx context.Context, agentID string) error {
	return c.client.Del(ctx, cacheKey(agentID)).Err()
}
