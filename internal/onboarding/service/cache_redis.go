package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	id "onramp/pkg/domain"
)

const payloadKeyPrefix = "onboarding:payload:"

// RedisPayloadCache caches assembled onboarding payloads in Redis. A cache
// failure is logged and treated as a miss; reads must keep working when Redis
// is down.
type RedisPayloadCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisPayloadCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisPayloadCache {
	return &RedisPayloadCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisPayloadCache) Get(ctx context.Context, driverID id.DriverID) (*OnboardingPayload, bool) {
	raw, err := c.client.Get(ctx, payloadKeyPrefix+driverID.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "payload cache read failed", "driver_id", driverID.String(), "error", err)
		}
		return nil, false
	}
	var payload OnboardingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.logger.WarnContext(ctx, "payload cache decode failed", "driver_id", driverID.String(), "error", err)
		return nil, false
	}
	return &payload, true
}

func (c *RedisPayloadCache) Set(ctx context.Context, driverID id.DriverID, payload *OnboardingPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.WarnContext(ctx, "payload cache encode failed", "driver_id", driverID.String(), "error", err)
		return
	}
	if err := c.client.Set(ctx, payloadKeyPrefix+driverID.String(), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "payload cache write failed", "driver_id", driverID.String(), "error", err)
	}
}

func (c *RedisPayloadCache) Invalidate(ctx context.Context, driverID id.DriverID) {
	if err := c.client.Del(ctx, payloadKeyPrefix+driverID.String()).Err(); err != nil {
		c.logger.WarnContext(ctx, "payload cache invalidate failed", "driver_id", driverID.String(), "error", err)
	}
}
