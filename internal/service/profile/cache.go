package profile

import (
	"context"
	"errors"
	"log/slog"

	"eduvia/internal/models"
	"eduvia/internal/redis"
)

type profileCache struct {
	client *redis.Client
	logger *slog.Logger
}

func newProfileCache(client *redis.Client, logger *slog.Logger) *profileCache {
	return &profileCache{client: client, logger: logger}
}

func profileKey(uid string) string {
	return "profile:" + uid
}

func (c *profileCache) load(ctx context.Context, uid string) (*models.Profile, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	var p models.Profile
	if err := c.client.GetJSON(ctx, profileKey(uid), &p); err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			c.logger.WarnContext(ctx, "profile cache load failed", slog.String("uid", uid), slog.Any("error", err))
		}
		return nil, false
	}
	return &p, true
}

func (c *profileCache) store(ctx context.Context, p *models.Profile) {
	if c == nil || c.client == nil || p == nil {
		return
	}
	if err := c.client.SetJSON(ctx, profileKey(p.UID), p); err != nil {
		c.logger.WarnContext(ctx, "profile cache store failed", slog.String("uid", p.UID), slog.Any("error", err))
	}
}

func (c *profileCache) invalidate(ctx context.Context, uid string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, profileKey(uid)); err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		c.logger.WarnContext(ctx, "profile cache invalidate failed", slog.String("uid", uid), slog.Any("error", err))
	}
}
