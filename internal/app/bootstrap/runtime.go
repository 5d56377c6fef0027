// Package bootstrap assembles the runtime collaborators from configuration.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/odonto-agent/internal/config"
	"github.com/wolfman30/odonto-agent/internal/events"
	"github.com/wolfman30/odonto-agent/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, falling back to in-process dedup", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildDeduper shares webhook ids through Redis when available, else keeps them in process.
func BuildDeduper(client *redis.Client, cfg *appconfig.Config) events.Deduper {
	ttl := events.DefaultDedupTTL
	if cfg != nil && cfg.DedupTTL > 0 {
		ttl = cfg.DedupTTL
	}
	if d := events.NewRedisDedup(client, ttl); d != nil {
		return d
	}
	return events.NewMemoryDedup(ttl)
}
