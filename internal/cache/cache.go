package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/models"
)

// PageCache stores rendered listing pages. A miss is reported as ok=false
// with a nil error.
type PageCache interface {
	Get(ctx context.Context, key string) (models.PageResult, bool, error)
	Set(ctx context.Context, key string, page models.PageResult) error
	Close() error
}

// Key scopes a request fingerprint to one dataset version, so a reload makes
// every earlier entry unreachable without deleting it.
func Key(prefix string, version int64, fingerprint string) string {
	return fmt.Sprintf("%sv%d:%s", prefix, version, fingerprint)
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) (models.PageResult, bool, error) {
	return models.PageResult{}, false, nil
}

func (Noop) Set(context.Context, string, models.PageResult) error { return nil }

func (Noop) Close() error { return nil }

type Redis struct {
	client     *redis.Client
	ttl        time.Duration
	ownsClient bool
	logger     *slog.Logger
}

// NewRedis connects to the configured server and checks it with a ping.
func NewRedis(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout+time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	c := NewRedisWithClient(client, cfg.TTL, logger)
	c.ownsClient = true
	return c, nil
}

// NewRedisWithClient wraps an existing client. The caller keeps ownership of
// client and Close leaves it open.
func NewRedisWithClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (c *Redis) Get(ctx context.Context, key string) (models.PageResult, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.PageResult{}, false, nil
	}
	if err != nil {
		return models.PageResult{}, false, fmt.Errorf("get %s: %w", key, err)
	}

	var page models.PageResult
	if err := json.Unmarshal(data, &page); err != nil {
		c.logger.Warn("dropping corrupt cache entry", "key", key, "error", err)
		_ = c.client.Del(ctx, key).Err()
		return models.PageResult{}, false, nil
	}
	return page, true, nil
}

func (c *Redis) Set(ctx context.Context, key string, page models.PageResult) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (c *Redis) Close() error {
	if !c.ownsClient {
		return nil
	}
	return c.client.Close()
}
