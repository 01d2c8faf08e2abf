package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/ports"
)

const keyPrefix = "contentorchestrator:content:"

// Redis shares generated results between orchestrator instances.
// Backend failures are logged and reported as misses.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.ContentCache = (*Redis)(nil)

// NewRedis connects to addr and verifies the connection with a ping.
func NewRedis(addr, password string, db int, ttl time.Duration, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, ttl: ttl, logger: logger}, nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) (domain.ContentResult, bool) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return domain.ContentResult{}, false
	}

	var result domain.ContentResult
	if err := json.Unmarshal(data, &result); err != nil {
		r.logger.Warn("cache entry corrupt", "key", key, "error", err)
		return domain.ContentResult{}, false
	}
	return result, true
}

func (r *Redis) Set(ctx context.Context, key string, result domain.ContentResult) {
	data, err := json.Marshal(result)
	if err != nil {
		r.logger.Warn("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, keyPrefix+key, data, r.ttl).Err(); err != nil {
		r.logger.Warn("cache set failed", "key", key, "error", err)
	}
}
