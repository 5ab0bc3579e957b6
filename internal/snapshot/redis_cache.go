package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
)

// RedisCache keeps the latest snapshot document in Redis. Each run is stored under its own
// key and the current key points at the newest run; both writes happen in one MULTI/EXEC.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ Publisher = (*RedisCache)(nil)

// NewRedisClient opens a client for cfg.
func NewRedisClient(cfg appconfig.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisCache creates a RedisCache. Run keys expire after ttl; zero keeps them forever.
func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// Name implements Publisher.
func (c *RedisCache) Name() string { return "redis" }

// CurrentKey holds the run id of the newest snapshot.
func (c *RedisCache) CurrentKey() string { return c.prefix + ":current" }

// RunKey holds the document of one run.
func (c *RedisCache) RunKey(runID string) string { return c.prefix + ":run:" + runID }

// Publish stores doc and repoints the current key at it.
func (c *RedisCache) Publish(ctx context.Context, doc *Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot document: %w", err)
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.RunKey(doc.RunID), payload, c.ttl)
		pipe.Set(ctx, c.CurrentKey(), doc.RunID, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to swap cached snapshot: %w", err)
	}
	return nil
}

// Current reads the newest cached document.
func (c *RedisCache) Current(ctx context.Context) (*Document, error) {
	runID, err := c.client.Get(ctx, c.CurrentKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	payload, err := c.client.Get(ctx, c.RunKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("cached run %s has expired: %w", runID, ErrNoSnapshot)
	}
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode cached snapshot %s: %w", runID, err)
	}
	return &doc, nil
}
