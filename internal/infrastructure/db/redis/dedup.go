package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDedupTTL = time.Hour

// Deduper provides at-most-once claims on idempotency keys backed by Redis.
// Key format: dedup:<idempotency_key>
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDeduper creates a Deduper wrapping the given Redis client. Keys expire
// after ttl, or after an hour when ttl is not positive.
func NewDeduper(client *redis.Client, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &Deduper{client: client, ttl: ttl}
}

// Claim atomically marks key as in progress. It reports false when another
// worker already claimed or completed it.
func (d *Deduper) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(key), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim: %w", err)
	}
	return ok, nil
}

// Release drops a claim so that a failed command can be retried.
func (d *Deduper) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.key(key)).Err(); err != nil {
		return fmt.Errorf("dedup release: %w", err)
	}
	return nil
}

func (d *Deduper) key(k string) string {
	return "dedup:" + k
}
