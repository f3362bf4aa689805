package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb redis.Cmdable, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Dedup tracks already-handled ids for one consumer, keyed by KeyDedup.
type Dedup struct {
	Redis   redis.Cmdable
	Service string
	TTL     time.Duration
}

func (d *Dedup) key(id string) string { return fmt.Sprintf(KeyDedup, d.Service, id) }

func (d *Dedup) Seen(ctx context.Context, id string) (bool, error) {
	return Exists(ctx, d.Redis, d.key(id))
}

func (d *Dedup) Mark(ctx context.Context, id string) error {
	ttl := d.TTL
	if ttl == 0 {
		ttl = TTLDedup
	}
	return d.Redis.Set(ctx, d.key(id), "1", ttl).Err()
}
