// Package rediscache is the distributed implementation of progress.Cache,
// so execution progress survives across the multiple worker processes a
// deployment runs behind a load balancer. Grounded on kvstore/rediskv's
// use of github.com/redis/go-redis/v9 as the shared-state layer for the
// same class of problem (the Memory Store's remote backend).
package rediscache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend is a progress.Cache backed by Redis SETEX/GET.
type Backend struct {
	client *redis.Client
}

// New wraps an existing *redis.Client as a progress.Cache.
func New(client *redis.Client) *Backend {
	return &Backend{client: client}
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}
