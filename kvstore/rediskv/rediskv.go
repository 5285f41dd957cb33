// Package rediskv is a remote-KV Memory Store backend over Redis, grounded
// in the coordinator pattern of reaching for github.com/redis/go-redis/v9
// as the shared-state layer in distributed workflow runners. It sits
// between the relational backends and the in-process fallback in Manager's
// priority order (spec.md §4.1): cheaper to operate than a relational
// database, but still shared across worker processes.
package rediskv

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/dshills/orchestrator/kvstore"
)

// Backend is a Redis implementation of kvstore.Backend. Keys are stored as
// plain strings under "memstore:{namespace}:{name}"; Entries uses SCAN to
// avoid blocking the server on large keyspaces.
type Backend struct {
	client *redis.Client
	prefix string
}

// New wraps an existing *redis.Client as a Memory Store backend.
func New(client *redis.Client) *Backend {
	return &Backend{client: client, prefix: "memstore:"}
}

func (b *Backend) redisKey(namespace, name string) string {
	return b.prefix + namespace + ":" + name
}

// Name implements kvstore.Backend.
func (b *Backend) Name() string { return "redis" }

// Ping implements kvstore.Backend.
func (b *Backend) Ping(ctx context.Context) bool {
	return b.client.Ping(ctx).Err() == nil
}

// Get implements kvstore.Backend.
func (b *Backend) Get(ctx context.Context, namespace, name string) ([]byte, bool) {
	v, err := b.client.Get(ctx, b.redisKey(namespace, name)).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

// Set implements kvstore.Backend. No TTL: Memory Store values live for the
// lifetime of the backend, same as the relational backends.
func (b *Backend) Set(ctx context.Context, namespace, name string, value []byte) {
	_ = b.client.Set(ctx, b.redisKey(namespace, name), value, 0).Err()
}

// Clear implements kvstore.Backend by scanning and deleting every key under
// this backend's prefix.
func (b *Backend) Clear(ctx context.Context) {
	var cursor uint64
	for {
		keys, next, err := b.client.Scan(ctx, cursor, b.prefix+"*", 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			_ = b.client.Del(ctx, keys...).Err()
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// Entries implements kvstore.Backend by scanning every key under this
// backend's prefix and parsing namespace/name back out of it.
func (b *Backend) Entries(ctx context.Context) []kvstore.Entry {
	var out []kvstore.Entry
	var cursor uint64
	for {
		keys, next, err := b.client.Scan(ctx, cursor, b.prefix+"*", 100).Result()
		if err != nil {
			return out
		}
		for _, k := range keys {
			rest := k[len(b.prefix):]
			namespace, name := splitOnce(rest, ':')
			v, err := b.client.Get(ctx, k).Bytes()
			if err != nil {
				continue
			}
			out = append(out, kvstore.Entry{Namespace: namespace, Name: name, Value: v})
		}
		cursor = next
		if cursor == 0 {
			return out
		}
	}
}

func splitOnce(s string, sep byte) (string, string) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

var _ kvstore.Backend = (*Backend)(nil)
