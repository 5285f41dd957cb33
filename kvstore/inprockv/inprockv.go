// Package inprockv provides the Memory Store's guaranteed-available
// fallback backend: a thread-safe in-process map. It never fails to Ping
// and is always last in a Manager's backend priority list (spec.md §4.1).
package inprockv

import (
	"context"
	"sync"

	"github.com/dshills/orchestrator/kvstore"
)

// Backend is an in-process, process-lifetime-only Memory Store backend.
type Backend struct {
	mu   sync.RWMutex
	data map[string]entry
}

type entry struct {
	namespace string
	name      string
	value     []byte
}

// New returns an empty in-process backend.
func New() *Backend {
	return &Backend{data: make(map[string]entry)}
}

func compositeKey(namespace, name string) string { return namespace + ":" + name }

// Name implements kvstore.Backend.
func (b *Backend) Name() string { return "inproc" }

// Ping implements kvstore.Backend; the in-process map is always reachable.
func (b *Backend) Ping(ctx context.Context) bool { return true }

// Get implements kvstore.Backend.
func (b *Backend) Get(ctx context.Context, namespace, name string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.data[compositeKey(namespace, name)]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set implements kvstore.Backend.
func (b *Backend) Set(ctx context.Context, namespace, name string, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[compositeKey(namespace, name)] = entry{namespace: namespace, name: name, value: value}
}

// Clear implements kvstore.Backend.
func (b *Backend) Clear(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[string]entry)
}

// Entries implements kvstore.Backend.
func (b *Backend) Entries(ctx context.Context) []kvstore.Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]kvstore.Entry, 0, len(b.data))
	for _, e := range b.data {
		out = append(out, kvstore.Entry{Namespace: e.namespace, Name: e.name, Value: e.value})
	}
	return out
}

var _ kvstore.Backend = (*Backend)(nil)
