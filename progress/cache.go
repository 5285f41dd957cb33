// Package progress implements the Progress Reporter (spec.md §4.7): the
// kernel's hook interface is a no-op by default, but a polling client
// needs to read execution progress out-of-band while a workflow runs.
// PollingReporter writes each hook's ExecutionState snapshot into a shared
// Cache under key "execution_<id>", so a separate status-check request can
// read it without touching the kernel goroutine directly.
//
// Grounded on original_source/api/orchestration/polling_executor.py's
// PollingExecutor (cache key shape, ~300s TTL, the status/currentNodeId/
// completedNodes/errorNodes/trace/steps/final/error/timestamp record
// fields already modeled by workflow.ExecutionState).
package progress

import (
	"context"
	"sync"
	"time"
)

// TTL is how long an execution's cache record survives without a refresh,
// matching polling_executor.py's 300-second cache timeout.
const TTL = 300 * time.Second

// Cache is the shared store PollingReporter writes execution records into.
// rediscache.Backend is the distributed implementation; InProcess is a
// single-process fallback for tests and single-instance deployments.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// InProcess is a Cache backed by an in-memory map, expiring entries lazily
// on read. Grounded on kvstore.Manager's own sync.Mutex-guarded map style
// rather than an actor-goroutine: the teacher's codebase protects shared
// mutable state with a plain mutex throughout (kvstore.Manager, the
// scheduler's heap), and a cache record update is a single map write, not
// a multi-step transaction, so a mutex is the idiomatic fit here too.
type InProcess struct {
	mu      sync.Mutex
	entries map[string]inProcessEntry
}

type inProcessEntry struct {
	value    []byte
	deadline time.Time
}

// NewInProcess returns an empty in-memory cache.
func NewInProcess() *InProcess {
	return &InProcess{entries: make(map[string]inProcessEntry)}
}

func (c *InProcess) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = inProcessEntry{value: append([]byte(nil), value...), deadline: time.Now().Add(ttl)}
	return nil
}

func (c *InProcess) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.deadline) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// CacheKey builds the "execution_<id>" cache key polling_executor.py uses.
func CacheKey(executionID string) string {
	return "execution_" + executionID
}
