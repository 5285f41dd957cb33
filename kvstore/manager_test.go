package kvstore

import (
	"context"
	"sync"
	"testing"

	"github.com/dshills/orchestrator/graph/emit"
)

// fakeBackend is a minimal in-memory Backend with a togglable Ping result,
// used to exercise Manager's priority resolution and migration without
// pulling in a real database or Redis.
type fakeBackend struct {
	mu      sync.Mutex
	name    string
	up      bool
	data    map[string]Entry
}

func newFakeBackend(name string, up bool) *fakeBackend {
	return &fakeBackend{name: name, up: up, data: make(map[string]Entry)}
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Ping(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.up
}

func (f *fakeBackend) Get(ctx context.Context, namespace, name string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.data[key(namespace, name)]
	if !ok {
		return nil, false
	}
	return e.Value, true
}

func (f *fakeBackend) Set(ctx context.Context, namespace, name string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key(namespace, name)] = Entry{Namespace: namespace, Name: name, Value: value}
}

func (f *fakeBackend) Clear(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = make(map[string]Entry)
}

func (f *fakeBackend) Entries(ctx context.Context) []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, 0, len(f.data))
	for _, e := range f.data {
		out = append(out, e)
	}
	return out
}

func (f *fakeBackend) setUp(up bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.up = up
}

func TestManager_PrefersHighestPriorityReachableBackend(t *testing.T) {
	ctx := context.Background()
	relational := newFakeBackend("relational", false)
	fallback := newFakeBackend("fallback", true)

	m := NewManager(emit.NewNullEmitter(), relational, fallback)

	if got := m.ActiveBackend(ctx); got != "fallback" {
		t.Fatalf("active backend = %q, want fallback (relational is down)", got)
	}

	m.Set(ctx, "ns", "key", "value")
	if v, ok := fallback.data[key("ns", "key")]; !ok {
		t.Fatalf("expected write to land on fallback, got %v", v)
	}
}

func TestManager_MigratesOnUpgrade(t *testing.T) {
	ctx := context.Background()
	relational := newFakeBackend("relational", false)
	fallback := newFakeBackend("fallback", true)

	m := NewManager(emit.NewNullEmitter(), relational, fallback)
	m.Set(ctx, "ns", "key", "original")

	relational.setUp(true)

	v, ok := m.Get(ctx, "ns", "key")
	if !ok || v != "original" {
		t.Fatalf("got (%v, %v), want (\"original\", true) after migration", v, ok)
	}
	if got := m.ActiveBackend(ctx); got != "relational" {
		t.Fatalf("active backend = %q, want relational after it came online", got)
	}
	if _, ok := relational.data[key("ns", "key")]; !ok {
		t.Fatal("expected migrated key to be present on the relational backend")
	}
}

func TestManager_NoBackendsReachable(t *testing.T) {
	ctx := context.Background()
	m := NewManager(emit.NewNullEmitter())

	if _, ok := m.Get(ctx, "ns", "key"); ok {
		t.Fatal("expected miss with no backends configured")
	}
	if got := m.ActiveBackend(ctx); got != "" {
		t.Fatalf("active backend = %q, want empty", got)
	}
}

func TestManager_GetSetRoundTripsJSONValues(t *testing.T) {
	ctx := context.Background()
	m := NewManager(emit.NewNullEmitter(), newFakeBackend("only", true))

	m.Set(ctx, "ns", "obj", map[string]any{"a": 1.0, "b": "two"})
	v, ok := m.Get(ctx, "ns", "obj")
	if !ok {
		t.Fatal("expected value present")
	}
	obj, ok := v.(map[string]any)
	if !ok || obj["b"] != "two" {
		t.Fatalf("got %#v, want map with b=two", v)
	}
}
