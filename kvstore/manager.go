package kvstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dshills/orchestrator/graph/emit"
)

// Manager is the Memory Store itself: it holds an ordered list of Backends
// (priority[0] is most preferred) and always reads/writes through the
// highest-priority backend currently reachable, migrating existing data into
// it the first time it comes online (spec.md §4.1's "upgrade migrates on
// first Set").
//
// A Manager is safe for concurrent use; backend selection and migration are
// serialized under a single mutex so two goroutines can never race an
// upgrade.
type Manager struct {
	mu       sync.Mutex
	backends []Backend // priority order, most preferred first
	active   int        // index into backends of the last-used backend, -1 if none yet
	emitter  emit.Emitter
}

// NewManager builds a Memory Store over backends, highest priority first.
// At least one backend should always be reachable; callers typically end
// the list with an in-process backend as the guaranteed fallback.
func NewManager(emitter emit.Emitter, backends ...Backend) *Manager {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	return &Manager{backends: backends, active: -1, emitter: emitter}
}

// resolve picks the highest-priority reachable backend, migrating data from
// the previously active backend if the winner has changed. Must be called
// with mu held.
func (m *Manager) resolve(ctx context.Context) Backend {
	best := -1
	for i, b := range m.backends {
		if b.Ping(ctx) {
			best = i
			break
		}
	}
	if best == -1 {
		return nil
	}
	if m.active == -1 {
		m.active = best
		return m.backends[best]
	}
	if best < m.active {
		m.migrate(ctx, m.backends[m.active], m.backends[best])
		m.active = best
	}
	return m.backends[m.active]
}

// migrate copies every key from a lower-priority backend into a newly
// available higher-priority one before the latter starts serving reads.
func (m *Manager) migrate(ctx context.Context, from, to Backend) {
	for _, e := range from.Entries(ctx) {
		to.Set(ctx, e.Namespace, e.Name, e.Value)
	}
	m.emitter.Emit(emit.Event{Msg: "memory_store.migrated", Meta: map[string]interface{}{
		"from": from.Name(),
		"to":   to.Name(),
	}})
}

// Get looks up namespace:name, returning the stored value (JSON-decoded
// back into its original shape) and whether it was present.
func (m *Manager) Get(ctx context.Context, namespace, name string) (any, bool) {
	m.mu.Lock()
	backend := m.resolve(ctx)
	m.mu.Unlock()
	if backend == nil {
		return nil, false
	}

	raw, ok := backend.Get(ctx, namespace, name)
	if !ok {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

// Set stores value under namespace:name on the currently active backend.
func (m *Manager) Set(ctx context.Context, namespace, name string, value any) {
	m.mu.Lock()
	backend := m.resolve(ctx)
	m.mu.Unlock()
	if backend == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	backend.Set(ctx, namespace, name, raw)
}

// Clear empties the currently active backend. Intended for tests.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	backend := m.resolve(ctx)
	m.mu.Unlock()
	if backend == nil {
		return
	}
	backend.Clear(ctx)
}

// ActiveBackend returns the name of the backend currently serving reads, or
// "" if none is reachable.
func (m *Manager) ActiveBackend(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	backend := m.resolve(ctx)
	if backend == nil {
		return ""
	}
	return backend.Name()
}
