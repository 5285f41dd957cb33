// Package kvstore implements the orchestration kernel's Memory Store
// (spec.md §4.1): a namespaced key/value record keyed by "{namespace}:{name}",
// backed by whichever backend is available, in priority order relational
// (sqlite/mysql) > remote KV (redis) > in-process map, with existing data
// migrated to a higher-priority backend the first time it comes online.
package kvstore

import "context"

// Backend is a single Memory Store storage implementation. Get/Set operate
// on a raw JSON payload so the Manager never needs to know the value's Go
// type; Keys supports migration when a higher-priority backend appears.
type Backend interface {
	// Name identifies the backend for logging and ExecutionState metadata.
	Name() string

	// Ping reports whether the backend is currently reachable. In-process
	// backends always report true; relational/remote backends probe the
	// underlying connection.
	Ping(ctx context.Context) bool

	// Get returns the raw JSON value stored under namespace:name, or
	// ok=false if absent. I/O errors are swallowed and reported as absent
	// (spec.md §4.1: memory store reads degrade silently to null).
	Get(ctx context.Context, namespace, name string) (value []byte, ok bool)

	// Set stores a raw JSON value under namespace:name. I/O errors are
	// swallowed (spec.md §4.1: writes degrade silently).
	Set(ctx context.Context, namespace, name string, value []byte)

	// Clear removes every stored key. Manager.Clear forwards to the active
	// backend; migration does not call it.
	Clear(ctx context.Context)

	// Entries enumerates every stored record, used to migrate data into a
	// newly-available higher-priority backend.
	Entries(ctx context.Context) []Entry
}

// Entry is one stored Memory Store record, as returned by Backend.Entries
// for migration.
type Entry struct {
	Namespace string
	Name      string
	Value     []byte
}

// key builds the "{namespace}:{name}" composite key spec.md §4.1 specifies.
func key(namespace, name string) string {
	return namespace + ":" + name
}
