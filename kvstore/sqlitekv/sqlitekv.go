// Package sqlitekv is a SQLite-backed Memory Store backend (spec.md §4.1),
// adapted from the teacher's workflow-state SQLite store: single-file
// database, WAL mode, UNIQUE(namespace, name) with a JSON value column.
package sqlitekv

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/dshills/orchestrator/kvstore"
)

// maxNamespaceLen and maxNameLen bound the relational backend's key
// columns (spec.md §4.1); values beyond these lengths are rejected at
// Set and the write is swallowed like any other backend I/O failure.
const (
	maxNamespaceLen = 128
	maxNameLen      = 256
)

// Backend is a SQLite implementation of kvstore.Backend.
type Backend struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open creates or opens a SQLite-backed Memory Store at path (or ":memory:"
// for a throwaway database) and ensures its schema exists.
func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlitekv: %s: %w", pragma, err)
		}
	}

	b := &Backend{db: db, path: path}
	if err := b.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) createSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS memory_store (
			namespace TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(namespace, name)
		)
	`
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlitekv: create schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (b *Backend) Close() error { return b.db.Close() }

// Name implements kvstore.Backend.
func (b *Backend) Name() string { return "sqlite" }

// Ping implements kvstore.Backend.
func (b *Backend) Ping(ctx context.Context) bool {
	return b.db.PingContext(ctx) == nil
}

// Get implements kvstore.Backend. I/O errors degrade silently to "absent"
// per spec.md §4.1.
func (b *Backend) Get(ctx context.Context, namespace, name string) ([]byte, bool) {
	var value string
	err := b.db.QueryRowContext(ctx,
		`SELECT value FROM memory_store WHERE namespace = ? AND name = ?`,
		namespace, name,
	).Scan(&value)
	if err != nil {
		return nil, false
	}
	return []byte(value), true
}

// Set implements kvstore.Backend. Oversized keys and I/O errors are
// swallowed, matching the Memory Store's silent-degrade contract.
func (b *Backend) Set(ctx context.Context, namespace, name string, value []byte) {
	if len(namespace) > maxNamespaceLen || len(name) > maxNameLen {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = b.db.ExecContext(ctx, `
		INSERT INTO memory_store (namespace, name, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(namespace, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, namespace, name, string(value))
}

// Clear implements kvstore.Backend.
func (b *Backend) Clear(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = b.db.ExecContext(ctx, `DELETE FROM memory_store`)
}

// Entries implements kvstore.Backend.
func (b *Backend) Entries(ctx context.Context) []kvstore.Entry {
	rows, err := b.db.QueryContext(ctx, `SELECT namespace, name, value FROM memory_store`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []kvstore.Entry
	for rows.Next() {
		var e kvstore.Entry
		var value string
		if err := rows.Scan(&e.Namespace, &e.Name, &value); err != nil {
			continue
		}
		e.Value = []byte(value)
		out = append(out, e)
	}
	return out
}

var _ kvstore.Backend = (*Backend)(nil)
