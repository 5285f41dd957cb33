// Package mysqlkv is a MySQL/MariaDB-backed Memory Store backend
// (spec.md §4.1), for distributed deployments where the kernel runs across
// multiple worker processes and the Memory Store must be shared.
package mysqlkv

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/dshills/orchestrator/kvstore"
)

const (
	maxNamespaceLen = 128
	maxNameLen      = 256
)

// Backend is a MySQL implementation of kvstore.Backend.
type Backend struct {
	db *sql.DB
}

// Open connects to a MySQL/MariaDB instance using dsn (the
// github.com/go-sql-driver/mysql DSN format) and ensures the memory_store
// table exists.
func Open(dsn string) (*Backend, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysqlkv: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	b := &Backend{db: db}
	if err := b.createSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) createSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS memory_store (
			namespace VARCHAR(128) NOT NULL,
			name VARCHAR(256) NOT NULL,
			value JSON NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY memory_store_ns_name (namespace, name)
		)
	`
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("mysqlkv: create schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (b *Backend) Close() error { return b.db.Close() }

// Name implements kvstore.Backend.
func (b *Backend) Name() string { return "mysql" }

// Ping implements kvstore.Backend.
func (b *Backend) Ping(ctx context.Context) bool {
	return b.db.PingContext(ctx) == nil
}

// Get implements kvstore.Backend.
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

// Set implements kvstore.Backend.
func (b *Backend) Set(ctx context.Context, namespace, name string, value []byte) {
	if len(namespace) > maxNamespaceLen || len(name) > maxNameLen {
		return
	}
	_, _ = b.db.ExecContext(ctx, `
		INSERT INTO memory_store (namespace, name, value)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)
	`, namespace, name, string(value))
}

// Clear implements kvstore.Backend.
func (b *Backend) Clear(ctx context.Context) {
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
