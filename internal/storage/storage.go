// Package storage defines the target-database contract used by the loader
// and a small factory that backends register into.
//
// Backends live in sub-packages and register themselves from init(); import
// plantload/internal/storage/all to enable every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"plantload/internal/ddl"
)

// KeySet is the set of canonical key strings already present in a table.
type KeySet map[string]struct{}

// Has reports whether key is in the set.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Store is a target database.
type Store interface {
	// ExistingKeys snapshots the key column of table.
	ExistingKeys(ctx context.Context, table, keyColumn string) (KeySet, error)
	// Begin opens a write transaction.
	Begin(ctx context.Context) (Tx, error)
	// EnsureTable creates table if it does not exist.
	EnsureTable(ctx context.Context, def ddl.TableDef) error
	// Close releases the connection pool.
	Close()
}

// Tx is one write transaction. A failed Insert must leave the transaction
// usable for the next row.
type Tx interface {
	Insert(ctx context.Context, table string, columns []string, values []any) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	// Kind names a registered backend: postgres, mssql, mysql, sqlite.
	Kind string
	// DSN is passed to the backend driver.
	DSN string
	// MaxConns caps the pool size; zero keeps the driver default.
	MaxConns int
}

// Factory opens a Store for cfg.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It is called from backend
// init functions; registering a kind twice replaces the earlier factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens the backend named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %v)", cfg.Kind, ListKinds())
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered backend kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
