// Package sqlite is the embedded SQLite backend (modernc.org/sqlite, no cgo),
// registered as storage kind "sqlite". It suits local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"plantload/internal/coerce"
	"plantload/internal/ddl"
	"plantload/internal/storage"
	"plantload/internal/storage/sqlstore"
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		s, err := NewStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// NewStore opens the database named by cfg.DSN, e.g. "plantload.db" or
// ":memory:". SQLite has a single writer, so the pool is limited to one
// connection; that also keeps an in-memory database shared.
func NewStore(ctx context.Context, cfg storage.Config) (*sqlstore.Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")
	return sqlstore.New(db, Dialect), nil
}

// Dialect is the SQLite flavour: double-quoted identifiers and ? parameters.
var Dialect = sqlstore.Dialect{
	DDL:         DDL,
	Placeholder: func(int) string { return "?" },
	Savepoint:   "SAVEPOINT %s",
	RollbackTo:  "ROLLBACK TO %s",
	Release:     "RELEASE %s",
}

// DDL renders SQLite identifiers and types.
var DDL = ddl.Dialect{
	Name:       "sqlite ddl",
	QuoteIdent: quoteIdent,
	MapType:    MapType,
}

// MapType maps a logical type to a SQLite affinity. Dates and times are
// stored as text.
func MapType(t coerce.Type, _ bool) string {
	switch t {
	case coerce.Integer:
		return "INTEGER"
	case coerce.Float:
		return "REAL"
	}
	return "TEXT"
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
