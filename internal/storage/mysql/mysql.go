// Package mysql is the MySQL/MariaDB backend, registered as storage kind
// "mysql".
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"plantload/internal/coerce"
	"plantload/internal/ddl"
	"plantload/internal/storage"
	"plantload/internal/storage/sqlstore"
)

// newStore is a test hook that points to NewStore by default.
var newStore = NewStore

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		s, err := newStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// NewStore parses the DSN (go-sql-driver format), opens a pool through a
// connector and pings the server.
func NewStore(ctx context.Context, cfg storage.Config) (*sqlstore.Store, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return sqlstore.New(db, Dialect), nil
}

// Dialect is the MySQL flavour: backtick identifiers and ? parameters.
var Dialect = sqlstore.Dialect{
	DDL:         DDL,
	Placeholder: func(int) string { return "?" },
	Savepoint:   "SAVEPOINT %s",
	RollbackTo:  "ROLLBACK TO SAVEPOINT %s",
	Release:     "RELEASE SAVEPOINT %s",
}

// DDL renders MySQL identifiers and types.
var DDL = ddl.Dialect{
	Name:       "mysql ddl",
	QuoteIdent: quoteIdent,
	MapType:    MapType,
}

// MapType maps a logical column type to MySQL. TEXT cannot be a primary key
// without a prefix length, so key text columns become VARCHAR(255).
func MapType(t coerce.Type, key bool) string {
	switch t {
	case coerce.Integer:
		return "BIGINT"
	case coerce.Float:
		return "DOUBLE"
	case coerce.Date:
		return "DATE"
	case coerce.Time:
		return "TIME"
	}
	if key {
		return "VARCHAR(255)"
	}
	return "TEXT"
}

func quoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}
