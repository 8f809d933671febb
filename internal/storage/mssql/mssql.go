// Package mssql is the SQL Server backend, the original destination of the
// maintenance exports. It registers itself as storage kind "mssql".
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver
	"github.com/microsoft/go-mssqldb/msdsn"

	"plantload/internal/coerce"
	"plantload/internal/ddl"
	"plantload/internal/storage"
	"plantload/internal/storage/sqlstore"
)

// newStore is a test hook that points to NewStore by default.
var newStore = NewStore

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		s, err := newStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// NewStore validates the DSN, opens the pool and pings the server.
func NewStore(ctx context.Context, cfg storage.Config) (*sqlstore.Store, error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return sqlstore.New(db, Dialect), nil
}

// Dialect is the T-SQL flavour: bracket identifiers, @pN parameters, and
// SAVE TRANSACTION for row isolation (T-SQL has no RELEASE).
var Dialect = sqlstore.Dialect{
	DDL:         DDL,
	Placeholder: func(i int) string { return fmt.Sprintf("@p%d", i) },
	CreateTable: BuildCreateTableSQL,
	Savepoint:   "SAVE TRANSACTION %s",
	RollbackTo:  "ROLLBACK TRANSACTION %s",
}

// DDL renders SQL Server identifiers and types.
var DDL = ddl.Dialect{
	Name:       "mssql ddl",
	QuoteIdent: quoteIdent,
	MapType:    MapType,
}

// MapType maps a logical column type to SQL Server. Key text columns are
// bounded because NVARCHAR(MAX) cannot be indexed.
func MapType(t coerce.Type, key bool) string {
	switch t {
	case coerce.Integer:
		return "BIGINT"
	case coerce.Float:
		return "FLOAT"
	case coerce.Date:
		return "DATE"
	case coerce.Time:
		return "TIME(0)"
	}
	if key {
		return "NVARCHAR(450)"
	}
	return "NVARCHAR(MAX)"
}

// BuildCreateTableSQL returns a T-SQL script that creates the table when it
// does not exist yet:
//
//	IF OBJECT_ID(N'[dbo].[Zlecenia]', N'U') IS NULL
//	BEGIN
//	  CREATE TABLE [dbo].[Zlecenia] (...);
//	END;
func BuildCreateTableSQL(t ddl.TableDef) (string, error) {
	cols, err := DDL.ColumnList(t)
	if err != nil {
		return "", err
	}
	fqn := DDL.QuoteFQN(t.FQN)
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  CREATE TABLE %s (\n    %s\n  );\nEND;",
		strings.ReplaceAll(fqn, "'", "''"),
		fqn,
		strings.Join(cols, ",\n    "),
	), nil
}

// quoteIdent quotes one identifier with brackets, escaping closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func quoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}
