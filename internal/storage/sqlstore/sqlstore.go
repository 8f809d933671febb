// Package sqlstore implements storage.Store on top of database/sql. The
// mssql, mysql and sqlite backends differ only in their Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"plantload/internal/ddl"
	"plantload/internal/storage"
	"plantload/pkg/records"
)

// savepointName is reused for every row; each row releases or rolls back its
// savepoint before the next one is taken.
const savepointName = "plantload_row"

// Dialect captures what differs between database/sql backends.
type Dialect struct {
	DDL ddl.Dialect

	// Placeholder renders the i-th (1-based) bind parameter.
	Placeholder func(i int) string

	// CreateTable renders the bootstrap DDL. Nil means
	// DDL.CreateIfNotExists.
	CreateTable func(ddl.TableDef) (string, error)

	// Savepoint, RollbackTo and Release are statements taking the savepoint
	// name as their only %s verb. An empty Release skips the release step.
	Savepoint  string
	RollbackTo string
	Release    string
}

// Store is a database/sql backed storage.Store.
type Store struct {
	db *sql.DB
	d  Dialect

	mu      sync.Mutex
	inserts map[string]string
}

var _ storage.Store = (*Store)(nil)

// New wraps an open *sql.DB.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, d: d, inserts: map[string]string{}}
}

// DB exposes the pool for backend-specific queries.
func (s *Store) DB() *sql.DB { return s.db }

// ExistingKeys reads every value of keyColumn and returns them in canonical
// form. NULL keys are ignored.
func (s *Store) ExistingKeys(ctx context.Context, table, keyColumn string) (storage.KeySet, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", s.d.DDL.QuoteIdent(keyColumn), s.d.DDL.QuoteFQN(table))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: existing keys of %s: %w", s.d.DDL.Name, table, err)
	}
	defer rows.Close()

	keys := storage.KeySet{}
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%s: scan key of %s: %w", s.d.DDL.Name, table, err)
		}
		if v == nil {
			continue
		}
		keys[records.CanonicalKey(v)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: existing keys of %s: %w", s.d.DDL.Name, table, err)
	}
	return keys, nil
}

// EnsureTable executes the dialect's bootstrap DDL.
func (s *Store) EnsureTable(ctx context.Context, def ddl.TableDef) error {
	render := s.d.CreateTable
	if render == nil {
		render = s.d.DDL.CreateIfNotExists
	}
	stmt, err := render(def)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: create %s: %w", s.d.DDL.Name, def.FQN, err)
	}
	return nil
}

// Begin opens a transaction.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", s.d.DDL.Name, err)
	}
	return &Tx{tx: tx, s: s}, nil
}

// Close closes the pool.
func (s *Store) Close() { _ = s.db.Close() }

// InsertSQL renders the parameterized INSERT for table and columns. Results
// are cached per table and column list.
func (s *Store) InsertSQL(table string, columns []string) string {
	key := table + "\x00" + strings.Join(columns, "\x00")
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.inserts[key]; ok {
		return q
	}
	cols := make([]string, len(columns))
	ph := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = s.d.DDL.QuoteIdent(c)
		ph[i] = s.d.Placeholder(i + 1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.d.DDL.QuoteFQN(table), strings.Join(cols, ", "), strings.Join(ph, ", "))
	s.inserts[key] = q
	return q
}

// Tx is a database/sql transaction that isolates each insert in a
// savepoint.
type Tx struct {
	tx *sql.Tx
	s  *Store
}

// Insert writes one row. When the dialect has savepoints a failed row is
// rolled back to its savepoint and the transaction stays usable.
func (t *Tx) Insert(ctx context.Context, table string, columns []string, values []any) error {
	if len(values) != len(columns) {
		return fmt.Errorf("%s: insert into %s: %d values for %d columns", t.s.d.DDL.Name, table, len(values), len(columns))
	}
	sp := t.s.d.Savepoint != ""
	if sp {
		if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(t.s.d.Savepoint, savepointName)); err != nil {
			return fmt.Errorf("%s: savepoint: %w", t.s.d.DDL.Name, err)
		}
	}
	if _, err := t.tx.ExecContext(ctx, t.s.InsertSQL(table, columns), values...); err != nil {
		err = fmt.Errorf("%s: insert into %s: %w", t.s.d.DDL.Name, table, err)
		if sp {
			if _, rerr := t.tx.ExecContext(ctx, fmt.Sprintf(t.s.d.RollbackTo, savepointName)); rerr != nil {
				return errors.Join(err, fmt.Errorf("%s: rollback to savepoint: %w", t.s.d.DDL.Name, rerr))
			}
		}
		return err
	}
	if sp && t.s.d.Release != "" {
		if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(t.s.d.Release, savepointName)); err != nil {
			return fmt.Errorf("%s: release savepoint: %w", t.s.d.DDL.Name, err)
		}
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", t.s.d.DDL.Name, err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is
// not an error.
func (t *Tx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%s: rollback: %w", t.s.d.DDL.Name, err)
	}
	return nil
}
