// Package postgres is the PostgreSQL backend built on pgx v5, registered as
// storage kind "postgres".
//
// Postgres aborts the whole transaction on the first failed statement, so
// every row insert runs inside its own SAVEPOINT and a failed row is rolled
// back to it.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"plantload/internal/coerce"
	"plantload/internal/ddl"
	"plantload/internal/storage"
	"plantload/pkg/records"
)

// pgRows is the subset of pgx.Rows the store reads keys through.
type pgRows interface {
	Next() bool
	Values() ([]any, error)
	Err() error
	Close()
}

// pgTx is the subset of pgx.Tx used for inserts.
type pgTx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// pgConn is the subset of *pgxpool.Pool the store needs. Tests substitute
// a fake.
type pgConn interface {
	query(ctx context.Context, sql string) (pgRows, error)
	begin(ctx context.Context) (pgTx, error)
	exec(ctx context.Context, sql string) error
	close()
}

type poolConn struct{ pool *pgxpool.Pool }

func (p poolConn) query(ctx context.Context, sql string) (pgRows, error) {
	return p.pool.Query(ctx, sql)
}

func (p poolConn) begin(ctx context.Context) (pgTx, error) { return p.pool.Begin(ctx) }

func (p poolConn) exec(ctx context.Context, sql string) error {
	_, err := p.pool.Exec(ctx, sql)
	return err
}

func (p poolConn) close() { p.pool.Close() }

// newStore is a test hook that points to NewStore by default.
var newStore = NewStore

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		s, err := newStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Store is a pgx-backed storage.Store.
type Store struct {
	conn pgConn

	mu      sync.Mutex
	inserts map[string]string
}

var _ storage.Store = (*Store)(nil)

// NewStore parses the DSN, opens a pool and pings the server.
func NewStore(ctx context.Context, cfg storage.Config) (*Store, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return newWithConn(poolConn{pool: pool}), nil
}

func newWithConn(c pgConn) *Store {
	return &Store{conn: c, inserts: map[string]string{}}
}

// ExistingKeys reads every value of keyColumn in canonical form.
func (s *Store) ExistingKeys(ctx context.Context, table, keyColumn string) (storage.KeySet, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", pgIdent(keyColumn), pgFQN(table))
	rows, err := s.conn.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: existing keys of %s: %w", table, err)
	}
	defer rows.Close()

	keys := storage.KeySet{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: scan key of %s: %w", table, err)
		}
		if len(vals) == 0 || vals[0] == nil {
			continue
		}
		keys[records.CanonicalKey(vals[0])] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: existing keys of %s: %w", table, err)
	}
	return keys, nil
}

// EnsureTable runs CREATE TABLE IF NOT EXISTS.
func (s *Store) EnsureTable(ctx context.Context, def ddl.TableDef) error {
	stmt, err := DDL.CreateIfNotExists(def)
	if err != nil {
		return err
	}
	if err := s.conn.exec(ctx, stmt); err != nil {
		return fmt.Errorf("postgres: create %s: %w", def.FQN, err)
	}
	return nil
}

// Begin opens a transaction.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.conn.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	return &Tx{tx: tx, s: s}, nil
}

// Close closes the pool.
func (s *Store) Close() { s.conn.close() }

func (s *Store) insertSQL(table string, columns []string) string {
	key := table + "\x00" + strings.Join(columns, "\x00")
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.inserts[key]; ok {
		return q
	}
	cols := make([]string, len(columns))
	ph := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = pgIdent(c)
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", pgFQN(table), strings.Join(cols, ", "), strings.Join(ph, ", "))
	s.inserts[key] = q
	return q
}

// Tx is one pgx transaction.
type Tx struct {
	tx pgTx
	s  *Store
}

// Insert writes one row inside a savepoint.
func (t *Tx) Insert(ctx context.Context, table string, columns []string, values []any) error {
	if len(values) != len(columns) {
		return fmt.Errorf("postgres: insert into %s: %d values for %d columns", table, len(values), len(columns))
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = pgValue(v)
	}
	if _, err := t.tx.Exec(ctx, "SAVEPOINT plantload_row"); err != nil {
		return fmt.Errorf("postgres: savepoint: %w", err)
	}
	if _, err := t.tx.Exec(ctx, t.s.insertSQL(table, columns), args...); err != nil {
		err = fmt.Errorf("postgres: insert into %s: %w", table, describe(err))
		if _, rerr := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT plantload_row"); rerr != nil {
			return fmt.Errorf("%w (rollback to savepoint: %v)", err, rerr)
		}
		return err
	}
	if _, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT plantload_row"); err != nil {
		return fmt.Errorf("postgres: release savepoint: %w", err)
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction; it is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}

// pgValue converts coerced values pgx cannot encode on its own.
func pgValue(v any) any {
	if t, ok := v.(coerce.TimeOfDay); ok {
		us := (int64(t.Hour)*3600 + int64(t.Minute)*60 + int64(t.Second)) * 1_000_000
		return pgtype.Time{Microseconds: us, Valid: true}
	}
	return v
}

// describe keeps the SQLSTATE and detail of server errors in the message.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s: %s)", err, pgErr.SQLState(), pgErr.Detail)
	}
	return err
}

// DDL renders Postgres identifiers and types.
var DDL = ddl.Dialect{
	Name:       "postgres ddl",
	QuoteIdent: pgIdent,
	MapType:    MapType,
}

// MapType maps a logical column type to Postgres.
func MapType(t coerce.Type, _ bool) string {
	switch t {
	case coerce.Integer:
		return "BIGINT"
	case coerce.Float:
		return "DOUBLE PRECISION"
	case coerce.Date:
		return "DATE"
	case coerce.Time:
		return "TIME"
	}
	return "TEXT"
}

func pgIdent(s string) string { return pgx.Identifier{s}.Sanitize() }

func pgFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	return pgx.Identifier(parts).Sanitize()
}
