// Package loader appends a pipeline batch to its target table, skipping keys
// the table already holds.
//
// A load is: snapshot existing keys, filter the batch, insert the rest in one
// transaction with per-row failure capture, commit once. Loads against the
// same table are serialized from the snapshot to the commit, so two loaders
// never both decide a key is new.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"plantload/internal/pipeline"
	"plantload/internal/storage"
	"plantload/pkg/records"
)

// ErrStoreUnavailable is returned when the key snapshot or the transaction
// cannot be obtained. It is fatal for the whole run.
var ErrStoreUnavailable = errors.New("store unavailable")

// State is the lifecycle position of a batch.
type State int

const (
	Pending State = iota
	Filtered
	Inserting
	Committed
	PartiallyFailed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Filtered:
		return "filtered"
	case Inserting:
		return "inserting"
	case Committed:
		return "committed"
	case PartiallyFailed:
		return "partially_failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// RowFailure records one row the database rejected.
type RowFailure struct {
	// Index is the row's position in the batch.
	Index int
	// Key is the canonical primary key.
	Key string
	Err error
}

// Result summarizes one load.
type Result struct {
	Table    string
	Inserted int
	Skipped  int
	Failed   []RowFailure
	State    State
	Duration time.Duration
}

// Loader writes batches to a Store.
type Loader struct {
	store   storage.Store
	verbose bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Loader.
type Option func(*Loader)

// WithVerbose logs every rejected row.
func WithVerbose(v bool) Option { return func(l *Loader) { l.verbose = v } }

// New returns a Loader writing to store.
func New(store storage.Store, opts ...Option) *Loader {
	l := &Loader{store: store, locks: map[string]*sync.Mutex{}}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Loader) lock(table string) func() {
	l.mu.Lock()
	m, ok := l.locks[table]
	if !ok {
		m = &sync.Mutex{}
		l.locks[table] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Load appends the rows of b whose key is not yet in the table. Row-level
// insert failures are collected in Result.Failed and do not stop the batch;
// the returned error is reserved for store, transaction and context
// failures. Nothing is retried.
func (l *Loader) Load(ctx context.Context, b pipeline.Batch) (res Result, err error) {
	start := time.Now()
	res = Result{Table: b.Table, State: Pending}
	defer func() { res.Duration = time.Since(start) }()

	unlock := l.lock(b.Table)
	defer unlock()

	existing, err := l.store.ExistingKeys(ctx, b.Table, b.PrimaryKey)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	type pending struct {
		index int
		key   string
		row   records.Record
	}
	todo := make([]pending, 0, len(b.Rows))
	for i, r := range b.Rows {
		key := records.CanonicalKey(r[b.PrimaryKey])
		if existing.Has(key) {
			res.Skipped++
			continue
		}
		todo = append(todo, pending{index: i, key: key, row: r})
	}
	res.State = Filtered
	if len(todo) == 0 {
		res.State = Committed
		return res, nil
	}

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	res.State = Inserting

	inserted := 0
	for _, p := range todo {
		if err := ctx.Err(); err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return res, err
		}
		if err := tx.Insert(ctx, b.Table, b.Columns, p.row.Values(b.Columns)); err != nil {
			res.Failed = append(res.Failed, RowFailure{Index: p.index, Key: p.key, Err: err})
			if l.verbose {
				log.Printf("loader: table=%s row=%d key=%s rejected: %v", b.Table, p.index, p.key, err)
			}
			continue
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return res, fmt.Errorf("loader: commit %s: %w", b.Table, err)
	}
	res.Inserted = inserted
	res.State = Committed
	if len(res.Failed) > 0 {
		res.State = PartiallyFailed
	}
	return res, nil
}
