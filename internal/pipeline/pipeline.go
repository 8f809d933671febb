// Package pipeline turns a raw table into a load-ready batch for one entity:
// rename, derive, select, coerce, drop keyless rows, dedup on the key.
package pipeline

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"plantload/internal/entity"
	"plantload/internal/transformer"
	"plantload/internal/transformer/builtin"
	"plantload/pkg/records"
)

// ErrSchemaMismatch is wrapped by SchemaMismatchError.
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaMismatchError reports target columns that neither the file header
// nor a derive rule provides.
type SchemaMismatchError struct {
	Entity  string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("entity %s: %v: missing columns %s", e.Entity, ErrSchemaMismatch, strings.Join(e.Missing, ", "))
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// Batch is the typed, key-unique output for one spec and one source file.
type Batch struct {
	Table      string
	Columns    []string
	PrimaryKey string
	Rows       []records.Record
}

// Keys returns the canonical key of every row, in order.
func (b Batch) Keys() []string {
	out := make([]string, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = records.CanonicalKey(r[b.PrimaryKey])
	}
	return out
}

// Stats counts what the pipeline dropped or could not convert.
type Stats struct {
	Read             int
	CoercionFailures int
	KeyDropped       int
	Duplicates       int
}

// Verbose enables per-row log lines for duplicates and coercion failures.
var Verbose bool

// Transform runs the pipeline over raw records. The header is taken to be
// the union of the records' columns; use TransformTable when the header is
// known, so an empty file is still checked.
func Transform(raw []records.Record, spec entity.Spec) (Batch, Stats, error) {
	seen := map[string]bool{}
	var cols []string
	for _, r := range raw {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return TransformTable(records.Table{Columns: cols, Rows: raw}, spec)
}

// TransformTable runs the pipeline over a parsed table. It fails only when
// the header cannot satisfy the spec; bad cells and bad rows are counted in
// Stats instead.
func TransformTable(t records.Table, spec entity.Spec) (Batch, Stats, error) {
	st := Stats{Read: len(t.Rows)}
	if err := checkHeader(t.Columns, spec); err != nil {
		return Batch{}, st, err
	}
	rules, err := spec.Rules()
	if err != nil {
		return Batch{}, st, err
	}

	chain := transformer.Chain{builtin.Rename{Map: spec.Rename()}}
	for _, r := range rules {
		chain = append(chain, r)
	}
	chain = append(chain,
		builtin.Select{Columns: spec.TargetColumns},
		builtin.Coerce{
			Types:        spec.ColumnTypes,
			DecimalComma: spec.DecimalComma,
			OnFailure: func(row int, col string, raw any) {
				st.CoercionFailures++
				if Verbose {
					log.Printf("pipeline: entity=%s row=%d column=%s value=%q not a %s", spec.Kind, row, col, fmt.Sprint(raw), spec.ColumnTypes[col])
				}
			},
		},
		builtin.Require{
			Fields: []string{spec.PrimaryKey},
			OnDrop: func(records.Record) { st.KeyDropped++ },
		},
		builtin.DeDup{
			Keys:   []string{spec.PrimaryKey},
			Policy: builtin.KeepFirst,
			OnDuplicate: func(key string, _ int) {
				st.Duplicates++
				if Verbose {
					log.Printf("pipeline: entity=%s duplicate key=%s dropped", spec.Kind, key)
				}
			},
		},
	)

	rows := make([]records.Record, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = r.Clone()
	}
	rows = chain.Apply(rows)

	return Batch{
		Table:      spec.TargetTable,
		Columns:    append([]string(nil), spec.TargetColumns...),
		PrimaryKey: spec.PrimaryKey,
		Rows:       rows,
	}, st, nil
}

// checkHeader verifies every target column is reachable from the renamed
// header or a derive rule output.
func checkHeader(columns []string, spec entity.Spec) error {
	available := map[string]bool{}
	rename := spec.Rename()
	for _, c := range columns {
		if to, ok := rename[c]; ok {
			available[to] = true
		}
	}
	rules, err := spec.Rules()
	if err != nil {
		return err
	}
	var missing []string
	for _, r := range rules {
		for _, in := range r.Inputs() {
			if !available[in] {
				missing = append(missing, in)
			}
		}
		for _, out := range r.Outputs() {
			available[out] = true
		}
	}
	for _, c := range spec.TargetColumns {
		if !available[c] && !contains(missing, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaMismatchError{Entity: spec.Kind, Missing: missing}
	}
	return nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
