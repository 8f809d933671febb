// Package entity describes how one kind of source export maps onto one
// destination table.
//
// A Spec is pure data: the row pipeline, the header normalizer and the loader
// are all driven by it, and nothing in those packages branches on the entity
// kind. Specs are collected into a Registry once at start-up and never
// mutated afterwards.
package entity

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"plantload/internal/coerce"
	"plantload/internal/derive"
)

// Format selects how a source file is turned into a raw table.
type Format string

const (
	// FormatPlain is a regular CSV with one header row.
	FormatPlain Format = "plain"
	// FormatBalance is the production-balance report with a banner line and a
	// header split across two physical rows.
	FormatBalance Format = "balance"
)

// Column is one rename pair: a source header and the target column it feeds.
type Column struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Spec is the declarative description of one source→table mapping.
type Spec struct {
	// Kind is the registry key, e.g. "zlecenia".
	Kind string `json:"kind"`

	// Folder is the sub-directory of the base directory holding the exports.
	// Several kinds may share one folder.
	Folder string `json:"folder"`

	// Format is plain (default) or balance.
	Format Format `json:"format,omitempty"`

	// Comma is the field delimiter. Empty means sniff it from the file.
	Comma string `json:"comma,omitempty"`

	// Encoding names the code page of the export (utf-8 by default).
	Encoding string `json:"encoding,omitempty"`

	// DecimalComma turns on locale normalisation ("1 234,56") for the
	// entity's Float columns.
	DecimalComma bool `json:"decimal_comma,omitempty"`

	// SourceColumns is the ordered rename table. Unlisted source columns are
	// dropped.
	SourceColumns []Column `json:"source_columns"`

	// TargetTable is the destination table.
	TargetTable string `json:"target_table"`

	// TargetColumns is the ordered column list of the destination table. The
	// first element is the primary key.
	TargetColumns []string `json:"target_columns"`

	// ColumnTypes gives the logical type of every target column.
	ColumnTypes map[string]coerce.Type `json:"column_types"`

	// PrimaryKey names the key column; it defaults to TargetColumns[0].
	PrimaryKey string `json:"primary_key,omitempty"`

	// Derive lists derive rule names run after rename, in order.
	Derive []string `json:"derive,omitempty"`
}

// Delimiter returns the configured delimiter rune, or 0 when it should be
// sniffed.
func (s Spec) Delimiter() rune {
	if s.Comma == "" {
		return 0
	}
	if s.Comma == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(s.Comma)
	if r == utf8.RuneError {
		return 0
	}
	return r
}

// Rename returns the rename table as a map from source header to target.
func (s Spec) Rename() map[string]string {
	out := make(map[string]string, len(s.SourceColumns))
	for _, c := range s.SourceColumns {
		out[c.Source] = c.Target
	}
	return out
}

// Rules resolves the Derive names. Unknown names are an error.
func (s Spec) Rules() ([]derive.Rule, error) {
	out := make([]derive.Rule, 0, len(s.Derive))
	for _, name := range s.Derive {
		r, ok := derive.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("entity %s: unknown derive rule %q", s.Kind, name)
		}
		out = append(out, r)
	}
	return out, nil
}

// clone returns a deep copy so callers cannot mutate registry state.
func (s Spec) clone() Spec {
	c := s
	c.SourceColumns = append([]Column(nil), s.SourceColumns...)
	c.TargetColumns = append([]string(nil), s.TargetColumns...)
	c.Derive = append([]string(nil), s.Derive...)
	c.ColumnTypes = make(map[string]coerce.Type, len(s.ColumnTypes))
	for k, v := range s.ColumnTypes {
		c.ColumnTypes[k] = v
	}
	return c
}

// normalize fills defaults.
func (s *Spec) normalize() {
	s.Kind = strings.TrimSpace(s.Kind)
	if s.Format == "" {
		s.Format = FormatPlain
	}
	if s.Folder == "" {
		s.Folder = s.Kind
	}
	if s.PrimaryKey == "" && len(s.TargetColumns) > 0 {
		s.PrimaryKey = s.TargetColumns[0]
	}
}

// Validate reports every structural problem with the spec at once.
func (s Spec) Validate() error {
	var errs []error
	add := func(format string, a ...any) {
		errs = append(errs, fmt.Errorf("entity %s: "+format, append([]any{s.Kind}, a...)...))
	}

	if s.Kind == "" {
		errs = append(errs, errors.New("entity: kind must not be empty"))
	}
	if strings.TrimSpace(s.TargetTable) == "" {
		add("target_table must not be empty")
	}
	switch s.Format {
	case FormatPlain, FormatBalance:
	default:
		add("unknown format %q", s.Format)
	}
	if len(s.TargetColumns) == 0 {
		add("target_columns must not be empty")
	} else if s.PrimaryKey != s.TargetColumns[0] {
		add("primary key %q must be the first target column, got %q", s.PrimaryKey, s.TargetColumns[0])
	}

	available := map[string]bool{}
	sources := map[string]bool{}
	for _, c := range s.SourceColumns {
		if c.Source == "" || c.Target == "" {
			add("source column pair %+v has an empty side", c)
			continue
		}
		if sources[c.Source] {
			add("source column %q is mapped more than once", c.Source)
		}
		sources[c.Source] = true
		if available[c.Target] {
			add("target %q is fed by more than one source column", c.Target)
		}
		available[c.Target] = true
	}
	rules, err := s.Rules()
	if err != nil {
		errs = append(errs, err)
	}
	for _, r := range rules {
		for _, in := range r.Inputs() {
			if !available[in] {
				add("derive rule %s reads %q which no source column provides", r.Name(), in)
			}
		}
		for _, out := range r.Outputs() {
			available[out] = true
		}
	}

	seen := map[string]bool{}
	for _, col := range s.TargetColumns {
		if seen[col] {
			add("target column %q listed twice", col)
		}
		seen[col] = true
		t, ok := s.ColumnTypes[col]
		if !ok {
			add("target column %q has no type", col)
		} else if !t.Valid() {
			add("target column %q has unknown type %q", col, t)
		}
		if !available[col] {
			add("target column %q is neither renamed nor derived", col)
		}
	}
	return errors.Join(errs...)
}
