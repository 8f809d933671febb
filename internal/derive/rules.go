package derive

import (
	"strings"

	"plantload/pkg/records"
)

// ParentLine decorates every row with the parent line code of its location.
// Rows whose code is too short keep a nil parent.
type ParentLine struct {
	From string
	To   string
}

func (ParentLine) Name() string        { return "parent_line" }
func (p ParentLine) Inputs() []string  { return []string{p.From} }
func (p ParentLine) Outputs() []string { return []string{p.To} }

func (p ParentLine) Apply(rows []records.Record) []records.Record {
	for _, r := range rows {
		r[p.To] = nil
		if code, ok := r.String(p.From); ok {
			if parent, ok := ParentKey(code); ok {
				r[p.To] = parent
			}
		}
	}
	return rows
}

// LineRollup turns a functional-location table into the table of lines: one
// row per distinct parent code, named after the first location seen for it
// that has a non-blank name.
// Locations without a parent are excluded.
type LineRollup struct {
	From  string
	To    string
	Label string
}

func (LineRollup) Name() string        { return "line_rollup" }
func (l LineRollup) Inputs() []string  { return []string{l.From, l.Label} }
func (l LineRollup) Outputs() []string { return []string{l.To} }

func (l LineRollup) Apply(rows []records.Record) []records.Record {
	slot := make(map[string]int, len(rows))
	out := make([]records.Record, 0, len(rows))
	for _, r := range rows {
		code, ok := r.String(l.From)
		if !ok {
			continue
		}
		parent, ok := ParentKey(code)
		if !ok {
			continue
		}
		if i, dup := slot[parent]; dup {
			if blankLabel(out[i][l.Label]) && !blankLabel(r[l.Label]) {
				out[i][l.Label] = r[l.Label]
			}
			continue
		}
		slot[parent] = len(out)
		out = append(out, records.Record{l.To: parent, l.Label: r[l.Label]})
	}
	return out
}

func blankLabel(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// BalanceKey builds a surrogate key for production-balance rows by joining
// the period bounds, line and product family. The key is nil when the
// Required column is blank, which is how subtotal rows look in the report.
type BalanceKey struct {
	To       string
	Parts    []string
	Required string
}

func (BalanceKey) Name() string        { return "balance_key" }
func (b BalanceKey) Inputs() []string  { return b.Parts }
func (b BalanceKey) Outputs() []string { return []string{b.To} }

func (b BalanceKey) Apply(rows []records.Record) []records.Record {
	vals := make([]string, len(b.Parts))
	for _, r := range rows {
		if s, _ := r.String(b.Required); strings.TrimSpace(s) == "" {
			r[b.To] = nil
			continue
		}
		for i, p := range b.Parts {
			s, _ := r.String(p)
			vals[i] = strings.TrimSpace(s)
		}
		r[b.To] = strings.Join(vals, "|")
	}
	return rows
}
