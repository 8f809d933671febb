// Package records defines the row model shared by the parser, the
// transformers and the loader.
package records

import (
	"fmt"
	"strconv"
	"time"
)

// Record maps a column name to a cell value. Raw records carry string cells
// (nil when the physical row was shorter than its header); typed records
// carry the coerced Go values.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the string cell for key. ok is false when the cell is
// missing, nil or not a string.
func (r Record) String(key string) (string, bool) {
	v, exists := r[key]
	if !exists || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Values returns the cells of r in the order given by columns. Missing
// columns yield nil.
func (r Record) Values(columns []string) []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = r[c]
	}
	return out
}

// Table is a header plus the rows read under it. Columns keeps the header
// order so callers can check the schema even when there are no rows.
type Table struct {
	Columns []string
	Rows    []Record
}

// FromLines builds a Table from a header line and data lines. Rows shorter
// than the header get nil for the missing cells; extra cells are ignored.
// Duplicate header names keep the first column.
func FromLines(header []string, lines [][]string) Table {
	idx := make([]int, 0, len(header))
	cols := make([]string, 0, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		idx = append(idx, i)
		cols = append(cols, h)
	}
	t := Table{Columns: cols, Rows: make([]Record, 0, len(lines))}
	for _, line := range lines {
		r := make(Record, len(cols))
		for j, i := range idx {
			if i < len(line) {
				r[cols[j]] = line[i]
			} else {
				r[cols[j]] = nil
			}
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

// KeyDateLayout is the canonical form of date-valued keys.
const KeyDateLayout = "2006-01-02"

// CanonicalKey renders a key value as a string so that a value coerced from
// CSV and the same value scanned back from a database compare equal. nil
// renders as "".
func CanonicalKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		return t.Format(KeyDateLayout)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
