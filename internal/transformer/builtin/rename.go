// Package builtin contains the reusable steps the row pipeline is built from.
package builtin

import "plantload/pkg/records"

// Rename rebuilds every record with only the mapped columns, under their
// new names. Source columns missing from Map are dropped.
type Rename struct {
	Map map[string]string
}

func (r Rename) Apply(in []records.Record) []records.Record {
	for i, rec := range in {
		out := make(records.Record, len(r.Map))
		for from, to := range r.Map {
			if v, ok := rec[from]; ok {
				out[to] = v
			}
		}
		in[i] = out
	}
	return in
}

// Select keeps exactly Columns on every record. A column a record lacks is
// set to nil.
type Select struct {
	Columns []string
}

func (s Select) Apply(in []records.Record) []records.Record {
	for i, rec := range in {
		out := make(records.Record, len(s.Columns))
		for _, c := range s.Columns {
			out[c] = rec[c]
		}
		in[i] = out
	}
	return in
}
