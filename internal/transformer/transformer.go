// Package transformer chains whole-table row transforms.
package transformer

import "plantload/pkg/records"

// Transformer rewrites a table of records. Implementations may mutate the
// records and reuse the input slice.
type Transformer interface{ Apply([]records.Record) []records.Record }

// Func adapts a plain function to Transformer.
type Func func([]records.Record) []records.Record

func (f Func) Apply(in []records.Record) []records.Record { return f(in) }

// Chain is an ordered list of transformers.
type Chain []Transformer

func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}
