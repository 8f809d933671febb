package builtin

import (
	"plantload/internal/coerce"
	"plantload/pkg/records"
)

// Coerce converts raw cells to the typed values of Types. A cell that cannot
// be converted becomes nil and is reported to OnFailure; the row is kept.
type Coerce struct {
	Types        map[string]coerce.Type
	DecimalComma bool
	OnFailure    func(row int, column string, raw any)
}

func (c Coerce) Apply(in []records.Record) []records.Record {
	if len(c.Types) == 0 {
		return in
	}
	for i, r := range in {
		for field, typ := range c.Types {
			raw, ok := r[field]
			if !ok {
				continue
			}
			v, ok := coerce.Value(typ, raw, c.DecimalComma)
			if !ok && c.OnFailure != nil {
				c.OnFailure(i, field, raw)
			}
			r[field] = v
		}
	}
	return in
}
