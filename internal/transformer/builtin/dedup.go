package builtin

import (
	"sort"
	"strings"

	"plantload/pkg/records"
)

// Dedup policies.
const (
	KeepFirst    = "keep-first"
	KeepLast     = "keep-last"
	MostComplete = "most-complete"
)

// DeDup collapses records that share a key and keeps one winner per key:
//
//   - keep-first (default): the earliest occurrence
//   - keep-last: the latest occurrence
//   - most-complete: the record with the most non-empty cells; ties go to the
//     earliest
//
// Key parts are compared in their canonical string form so that 10 and
// int64(10) collide. Records lacking a key column pass through after the
// winners. Winners keep their input order.
type DeDup struct {
	Keys   []string
	Policy string

	// OnDuplicate is called for every losing record with its canonical key
	// and its position in the input.
	OnDuplicate func(key string, index int)
}

func (d DeDup) keyOf(r records.Record) (string, bool) {
	var b strings.Builder
	for i, k := range d.Keys {
		v, ok := r[k]
		if !ok {
			return "", false
		}
		if i > 0 {
			b.WriteByte('\x1f')
		}
		if v == nil {
			b.WriteByte('\x00')
			continue
		}
		b.WriteString(records.CanonicalKey(v))
	}
	return b.String(), true
}

func completeness(r records.Record) int {
	n := 0
	for _, v := range r {
		if v == nil || v == "" {
			continue
		}
		n++
	}
	return n
}

func (d DeDup) Apply(in []records.Record) []records.Record {
	if len(in) == 0 || len(d.Keys) == 0 {
		return in
	}
	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = KeepFirst
	}

	type slot struct {
		index int
		score int
	}
	winners := make(map[string]slot, len(in))
	var loose []int
	lose := func(key string, i int) {
		if d.OnDuplicate != nil {
			d.OnDuplicate(key, i)
		}
	}

	for i, r := range in {
		key, ok := d.keyOf(r)
		if !ok {
			loose = append(loose, i)
			continue
		}
		prev, exists := winners[key]
		if !exists {
			winners[key] = slot{index: i, score: completeness(r)}
			continue
		}
		switch policy {
		case KeepLast:
			lose(key, prev.index)
			winners[key] = slot{index: i}
		case MostComplete:
			s := slot{index: i, score: completeness(r)}
			if s.score > prev.score {
				lose(key, prev.index)
				winners[key] = s
			} else {
				lose(key, i)
			}
		default:
			lose(key, i)
		}
	}

	idx := make([]int, 0, len(winners))
	for _, s := range winners {
		idx = append(idx, s.index)
	}
	sort.Ints(idx)
	out := make([]records.Record, 0, len(idx)+len(loose))
	for _, i := range idx {
		out = append(out, in[i])
	}
	for _, i := range loose {
		out = append(out, in[i])
	}
	return out
}
