// Package derive holds the entity-specific column rules that run after the
// rename step and before column selection.
//
// Rules are looked up by name from an EntitySpec so the row pipeline itself
// stays free of per-entity branches.
package derive

import (
	"sort"
	"strings"

	"plantload/pkg/records"
)

// Rule computes derived columns over a whole renamed table. Table scope lets
// a rule group rows (see LineRollup) as well as decorate them.
type Rule interface {
	// Name is the identifier used in entity specs.
	Name() string
	// Inputs lists the renamed columns the rule reads.
	Inputs() []string
	// Outputs lists the columns the rule adds.
	Outputs() []string
	// Apply returns the derived table. It may drop rows but never fails.
	Apply(rows []records.Record) []records.Record
}

// MinSegments is the number of '-' separated segments a functional-location
// code needs before a parent line can be recovered from it.
const MinSegments = 5

// ParentKey returns the parent line code of a hierarchical location code:
// the code without its last segment. Codes with fewer than MinSegments
// segments have no parent.
//
//	ParentKey("A-B-C-D-E") == "A-B-C-D", true
//	ParentKey("A-B-C")     == "", false
func ParentKey(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}
	parts := strings.Split(code, "-")
	if len(parts) < MinSegments {
		return "", false
	}
	return strings.Join(parts[:len(parts)-1], "-"), true
}

var builtins = map[string]Rule{}

func register(r Rule) { builtins[r.Name()] = r }

func init() {
	register(ParentLine{From: "LokalizacjaFunkcjonalnaId", To: "LiniaId"})
	register(LineRollup{From: "LokalizacjaFunkcjonalnaId", To: "LiniaId", Label: "LiniaNazwa"})
	register(BalanceKey{To: "BilansId", Parts: []string{"Od", "Do", "LiniaId", "Rodzina"}, Required: "LiniaId"})
}

// Lookup returns the built-in rule registered under name.
func Lookup(name string) (Rule, bool) {
	r, ok := builtins[name]
	return r, ok
}

// Names lists the built-in rule names in sorted order.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for n := range builtins {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
