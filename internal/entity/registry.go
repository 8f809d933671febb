package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"plantload/internal/coerce"
)

// ErrUnknownEntity is returned by Resolve for kinds that are not registered.
var ErrUnknownEntity = errors.New("unknown entity")

// Registry is an immutable set of specs keyed by kind. It is safe for
// concurrent use because nothing mutates it after construction.
type Registry struct {
	order []string
	specs map[string]Spec
}

// NewRegistry validates specs and builds a Registry. Kinds must be unique.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	var errs []error
	for _, s := range specs {
		s = s.clone()
		s.normalize()
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := r.specs[s.Kind]; dup {
			errs = append(errs, fmt.Errorf("entity %s: registered twice", s.Kind))
			continue
		}
		r.order = append(r.order, s.Kind)
		r.specs[s.Kind] = s
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve returns a copy of the spec registered for kind.
func (r *Registry) Resolve(kind string) (Spec, error) {
	s, ok := r.specs[kind]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownEntity, kind)
	}
	return s.clone(), nil
}

// Kinds lists the registered kinds in registration order.
func (r *Registry) Kinds() []string {
	return append([]string(nil), r.order...)
}

// Folders maps every folder to the kinds that read it, in registration order.
func (r *Registry) Folders() map[string][]string {
	out := map[string][]string{}
	for _, k := range r.order {
		f := r.specs[k].Folder
		out[f] = append(out[f], k)
	}
	return out
}

// Select resolves a list of kinds; an empty list selects every kind. The
// first unknown kind aborts the selection.
func (r *Registry) Select(kinds []string) ([]Spec, error) {
	if len(kinds) == 0 {
		kinds = r.order
	}
	out := make([]Spec, 0, len(kinds))
	for _, k := range kinds {
		s, err := r.Resolve(strings.TrimSpace(k))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// registryFile is the JSON shape accepted by LoadFile.
type registryFile struct {
	Entities []specJSON `json:"entities"`
}

// specJSON accepts column types as plain strings so that aliases such as
// "int" or "str" from older pipeline files keep working.
type specJSON struct {
	Spec
	ColumnTypes map[string]string `json:"column_types"`
}

// LoadFile reads a JSON registry from path. The result replaces the built-in
// registry; it is not merged with it.
//
//	{"entities": [{"kind": "zlecenia", "folder": "zlecenia",
//	  "source_columns": [{"source": "Nr zlecenia", "target": "ZlecenieId"}],
//	  "target_table": "Zlecenia", "target_columns": ["ZlecenieId"],
//	  "column_types": {"ZlecenieId": "int"}}]}
func LoadFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return Parse(b)
}

// Parse decodes a JSON registry document.
func Parse(b []byte) (*Registry, error) {
	var f registryFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	specs := make([]Spec, 0, len(f.Entities))
	for _, e := range f.Entities {
		s := e.Spec
		s.ColumnTypes = make(map[string]coerce.Type, len(e.ColumnTypes))
		for col, raw := range e.ColumnTypes {
			t, err := coerce.ParseType(raw)
			if err != nil {
				return nil, fmt.Errorf("entity %s column %s: %w", s.Kind, col, err)
			}
			s.ColumnTypes[col] = t
		}
		specs = append(specs, s)
	}
	return NewRegistry(specs...)
}
