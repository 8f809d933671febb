// Package ddl is the backend-agnostic table model used to bootstrap target
// tables. Backends render it in their own dialect.
package ddl

import (
	"fmt"
	"strings"

	"plantload/internal/coerce"
	"plantload/internal/entity"
)

// ColumnDef describes one column.
//
//   - Name: column name, unquoted
//   - Type: logical type, mapped to SQL by each backend
//   - SQLType: explicit SQL type; overrides Type when set
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: part of the primary key
//   - Default: raw SQL default expression
type ColumnDef struct {
	Name       string
	Type       coerce.Type
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the possibly schema-qualified table name and its ordered
// columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// FromSpec derives the table definition of an entity: every target column in
// order, typed from the spec, with the key column NOT NULL PRIMARY KEY.
func FromSpec(s entity.Spec) (TableDef, error) {
	if strings.TrimSpace(s.TargetTable) == "" {
		return TableDef{}, fmt.Errorf("ddl: entity %s has no target table", s.Kind)
	}
	td := TableDef{FQN: s.TargetTable, Columns: make([]ColumnDef, 0, len(s.TargetColumns))}
	for _, c := range s.TargetColumns {
		t, ok := s.ColumnTypes[c]
		if !ok {
			return TableDef{}, fmt.Errorf("ddl: entity %s column %s has no type", s.Kind, c)
		}
		pk := c == s.PrimaryKey
		td.Columns = append(td.Columns, ColumnDef{Name: c, Type: t, Nullable: !pk, PrimaryKey: pk})
	}
	return td, nil
}

// Dialect renders identifiers and column types for one SQL flavour.
type Dialect struct {
	// Name prefixes error messages, e.g. "mssql ddl".
	Name string
	// QuoteIdent quotes one identifier segment.
	QuoteIdent func(string) string
	// MapType returns the SQL type of a logical type; key is true for
	// primary-key columns, which some engines require to be bounded.
	MapType func(t coerce.Type, key bool) string
}

// QuoteFQN quotes every dot-separated segment of fqn.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, d.QuoteIdent(p))
	}
	return strings.Join(out, ".")
}

// ColumnList renders the column definitions and the PRIMARY KEY clause.
func (d Dialect) ColumnList(t TableDef) ([]string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return nil, fmt.Errorf("%s: table FQN must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("%s: at least one column is required", d.Name)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, 1)
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("%s: column with empty name in table %s", d.Name, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			typ = d.MapType(c.Type, c.PrimaryKey)
		}
		if typ == "" {
			return nil, fmt.Errorf("%s: column %s missing SQL type", d.Name, name)
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())
		if c.PrimaryKey {
			pks = append(pks, d.QuoteIdent(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	return cols, nil
}

// CreateIfNotExists renders the portable CREATE TABLE IF NOT EXISTS form
// used by Postgres, MySQL and SQLite.
func (d Dialect) CreateIfNotExists(t TableDef) (string, error) {
	cols, err := d.ColumnList(t)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		d.QuoteFQN(t.FQN),
		strings.Join(cols, ",\n  "),
	), nil
}
