package ddl

import (
	"strings"
	"testing"

	"plantload/internal/coerce"
	"plantload/internal/entity"
)

var testDialect = Dialect{
	Name:       "test ddl",
	QuoteIdent: func(s string) string { return `"` + s + `"` },
	MapType: func(t coerce.Type, key bool) string {
		if t == coerce.Integer {
			return "BIGINT"
		}
		return "TEXT"
	},
}

func TestFromSpec(t *testing.T) {
	s, err := entity.Default().Resolve("urzadzenia")
	if err != nil {
		t.Fatal(err)
	}
	td, err := FromSpec(s)
	if err != nil {
		t.Fatal(err)
	}
	if td.FQN != "Urzadzenia" || len(td.Columns) != 2 {
		t.Fatalf("td=%+v", td)
	}
	id := td.Columns[0]
	if id.Name != "UrzadzenieId" || !id.PrimaryKey || id.Nullable || id.Type != coerce.Integer {
		t.Fatalf("key column=%+v", id)
	}
	if name := td.Columns[1]; name.PrimaryKey || !name.Nullable {
		t.Fatalf("name column=%+v", name)
	}
}

func TestFromSpec_MissingType(t *testing.T) {
	s := entity.Spec{Kind: "x", TargetTable: "X", TargetColumns: []string{"Id"}}
	if _, err := FromSpec(s); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateIfNotExists(t *testing.T) {
	got, err := testDialect.CreateIfNotExists(TableDef{
		FQN: "dbo.Urzadzenia",
		Columns: []ColumnDef{
			{Name: "UrzadzenieId", Type: coerce.Integer, PrimaryKey: true},
			{Name: "UrzadzenieNazwa", Type: coerce.Text, Nullable: true},
			{Name: "Zrodlo", SQLType: "VARCHAR(10)", Nullable: true, Default: "'sap'"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "CREATE TABLE IF NOT EXISTS \"dbo\".\"Urzadzenia\" (\n" +
		"  \"UrzadzenieId\" BIGINT NOT NULL,\n" +
		"  \"UrzadzenieNazwa\" TEXT,\n" +
		"  \"Zrodlo\" VARCHAR(10) DEFAULT 'sap',\n" +
		"  PRIMARY KEY (\"UrzadzenieId\")\n);"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestColumnList_Errors(t *testing.T) {
	cases := map[string]TableDef{
		"FQN must not be empty":  {Columns: []ColumnDef{{Name: "a", Type: coerce.Text}}},
		"at least one column":    {FQN: "t"},
		"column with empty name": {FQN: "t", Columns: []ColumnDef{{Type: coerce.Text}}},
	}
	for want, td := range cases {
		_, err := testDialect.ColumnList(td)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("want %q, got %v", want, err)
		}
	}
}
