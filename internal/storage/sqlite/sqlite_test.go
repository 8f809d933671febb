package sqlite

import (
	"context"
	"testing"

	"plantload/internal/coerce"
	"plantload/internal/ddl"
	"plantload/internal/storage"
)

func newMem(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite :memory:: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

var lines = ddl.TableDef{
	FQN: "Linie",
	Columns: []ddl.ColumnDef{
		{Name: "LiniaId", Type: coerce.Text, PrimaryKey: true},
		{Name: "LiniaNazwa", Type: coerce.Text, Nullable: true},
	},
}

func TestEnsureTable_Idempotent(t *testing.T) {
	s := newMem(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := s.EnsureTable(ctx, lines); err != nil {
			t.Fatalf("EnsureTable #%d: %v", i, err)
		}
	}
}

func TestInsert_DuplicateRowIsolated(t *testing.T) {
	s := newMem(t)
	ctx := context.Background()
	if err := s.EnsureTable(ctx, lines); err != nil {
		t.Fatal(err)
	}

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cols := []string{"LiniaId", "LiniaNazwa"}
	if err := tx.Insert(ctx, "Linie", cols, []any{"A-B-C-D", "Linia 1"}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Insert(ctx, "Linie", cols, []any{"A-B-C-D", "again"}); err == nil {
		t.Fatal("expected primary key violation")
	}
	if err := tx.Insert(ctx, "Linie", cols, []any{"A-B-C-E", nil}); err != nil {
		t.Fatalf("row after failure: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	keys, err := s.ExistingKeys(ctx, "Linie", "LiniaId")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || !keys.Has("A-B-C-D") || !keys.Has("A-B-C-E") {
		t.Fatalf("keys=%v", keys)
	}
}

func TestExistingKeys_IntegerKeys(t *testing.T) {
	s := newMem(t)
	ctx := context.Background()
	def := ddl.TableDef{FQN: "Zlecenia", Columns: []ddl.ColumnDef{{Name: "ZlecenieId", Type: coerce.Integer, PrimaryKey: true}}}
	if err := s.EnsureTable(ctx, def); err != nil {
		t.Fatal(err)
	}
	tx, _ := s.Begin(ctx)
	if err := tx.Insert(ctx, "Zlecenia", []string{"ZlecenieId"}, []any{int64(11)}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	keys, err := s.ExistingKeys(ctx, "Zlecenia", "ZlecenieId")
	if err != nil || !keys.Has("11") {
		t.Fatalf("keys=%v err=%v", keys, err)
	}
}

func TestNewStore_EmptyDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), storage.Config{}); err == nil {
		t.Fatal("expected error")
	}
}
