package storage

import (
	"context"
	"strings"
	"testing"

	"plantload/internal/ddl"
)

type stubStore struct{ dsn string }

func (stubStore) ExistingKeys(context.Context, string, string) (KeySet, error) { return KeySet{}, nil }
func (stubStore) Begin(context.Context) (Tx, error)                              { return nil, nil }
func (stubStore) EnsureTable(context.Context, ddl.TableDef) error                { return nil }
func (stubStore) Close()                                                         {}

func TestRegisterAndNew(t *testing.T) {
	Register("stub", func(_ context.Context, cfg Config) (Store, error) {
		return stubStore{dsn: cfg.DSN}, nil
	})
	s, err := New(context.Background(), Config{Kind: "stub", DSN: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if s.(stubStore).dsn != "x" {
		t.Fatalf("cfg not passed through: %+v", s)
	}
	found := false
	for _, k := range ListKinds() {
		if k == "stub" {
			found = true
		}
	}
	if !found {
		t.Fatalf("kinds=%v", ListKinds())
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "oracle"})
	if err == nil || !strings.Contains(err.Error(), `unknown kind "oracle"`) {
		t.Fatalf("err=%v", err)
	}
}

func TestKeySet(t *testing.T) {
	s := KeySet{"11": {}}
	if !s.Has("11") || s.Has("10") {
		t.Fatal("KeySet.Has")
	}
}
