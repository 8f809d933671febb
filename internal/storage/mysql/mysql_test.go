package mysql

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"plantload/internal/coerce"
	"plantload/internal/ddl"
	"plantload/internal/storage"
	"plantload/internal/storage/sqlstore"
)

func TestCreateTable(t *testing.T) {
	got, err := DDL.CreateIfNotExists(ddl.TableDef{
		FQN: "RodzajeZlecenia",
		Columns: []ddl.ColumnDef{
			{Name: "ZlecenieRodzaj", Type: coerce.Text, PrimaryKey: true},
			{Name: "ZlecenieRodzajNazwa", Type: coerce.Text, Nullable: true},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "CREATE TABLE IF NOT EXISTS `RodzajeZlecenia` (\n" +
		"  `ZlecenieRodzaj` VARCHAR(255) NOT NULL,\n" +
		"  `ZlecenieRodzajNazwa` TEXT,\n" +
		"  PRIMARY KEY (`ZlecenieRodzaj`)\n);"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestExistingKeys_BytesAreCanonical(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	mock.ExpectQuery("SELECT `ZlecenieId` FROM `Zlecenia`").
		WillReturnRows(sqlmock.NewRows([]string{"ZlecenieId"}).AddRow([]byte("11")))

	keys, err := sqlstore.New(db, Dialect).ExistingKeys(context.Background(), "Zlecenia", "ZlecenieId")
	if err != nil {
		t.Fatal(err)
	}
	if !keys.Has("11") {
		t.Fatalf("keys=%v", keys)
	}
}

func TestInsertSQL(t *testing.T) {
	s := sqlstore.New(nil, Dialect)
	got := s.InsertSQL("Linie", []string{"LiniaId", "LiniaNazwa"})
	if got != "INSERT INTO `Linie` (`LiniaId`, `LiniaNazwa`) VALUES (?, ?)" {
		t.Fatalf("got %s", got)
	}
}

func TestNewStore_BadDSN(t *testing.T) {
	_, err := NewStore(context.Background(), storage.Config{DSN: "user@tcp(localhost:3306"})
	if err == nil || !strings.Contains(err.Error(), "mysql dsn") {
		t.Fatalf("err=%v", err)
	}
}
