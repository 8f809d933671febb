package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"plantload/internal/datasource"
	"plantload/internal/entity"
	"plantload/internal/loader"
	"plantload/internal/pipeline"
	"plantload/internal/storage"
	"plantload/internal/storage/sqlite"
	"plantload/internal/storage/sqlstore"
)

const orders = "Nr zlecenia;Rodzaj;Data;Godzina\n" +
	"10;PM01;01.02.2024;08:00:00\n" +
	"11;PM02;02.02.2024;09:30:00\n" +
	"10;PM01;01.02.2024;08:00:00\n"

const locations = "Lokaliz. funkc.;Oznaczenie\n" +
	"PL-ZAK-PROD-L01-ST1;Stacja 1\n" +
	"PL-ZAK-PROD-L01-ST2;Stacja 2\n" +
	"PL-ZAK;Zaklad\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func fixture(t *testing.T) (string, []entity.Spec) {
	t.Helper()
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "zlecenia"), "z1.csv", orders)
	writeFile(t, filepath.Join(base, "zlecenia"), "z1_copy.csv", orders)
	writeFile(t, filepath.Join(base, "zlecenia"), "bad.csv", "Foo;Bar\n1;2\n")
	writeFile(t, filepath.Join(base, "lokalizacja_funkcjonalna"), "lf.csv", locations)

	specs, err := entity.Default().Select([]string{"zlecenia", "linie", "lokalizacja_funkcjonalna"})
	if err != nil {
		t.Fatal(err)
	}
	return base, specs
}

func openSQLite(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlite.NewStore(context.Background(), storage.Config{Kind: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func count(t *testing.T, s *sqlstore.Store, table string) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table)).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func report(t *testing.T, sum Summary, entity, name string) FileReport {
	t.Helper()
	for _, f := range sum.Files {
		if f.Entity == entity && filepath.Base(f.Path) == name {
			return f
		}
	}
	t.Fatalf("no report for %s/%s in %+v", entity, name, sum.Files)
	return FileReport{}
}

func TestRun_EndToEndIdempotent(t *testing.T) {
	base, specs := fixture(t)
	store := openSQLite(t)
	r := NewRunner(store, Options{BaseDir: base, Workers: 2, CreateTables: true})
	ctx := context.Background()

	sum, err := r.Run(ctx, specs)
	if err != nil {
		t.Fatalf("run 1: %v", err)
	}
	if sum.RunID == "" {
		t.Fatal("missing run id")
	}

	z := report(t, sum, "zlecenia", "z1.csv")
	if z.Load.Inserted != 2 || z.Stats.Duplicates != 1 || z.Load.State != loader.Committed {
		t.Fatalf("z1: %+v", z)
	}
	if dup := report(t, sum, "zlecenia", "z1_copy.csv"); !dup.Duplicate || dup.Load.Inserted != 0 {
		t.Fatalf("copy: %+v", dup)
	}
	bad := report(t, sum, "zlecenia", "bad.csv")
	var fe *FileError
	if !errors.As(bad.Err, &fe) || fe.Entity != "zlecenia" || !errors.Is(bad.Err, pipeline.ErrSchemaMismatch) {
		t.Fatalf("bad: %v", bad.Err)
	}
	if got := len(sum.Failed()); got != 1 {
		t.Fatalf("failed=%d", got)
	}

	if n := count(t, store, "Zlecenia"); n != 2 {
		t.Fatalf("Zlecenia rows=%d", n)
	}
	if n := count(t, store, "Linie"); n != 1 {
		t.Fatalf("Linie rows=%d", n)
	}
	if n := count(t, store, "LokalizacjaFunkcjonalna"); n != 3 {
		t.Fatalf("LokalizacjaFunkcjonalna rows=%d", n)
	}

	sum, err = r.Run(ctx, specs)
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	for _, f := range sum.Files {
		if f.Load.Inserted != 0 {
			t.Fatalf("second run inserted: %+v", f)
		}
	}
	if z := report(t, sum, "zlecenia", "z1.csv"); z.Load.Skipped != 2 {
		t.Fatalf("second run skipped=%d", z.Load.Skipped)
	}
	if n := count(t, store, "Zlecenia"); n != 2 {
		t.Fatalf("Zlecenia rows after rerun=%d", n)
	}
}

func TestRun_ArchivesHandledFiles(t *testing.T) {
	base, specs := fixture(t)
	archive := t.TempDir()
	store := openSQLite(t)
	r := NewRunner(store, Options{BaseDir: base, ArchiveDir: archive, Readers: entity.Default().Folders(), CreateTables: true})

	sum, err := r.Run(context.Background(), specs)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Archived) != 3 {
		t.Fatalf("archived=%v", sum.Archived)
	}
	for _, p := range []string{"zlecenia/z1.csv", "zlecenia/z1_copy.csv", "lokalizacja_funkcjonalna/lf.csv"} {
		if _, err := os.Stat(filepath.Join(archive, p)); err != nil {
			t.Fatalf("%s not archived: %v", p, err)
		}
		if _, err := os.Stat(filepath.Join(base, p)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s still in source: %v", p, err)
		}
	}
	if _, err := os.Stat(filepath.Join(base, "zlecenia", "bad.csv")); err != nil {
		t.Fatalf("failed file must stay: %v", err)
	}
}

func TestRun_BalanceReport(t *testing.T) {
	base := t.TempDir()
	head := []string{"Linia", "Rodzina"}
	unit := []string{"", ""}
	row := []string{"10", "A"}
	for i := 0; i < 39; i++ {
		head = append(head, fmt.Sprintf("M%02d", i))
		unit = append(unit, "")
		row = append(row, "1,5")
	}
	content := strings.Join([]string{
		"Bilans produkcji Od 01.03.2024 Do 31.03.2024",
		"Zaklad",
		";",
		strings.Join(head, ";"),
		strings.Join(unit, ";"),
		"---",
		strings.Join(row, ";"),
	}, "\n") + "\n"
	writeFile(t, filepath.Join(base, "bilans"), "b.csv", content)

	spec, err := entity.Default().Resolve("bilans_produkcji")
	if err != nil {
		t.Fatal(err)
	}
	// Re-map the metric columns onto the synthetic header.
	for i := 4; i < len(spec.SourceColumns); i++ {
		spec.SourceColumns[i].Source = fmt.Sprintf("M%02d", i-4)
	}

	store := openSQLite(t)
	sum, err := NewRunner(store, Options{BaseDir: base, CreateTables: true}).Run(context.Background(), []entity.Spec{spec})
	if err != nil {
		t.Fatal(err)
	}
	rep := report(t, sum, "bilans_produkcji", "b.csv")
	if rep.Err != nil || rep.Load.Inserted != 1 || rep.Stats.CoercionFailures != 0 {
		t.Fatalf("balance: %+v", rep)
	}
	var id string
	if err := store.DB().QueryRow(`SELECT "BilansId" FROM "BilansProdukcji"`).Scan(&id); err != nil {
		t.Fatal(err)
	}
	if id != "01.03.2024|31.03.2024|10|A" {
		t.Fatalf("BilansId=%q", id)
	}
}

type unavailableStore struct{ storage.Store }

func (unavailableStore) ExistingKeys(context.Context, string, string) (storage.KeySet, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestRun_StoreUnavailableIsFatal(t *testing.T) {
	base, specs := fixture(t)
	r := NewRunner(unavailableStore{Store: openSQLite(t)}, Options{BaseDir: base, ArchiveDir: t.TempDir()})

	sum, err := r.Run(context.Background(), specs[:1])
	if !errors.Is(err, loader.ErrStoreUnavailable) {
		t.Fatalf("err=%v", err)
	}
	if len(sum.Archived) != 0 {
		t.Fatalf("archived after fatal error: %v", sum.Archived)
	}
}

type failingSource struct{}

func (failingSource) Open(context.Context) (io.ReadCloser, error) {
	return nil, errors.New("permission denied")
}

func TestRun_OpenFailureIsFileLevel(t *testing.T) {
	base, specs := fixture(t)
	r := NewRunner(openSQLite(t), Options{BaseDir: base, CreateTables: true})
	r.open = func(string) datasource.Source { return failingSource{} }

	sum, err := r.Run(context.Background(), specs[:1])
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(sum.Failed()) != 3 {
		t.Fatalf("failed=%+v", sum.Failed())
	}
}

func TestRun_MissingFolderIsEmpty(t *testing.T) {
	specs, err := entity.Default().Select([]string{"urzadzenia"})
	if err != nil {
		t.Fatal(err)
	}
	sum, err := NewRunner(openSQLite(t), Options{BaseDir: t.TempDir()}).Run(context.Background(), specs)
	if err != nil || len(sum.Files) != 0 {
		t.Fatalf("sum=%+v err=%v", sum, err)
	}
}

func TestRun_ShortBalanceReportIsSchemaMismatch(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "bilans"), "short.csv", "Bilans Od 01.03.2024\nLinia;Rodzina\n")
	specs, err := entity.Default().Select([]string{"bilans_produkcji"})
	if err != nil {
		t.Fatal(err)
	}
	sum, err := NewRunner(openSQLite(t), Options{BaseDir: base, CreateTables: true}).Run(context.Background(), specs)
	if err != nil {
		t.Fatal(err)
	}
	rep := report(t, sum, "bilans_produkcji", "short.csv")
	if !errors.Is(rep.Err, pipeline.ErrSchemaMismatch) {
		t.Fatalf("err=%v", rep.Err)
	}
}

func TestRun_KeepsSharedFileUntilEveryReaderRan(t *testing.T) {
	base, _ := fixture(t)
	archive := t.TempDir()
	reg := entity.Default()
	specs, err := reg.Select([]string{"linie"})
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(openSQLite(t), Options{BaseDir: base, ArchiveDir: archive, Readers: reg.Folders(), CreateTables: true})

	sum, err := r.Run(context.Background(), specs)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Archived) != 0 {
		t.Fatalf("archived=%v", sum.Archived)
	}
	src := filepath.Join(base, "lokalizacja_funkcjonalna", "lf.csv")
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("shared file moved before lokalizacja_funkcjonalna read it: %v", err)
	}

	specs, err = reg.Select([]string{"linie", "lokalizacja_funkcjonalna"})
	if err != nil {
		t.Fatal(err)
	}
	sum, err = r.Run(context.Background(), specs)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Archived) != 1 {
		t.Fatalf("archived=%v", sum.Archived)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source after full run: %v", err)
	}
}
