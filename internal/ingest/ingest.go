// Package ingest runs one batch: for every selected entity it discovers the
// export files in the entity's folder, parses and transforms each file and
// loads the result, then archives the files that were handled cleanly.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"plantload/internal/datasource"
	"plantload/internal/datasource/file"
	"plantload/internal/ddl"
	"plantload/internal/entity"
	"plantload/internal/header"
	"plantload/internal/loader"
	"plantload/internal/metrics"
	pcsv "plantload/internal/parser/csv"
	"plantload/internal/pipeline"
	"plantload/internal/storage"
	"plantload/pkg/records"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// FileError is a file-level failure for one entity. It does not stop the run.
type FileError struct {
	Entity string
	Path   string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("entity %s: file %s: %v", e.Entity, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Options configures a Runner.
type Options struct {
	// BaseDir holds one sub-folder per entity folder name.
	BaseDir string
	// ArchiveDir, when set, receives handled files under <ArchiveDir>/<folder>/.
	ArchiveDir string
	// Readers maps each folder to every kind registered for it, selected or
	// not. A file is archived only when all of them handled it in this run.
	// Nil means the run's own specs are the complete set.
	Readers map[string][]string
	// Workers bounds how many entities are processed at once.
	Workers int
	// CreateTables creates missing target tables before loading.
	CreateTables bool
	Verbose      bool
}

// FileReport is the outcome of one entity over one file.
type FileReport struct {
	Entity string
	Path   string
	// Duplicate is set when the file repeats the bytes of an earlier file in
	// the same folder; it is not loaded again.
	Duplicate bool
	Stats     pipeline.Stats
	Load      loader.Result
	Err       error
}

// Summary collects every FileReport of a run.
type Summary struct {
	RunID    string
	Files    []FileReport
	Archived []string
	Duration time.Duration
}

// Failed returns the reports that carry a file-level error.
func (s Summary) Failed() []FileReport {
	var out []FileReport
	for _, f := range s.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Runner executes batches against one store.
type Runner struct {
	store  storage.Store
	loader *loader.Loader
	opt    Options

	// open is replaced in tests.
	open func(path string) datasource.Source
}

// NewRunner builds a Runner. Workers below 1 means one.
func NewRunner(store storage.Store, opt Options) *Runner {
	if opt.Workers < 1 {
		opt.Workers = 1
	}
	return &Runner{
		store:  store,
		loader: loader.New(store, loader.WithVerbose(opt.Verbose)),
		opt:    opt,
		open:   func(path string) datasource.Source { return file.NewLocal(path) },
	}
}

// Run processes specs and returns the per-file summary. The error is non-nil
// only for failures that end the run: an unreachable store, table bootstrap
// failure or cancellation. File-level problems are in Summary.Failed.
func (r *Runner) Run(ctx context.Context, specs []entity.Spec) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString()}
	log.Printf("ingest: run=%s started entities=%d base_dir=%s workers=%d", sum.RunID, len(specs), r.opt.BaseDir, r.opt.Workers)

	if r.opt.CreateTables {
		if err := r.ensureTables(ctx, specs); err != nil {
			return sum, err
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opt.Workers)
	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			reports, err := r.runEntity(gctx, sum.RunID, spec)
			mu.Lock()
			sum.Files = append(sum.Files, reports...)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()

	sort.SliceStable(sum.Files, func(i, j int) bool {
		if sum.Files[i].Entity != sum.Files[j].Entity {
			return sum.Files[i].Entity < sum.Files[j].Entity
		}
		return sum.Files[i].Path < sum.Files[j].Path
	})
	if err == nil && r.opt.ArchiveDir != "" {
		sum.Archived = r.archive(sum.RunID, specs, sum.Files)
	}
	sum.Duration = time.Since(start)
	logSummary(sum)
	return sum, err
}

func (r *Runner) ensureTables(ctx context.Context, specs []entity.Spec) error {
	for _, s := range specs {
		def, err := ddl.FromSpec(s)
		if err != nil {
			return fmt.Errorf("ingest: table for %s: %w", s.Kind, err)
		}
		if err := r.store.EnsureTable(ctx, def); err != nil {
			return fmt.Errorf("ingest: ensure table %s: %w", def.FQN, err)
		}
		if r.opt.Verbose {
			log.Printf("ingest: table ensured: %s", def.FQN)
		}
	}
	return nil
}

func (r *Runner) runEntity(ctx context.Context, runID string, spec entity.Spec) ([]FileReport, error) {
	dir := filepath.Join(r.opt.BaseDir, spec.Folder)
	paths, err := file.Discover(ctx, dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		log.Printf("ingest: run=%s entity=%s no files in %s", runID, spec.Kind, dir)
		return nil, nil
	}

	seen := map[uint64]string{}
	reports := make([]FileReport, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := r.runFile(ctx, spec, p, seen)
		if err != nil {
			return append(reports, rep), err
		}
		reports = append(reports, rep)
		logFile(runID, rep)
	}
	return reports, nil
}

// runFile returns a non-nil error only when the run must stop. File-level
// failures are stored in the report.
func (r *Runner) runFile(ctx context.Context, spec entity.Spec, path string, seen map[uint64]string) (FileReport, error) {
	rep := FileReport{Entity: spec.Kind, Path: path}
	start := time.Now()

	tbl, digest, err := r.read(ctx, spec, path)
	metrics.RecordStep(spec.Kind, "read", err, time.Since(start))
	if err != nil {
		rep.Err = &FileError{Entity: spec.Kind, Path: path, Err: err}
		return rep, fatal(ctx, err)
	}
	if first, ok := seen[digest]; ok {
		log.Printf("ingest: entity=%s file=%s duplicate of %s, skipping", spec.Kind, path, first)
		rep.Duplicate = true
		return rep, nil
	}
	seen[digest] = path

	start = time.Now()
	batch, st, err := pipeline.TransformTable(tbl, spec)
	metrics.RecordStep(spec.Kind, "transform", err, time.Since(start))
	rep.Stats = st
	metrics.RecordRows(spec.Kind, metrics.KindRead, st.Read)
	metrics.RecordRows(spec.Kind, metrics.KindCoercionFailed, st.CoercionFailures)
	metrics.RecordRows(spec.Kind, metrics.KindKeyDropped, st.KeyDropped)
	metrics.RecordRows(spec.Kind, metrics.KindDuplicate, st.Duplicates)
	if err != nil {
		rep.Err = &FileError{Entity: spec.Kind, Path: path, Err: err}
		return rep, nil
	}

	res, err := r.loader.Load(ctx, batch)
	metrics.RecordStep(spec.Kind, "load", err, res.Duration)
	rep.Load = res
	metrics.RecordRows(spec.Kind, metrics.KindSkippedExisting, res.Skipped)
	metrics.RecordRows(spec.Kind, metrics.KindInserted, res.Inserted)
	metrics.RecordRows(spec.Kind, metrics.KindInsertFailed, len(res.Failed))
	if err != nil {
		rep.Err = &FileError{Entity: spec.Kind, Path: path, Err: err}
		if errors.Is(err, loader.ErrStoreUnavailable) {
			return rep, rep.Err
		}
		return rep, fatal(ctx, err)
	}
	return rep, nil
}

func (r *Runner) read(ctx context.Context, spec entity.Spec, path string) (records.Table, uint64, error) {
	rc, err := r.open(path).Open(ctx)
	if err != nil {
		return records.Table{}, 0, err
	}
	defer rc.Close()

	opt := pcsv.Options{Comma: spec.Delimiter(), Encoding: spec.Encoding}
	if spec.Format == entity.FormatBalance {
		opt.SkipForSniff = 1
	}
	doc, err := pcsv.NewParser(opt).Parse(rc)
	if err != nil {
		return records.Table{}, 0, err
	}
	if doc.Skipped > 0 {
		log.Printf("ingest: entity=%s file=%s malformed_lines=%d", spec.Kind, path, doc.Skipped)
	}

	if spec.Format == entity.FormatBalance {
		tbl, err := header.Normalize(doc.Lines)
		if err != nil {
			return records.Table{}, 0, fmt.Errorf("%w: %w", pipeline.ErrSchemaMismatch, err)
		}
		return tbl, doc.Digest, nil
	}
	return pcsv.Table(doc.Lines), doc.Digest, nil
}

// fatal passes context errors through so cancellation ends the run.
func fatal(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	return nil
}

// archive moves every file that all of its folder's readers handled without
// a file-level error in this run. A file some reader did not see stays in
// place for a later run. Archive failures are logged, not returned.
func (r *Runner) archive(runID string, specs []entity.Spec, reports []FileReport) []string {
	readers := r.opt.Readers
	if readers == nil {
		readers = map[string][]string{}
		for _, s := range specs {
			readers[s.Folder] = append(readers[s.Folder], s.Kind)
		}
	}
	folderOf := map[string]string{}
	for _, s := range specs {
		folderOf[s.Kind] = s.Folder
	}

	clean := map[string]map[string]bool{}
	folder := map[string]string{}
	var order []string
	for _, rep := range reports {
		h, ok := clean[rep.Path]
		if !ok {
			h = map[string]bool{}
			clean[rep.Path] = h
			folder[rep.Path] = folderOf[rep.Entity]
			order = append(order, rep.Path)
		}
		h[rep.Entity] = rep.Err == nil
	}

	var moved []string
	for _, p := range order {
		var failed, missing []string
		for kind, ok := range clean[p] {
			if !ok {
				failed = append(failed, kind)
			}
		}
		for _, kind := range readers[folder[p]] {
			if _, ran := clean[p][kind]; !ran {
				missing = append(missing, kind)
			}
		}
		if len(failed) > 0 {
			continue
		}
		if len(missing) > 0 {
			log.Printf("ingest: run=%s keeping %s: not read by %s", runID, p, strings.Join(missing, ","))
			continue
		}
		dst, err := file.Archive(p, filepath.Join(r.opt.ArchiveDir, folder[p]))
		if err != nil {
			log.Printf("ingest: run=%s archive failed: %v", runID, err)
			continue
		}
		if r.opt.Verbose {
			log.Printf("ingest: run=%s archived %s -> %s", runID, p, dst)
		}
		moved = append(moved, dst)
	}
	return moved
}

func logFile(runID string, rep FileReport) {
	if rep.Duplicate {
		return
	}
	if rep.Err != nil {
		log.Printf("ingest: run=%s entity=%s file=%s error: %v", runID, rep.Entity, rep.Path, rep.Err)
		return
	}
	log.Printf("ingest: run=%s entity=%s file=%s read=%d inserted=%d skipped=%d failed=%d duplicates=%d key_dropped=%d coercion_failures=%d state=%s",
		runID, rep.Entity, filepath.Base(rep.Path), rep.Stats.Read, rep.Load.Inserted, rep.Load.Skipped,
		len(rep.Load.Failed), rep.Stats.Duplicates, rep.Stats.KeyDropped, rep.Stats.CoercionFailures, rep.Load.State)
}

func logSummary(s Summary) {
	type total struct{ files, read, inserted, skipped, failed, errors int }
	totals := map[string]*total{}
	var kinds []string
	for _, f := range s.Files {
		t, ok := totals[f.Entity]
		if !ok {
			t = &total{}
			totals[f.Entity] = t
			kinds = append(kinds, f.Entity)
		}
		t.files++
		t.read += f.Stats.Read
		t.inserted += f.Load.Inserted
		t.skipped += f.Load.Skipped
		t.failed += len(f.Load.Failed)
		if f.Err != nil {
			t.errors++
		}
	}
	for _, k := range kinds {
		t := totals[k]
		log.Printf("ingest: run=%s summary entity=%s files=%d read=%d inserted=%d skipped=%d failed=%d file_errors=%d",
			s.RunID, k, t.files, t.read, t.inserted, t.skipped, t.failed, t.errors)
	}
	log.Printf("ingest: run=%s finished files=%d file_errors=%d archived=%d in %s",
		s.RunID, len(s.Files), len(s.Failed()), len(s.Archived), s.Duration.Truncate(time.Millisecond))
}
