// Command plantload loads SAP maintenance and production CSV exports into
// the plant database. main stays small; run holds the logic and takes its
// side effects through Deps so tests can swap them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"plantload/internal/config"
	"plantload/internal/entity"
	"plantload/internal/ingest"
	"plantload/internal/metrics"
	"plantload/internal/metrics/datadog"
	"plantload/internal/metrics/prompush"
	"plantload/internal/pipeline"
	"plantload/internal/storage"

	// Every backend registers itself with the storage factory.
	_ "plantload/internal/storage/all"

	"github.com/robfig/cron/v3"
)

// errFilesFailed is returned in -strict mode when a run had file-level errors.
var errFilesFailed = errors.New("one or more files failed")

type batchRunner interface {
	Run(ctx context.Context, specs []entity.Spec) (ingest.Summary, error)
}

// Deps are the boundaries run touches.
type Deps struct {
	OpenStore func(ctx context.Context, cfg storage.Config) (storage.Store, error)
	NewRunner func(store storage.Store, opt ingest.Options) batchRunner
	Stdout    io.Writer
}

func defaultDeps() Deps {
	return Deps{
		OpenStore: storage.New,
		NewRunner: func(s storage.Store, opt ingest.Options) batchRunner { return ingest.NewRunner(s, opt) },
		Stdout:    os.Stdout,
	}
}

func run(ctx context.Context, cfg *config.Config, deps Deps) error {
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	reg, err := loadRegistry(cfg.Registry)
	if err != nil {
		return err
	}
	kinds, err := cfg.EntityKinds()
	if err != nil {
		return err
	}
	specs, err := reg.Select(kinds)
	if err != nil {
		return err
	}

	if cfg.List {
		return list(deps.Stdout, specs)
	}
	if cfg.Validate {
		log.Printf("configuration is valid: driver=%s entities=%d base_dir=%s", cfg.DBDriver, len(specs), cfg.BaseDir)
		return nil
	}

	flush, err := setupMetrics(cfg)
	if err != nil {
		return err
	}
	defer flush()
	pipeline.Verbose = cfg.Verbose

	store, err := deps.OpenStore(ctx, storage.Config{Kind: cfg.DBDriver, DSN: cfg.DatabaseDSN(), MaxConns: cfg.MaxConns})
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.DBDriver, err)
	}
	defer store.Close()

	runner := deps.NewRunner(store, ingest.Options{
		BaseDir:      cfg.BaseDir,
		ArchiveDir:   cfg.ArchiveDir,
		Readers:      reg.Folders(),
		Workers:      cfg.Workers,
		CreateTables: cfg.CreateTables,
		Verbose:      cfg.Verbose,
	})

	if cfg.Schedule == "" {
		sum, err := runner.Run(ctx, specs)
		if err != nil {
			return err
		}
		if cfg.Strict && len(sum.Failed()) > 0 {
			return fmt.Errorf("%w: %d", errFilesFailed, len(sum.Failed()))
		}
		return nil
	}
	return schedule(ctx, cfg.Schedule, func() {
		if _, err := runner.Run(ctx, specs); err != nil {
			log.Printf("schedule: run failed: %v", err)
		}
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	})
}

func loadRegistry(path string) (*entity.Registry, error) {
	if path == "" {
		return entity.NewRegistry(entity.DefaultSpecs()...)
	}
	return entity.LoadFile(path)
}

func list(w io.Writer, specs []entity.Spec) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tFOLDER\tTABLE\tKEY\tFORMAT")
	for _, s := range specs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Kind, s.Folder, s.TargetTable, s.PrimaryKey, s.Format)
	}
	return tw.Flush()
}

// schedule runs job on spec until ctx is done. A tick that fires while the
// previous run is still going is skipped.
func schedule(ctx context.Context, spec string, job func()) error {
	logger := cron.PrintfLogger(log.Default())
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(spec, job); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	log.Printf("schedule: %q, waiting for the first tick", spec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	log.Printf("schedule: stopped")
	return nil
}

// setupMetrics installs the configured backend and returns its flush.
func setupMetrics(cfg *config.Config) (func(), error) {
	var b metrics.Backend
	switch cfg.MetricsBackend {
	case "pushgateway":
		host, _ := os.Hostname()
		pb, err := prompush.NewBackend("plantload", host, cfg.PushgatewayURL)
		if err != nil {
			return nil, err
		}
		b = pb
	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{Addr: cfg.DogStatsdAddr, Namespace: "plantload.", Tags: []string{"driver:" + cfg.DBDriver}})
		if err != nil {
			return nil, err
		}
		b = db
	default:
		return func() {}, nil
	}
	metrics.SetBackend(b)
	log.Printf("metrics: backend=%s", cfg.MetricsBackend)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
		if c, ok := b.(io.Closer); ok {
			_ = c.Close()
		}
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, defaultDeps())
	stop()
	switch {
	case err == nil:
	case errors.Is(err, errFilesFailed):
		log.Print(err)
		os.Exit(2)
	default:
		log.Print(err)
		os.Exit(1)
	}
}
