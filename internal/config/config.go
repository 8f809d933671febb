// Package config holds process configuration. Every knob is a flag whose
// default is seeded from an environment variable, so `-help` lists them all
// and deployments can stay flag-free.
//
//	cfg, err := config.Load() // .env, os.Environ, os.Args
//
// Tests call LoadFromArgs with a private FlagSet and a map-backed getenv.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"plantload/internal/datasource/file"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Drivers are the storage backends the binary is built with.
var Drivers = []string{"mssql", "mysql", "postgres", "sqlite"}

// MetricsBackends are the accepted -metrics_backend values.
var MetricsBackends = []string{"none", "pushgateway", "datadog"}

// Config is populated once and then only read.
type Config struct {
	// Input and archival.
	BaseDir    string // one sub-folder per entity folder
	ArchiveDir string // handled files are moved here; empty disables
	Entities   string // comma-separated kinds, or @file with one kind per line
	Registry   string // JSON entity registry; empty uses the built-in one

	// Target database. Postgres may be described by discrete parts instead
	// of a DSN.
	DBDriver   string
	DSN        string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	MaxConns   int

	Workers      int
	CreateTables bool

	MetricsBackend string
	PushgatewayURL string
	DogStatsdAddr  string

	Schedule string // cron expression; empty runs once
	Verbose  bool
	Validate bool // validate and exit
	List     bool // list entities and exit
	Strict   bool // exit 2 when any file failed
}

// LoadFromArgs defines the flags on fs with defaults taken from getenv and
// parses args. Explicit flags win over the environment.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := &Config{}

	env := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	envInt := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	envBool := func(k string, d bool) bool {
		switch strings.ToLower(getenv(k)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		return d
	}

	fs.StringVar(&cfg.BaseDir, "base_dir", env("BASE_DIR", "./dane"), "Directory with one sub-folder of CSV exports per entity.")
	fs.StringVar(&cfg.ArchiveDir, "archive_dir", getenv("ARCHIVE_DIR"), "Move handled files here (empty keeps them in place).")
	fs.StringVar(&cfg.Entities, "entities", getenv("ENTITIES"), "Comma-separated entity kinds or @file; empty means all.")
	fs.StringVar(&cfg.Registry, "registry", getenv("REGISTRY"), "JSON entity registry (empty uses the built-in SAP entities).")

	fs.StringVar(&cfg.DBDriver, "db_driver", env("DB_DRIVER", "mssql"), "Database driver: mssql, postgres, mysql or sqlite.")
	fs.StringVar(&cfg.DSN, "dsn", getenv("DB_DSN"), "Full DSN (required except for postgres built from parts).")
	fs.StringVar(&cfg.DBUser, "db_user", env("DB_USER", "user"), "DB user (postgres DSN builder).")
	fs.StringVar(&cfg.DBPassword, "db_password", env("DB_PASSWORD", "password"), "DB password (postgres DSN builder).")
	fs.StringVar(&cfg.DBHost, "db_host", env("DB_HOST", "localhost"), "DB host (postgres DSN builder).")
	fs.StringVar(&cfg.DBPort, "db_port", env("DB_PORT", "5432"), "DB port (postgres DSN builder).")
	fs.StringVar(&cfg.DBName, "db_name", env("DB_NAME", "plantload"), "DB name (postgres DSN builder).")
	fs.IntVar(&cfg.MaxConns, "max_conns", envInt("DB_MAX_CONNS", 0), "Connection pool cap (0 keeps the driver default).")

	fs.IntVar(&cfg.Workers, "workers", envInt("WORKERS", 4), "Entities processed in parallel.")
	fs.BoolVar(&cfg.CreateTables, "create_tables", envBool("CREATE_TABLES", false), "Create missing target tables.")

	fs.StringVar(&cfg.MetricsBackend, "metrics_backend", env("METRICS_BACKEND", "none"), "Metrics backend: none, pushgateway or datadog.")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway_url", getenv("PUSHGATEWAY_URL"), "Pushgateway base URL.")
	fs.StringVar(&cfg.DogStatsdAddr, "dogstatsd_addr", getenv("DOGSTATSD_ADDR"), "DogStatsD address, host:port or unix:///path.")

	fs.StringVar(&cfg.Schedule, "schedule", getenv("SCHEDULE"), "Cron expression; when set the batch repeats until interrupted.")
	fs.BoolVar(&cfg.Verbose, "v", envBool("VERBOSE", false), "Log every duplicate and rejected row.")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and registry, then exit.")
	fs.BoolVar(&cfg.List, "list", false, "List entity kinds with folder and table, then exit.")
	fs.BoolVar(&cfg.Strict, "strict", envBool("STRICT", false), "Exit with status 2 when any file failed.")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads an optional .env file (ENV_FILE overrides the name) without
// overriding variables already set, then parses os.Args.
func Load() (*Config, error) {
	name := os.Getenv("ENV_FILE")
	if name == "" {
		name = ".env"
	}
	if err := godotenv.Load(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return LoadFromArgs(flag.CommandLine, os.Getenv, os.Args[1:])
}

// DatabaseDSN returns the DSN to open. For postgres without -dsn it is built
// from the discrete parts.
func (c *Config) DatabaseDSN() string {
	if c.DSN != "" || c.DBDriver != "postgres" {
		return c.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   net.JoinHostPort(c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// EntityKinds returns the selected kinds; nil means all.
func (c *Config) EntityKinds() ([]string, error) {
	v := strings.TrimSpace(c.Entities)
	if v == "" {
		return nil, nil
	}
	if path, ok := strings.CutPrefix(v, "@"); ok {
		kinds, err := file.ReadList(path)
		if err != nil {
			return nil, fmt.Errorf("entities list: %w", err)
		}
		return kinds, nil
	}
	var out []string
	for _, k := range strings.Split(v, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out, nil
}

// Check reports every configuration problem at once.
func (c *Config) Check() error {
	var errs []error
	if c.BaseDir == "" {
		errs = append(errs, errors.New("-base_dir is required"))
	}
	if c.ArchiveDir != "" && filepath.Clean(c.ArchiveDir) == filepath.Clean(c.BaseDir) {
		errs = append(errs, errors.New("-archive_dir must differ from -base_dir"))
	}
	if !slices.Contains(Drivers, c.DBDriver) {
		errs = append(errs, fmt.Errorf("unsupported -db_driver=%q (want one of %s)", c.DBDriver, strings.Join(Drivers, ", ")))
	} else if c.DatabaseDSN() == "" {
		errs = append(errs, fmt.Errorf("-dsn is required for %s", c.DBDriver))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("-workers must be at least 1, got %d", c.Workers))
	}
	if c.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("-max_conns must not be negative, got %d", c.MaxConns))
	}
	switch c.MetricsBackend {
	case "", "none":
	case "pushgateway":
		if c.PushgatewayURL == "" {
			errs = append(errs, errors.New("-pushgateway_url is required for metrics_backend=pushgateway"))
		}
	case "datadog":
		if c.DogStatsdAddr == "" {
			errs = append(errs, errors.New("-dogstatsd_addr is required for metrics_backend=datadog"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported -metrics_backend=%q (want one of %s)", c.MetricsBackend, strings.Join(MetricsBackends, ", ")))
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("-schedule: %w", err))
		}
	}
	if _, err := c.EntityKinds(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
