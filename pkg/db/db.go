package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"pmgmt/pkg/db/migrations"
)

const (
	// DefaultTimeout is used when executing queries to avoid leaking resources on hung calls.
	DefaultTimeout = 5 * time.Second

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and locates the backing database.
type Options struct {
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the Postgres connection string.
	DSN string
	// LogLevel controls gorm's own logger. Defaults to warn.
	LogLevel logger.LogLevel
}

// DB is the process-wide storage handle. It is opened once at startup and
// passed explicitly to everything that needs storage.
type DB struct {
	ORM    *gorm.DB
	SQL    *sql.DB
	Driver string

	pool *pgxpool.Pool
}

// Open connects to the configured database and verifies it is reachable.
func Open(ctx context.Context, opts Options) (*DB, error) {
	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}

	switch opts.Driver {
	case DriverSQLite:
		return openSQLite(ctx, opts.Path, gormCfg)
	case DriverPostgres:
		return openPostgres(ctx, opts.DSN, gormCfg)
	default:
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}
}

// SQLiteDSN builds a go-sqlite3 DSN with foreign keys enforced and writers
// queued behind a busy timeout instead of failing with SQLITE_BUSY.
func SQLiteDSN(path string) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", "5000")
	params.Set("_journal_mode", "WAL")
	params.Set("_txlock", "immediate")
	return "file:" + path + "?" + params.Encode()
}

func openSQLite(ctx context.Context, path string, gormCfg *gorm.Config) (*DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	orm, err := gorm.Open(sqlite.Open(SQLiteDSN(path)), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := orm.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetMaxOpenConns(8)

	d := &DB{ORM: orm, SQL: sqlDB, Driver: DriverSQLite}
	if err := d.Ping(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func openPostgres(ctx context.Context, dsn string, gormCfg *gorm.Config) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	// Prefer simple protocol for compatibility with tools like goose.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	orm, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), gormCfg)
	if err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	return &DB{ORM: orm, SQL: sqlDB, Driver: DriverPostgres, pool: pool}, nil
}

// Migrate runs all schema migrations against the database.
func (d *DB) Migrate(ctx context.Context) error {
	if d == nil || d.SQL == nil {
		return errors.New("nil database provided")
	}

	dialect := goose.DialectSQLite3
	if d.Driver == DriverPostgres {
		dialect = goose.DialectPostgres
	}

	provider, err := goose.NewProvider(dialect, d.SQL, nil,
		goose.WithDisableGlobalRegistry(true),
		goose.WithGoMigrations(migrations.All(d.Driver)...),
	)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Ping ensures the database is reachable with the default timeout.
func (d *DB) Ping(ctx context.Context) error {
	if d == nil || d.SQL == nil {
		return errors.New("nil database")
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	return d.SQL.PingContext(ctx)
}

// Close releases the connection pool.
func (d *DB) Close() error {
	if d == nil {
		return nil
	}
	var err error
	if d.SQL != nil {
		err = d.SQL.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}

// WithTimeout applies a custom timeout when executing operations using the provided function.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
