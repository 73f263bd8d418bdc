package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// SQLiteDSN builds a modernc DSN for a database file with the pragmas the store relies on.
func SQLiteDSN(path string) string {
	return "file:" + path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_time_format=sqlite"
}

// DialectOf picks the SQL dialect from the DSN scheme.
func DialectOf(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return dialect.Postgres
	case strings.HasPrefix(dsn, "sqlite://"):
		return dialect.SQLite
	case strings.HasPrefix(dsn, "file:"):
		return dialect.SQLite
	default:
		return dialect.Postgres
	}
}

// Open connects to Postgres through a pgx pool, or to SQLite for local runs, and wraps the
// connection as an ent SQL driver. The pool is nil for SQLite.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*entsql.Driver, *pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if DialectOf(cfg.DSN) == dialect.SQLite {
		return openSQLite(ctx, cfg, logger)
	}

	logger.Info("connecting to database", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "writing-eval"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, nil, err
	}

	// Wrap pool as *sql.DB for the ent driver
	db := stdlib.OpenDBFromPool(pool)
	drv := entsql.OpenDB(dialect.Postgres, db)

	logger.Info("successfully connected to database")
	return drv, pool, nil
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*entsql.Driver, *pgxpool.Pool, error) {
	dsn := cfg.DSN
	if path, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		dsn = SQLiteDSN(path)
	}
	logger.Info("connecting to database", "dialect", dialect.SQLite)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to open sqlite database", "error", err)
		return nil, nil, err
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConns))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, nil, err
	}

	logger.Info("successfully connected to database")
	return entsql.OpenDB(dialect.SQLite, db), nil, nil
}

// Close closes the database connections gracefully
func Close(drv *entsql.Driver, pool *pgxpool.Pool, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if drv != nil {
		if err := drv.Close(); err != nil {
			logger.Error("failed to close sql driver", "error", err)
		}
	}
	if pool != nil {
		pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings through database/sql to catch DSN issues early.
func HealthCheck(ctx context.Context, drv *entsql.Driver, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := drv.DB().PingContext(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// DBResult bundles an open store with its cleanup.
type DBResult struct {
	Driver  *entsql.Driver
	Pool    *pgxpool.Pool
	Cleanup func()
}

// InitDatabase opens the configured database, or a local SQLite file when local is set, and
// brings the schema up to date.
func InitDatabase(ctx context.Context, cfg Config, local bool, sqlitePath string, logger *slog.Logger) (*DBResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if local {
		if sqlitePath == "" {
			sqlitePath = "writing-eval.db"
		}
		cfg = Config{DSN: "sqlite://" + sqlitePath}
		logger.Info("using local sqlite database", "path", sqlitePath)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty; set DB_URL or use a local database")
	}

	drv, pool, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, drv, logger); err != nil {
		Close(drv, pool, logger)
		return nil, err
	}
	return &DBResult{
		Driver:  drv,
		Pool:    pool,
		Cleanup: func() { Close(drv, pool, logger) },
	}, nil
}
