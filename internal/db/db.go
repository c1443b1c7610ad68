// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var (
	//go:embed migrations
	embeddedMigrations embed.FS
	// sqlOpenFunc allows tests to override database opening behavior.
	sqlOpenFunc = sql.Open
)

// DB is an open database with its dialect.
type DB struct {
	SQL     *sql.DB
	Bun     *bun.DB
	Dialect string
}

// Open connects to url, which must be a Postgres URL or a SQLite path
// ("sqlite:", "file:" or ":memory:"), and verifies the connection.
// Migrations are not applied; call RunMigrations.
func Open(ctx context.Context, url string) (*DB, error) {
	dialect, dsn, err := dialectFor(url)
	if err != nil {
		return nil, err
	}
	driverName := dialect
	// The pgx stdlib registers driver name "pgx".
	if dialect == dialectPostgres {
		driverName = "pgx"
	}

	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	configurePool(sqlDB, dialect, dsn)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", redactURL(url), err)
	}
	dbLogf("opened %s driver in %s", driverName, time.Since(start))

	return &DB{SQL: sqlDB, Bun: createBunDB(sqlDB, dialect), Dialect: dialect}, nil
}

// Close releases the connection pool.
func (d *DB) Close() error {
	if d == nil || d.Bun == nil {
		return nil
	}
	return d.Bun.Close()
}

// configurePool applies pool limits. Values can be overridden through
// GSHEETS_DB_* environment variables.
func configurePool(sqlDB *sql.DB, dialect, dsn string) {
	const (
		defaultMaxOpenConns    = 10
		defaultMaxIdleConns    = 10
		defaultConnMaxLifetime = 5 * time.Minute
		defaultConnMaxIdle     = 60 * time.Second
	)

	maxOpen := envInt("GSHEETS_DB_MAX_OPEN_CONNS", defaultMaxOpenConns)
	maxIdle := envInt("GSHEETS_DB_MAX_IDLE_CONNS", defaultMaxIdleConns)
	connMax := time.Duration(envInt("GSHEETS_DB_CONN_MAX_LIFETIME_SECONDS", int(defaultConnMaxLifetime/time.Second))) * time.Second
	connIdle := time.Duration(envInt("GSHEETS_DB_CONN_MAX_IDLE_SECONDS", int(defaultConnMaxIdle/time.Second))) * time.Second

	// Each connection to an in-memory SQLite database sees its own empty
	// database, so keep a single connection.
	if dialect == dialectSQLite && (dsn == ":memory:" || strings.Contains(dsn, "mode=memory")) {
		maxOpen, maxIdle = 1, 1
		connMax, connIdle = 0, 0
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(connMax)
	sqlDB.SetConnMaxIdleTime(connIdle)
	dbLogf("pool max open=%d idle=%d lifetime=%s idle time=%s", maxOpen, maxIdle, connMax, connIdle)
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// createBunDB constructs a *bun.DB for the provided *sql.DB and dialect.
func createBunDB(sqlDB *sql.DB, dialect string) *bun.DB {
	switch dialect {
	case dialectPostgres:
		return bun.NewDB(sqlDB, pgdialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

// RunMigrations applies the embedded migrations that are not yet recorded
// in schema_migrations. Each file runs in its own transaction.
func (d *DB) RunMigrations(ctx context.Context) ([]string, error) {
	return runMigrations(ctx, d.SQL, d.Dialect)
}

func runMigrations(ctx context.Context, db *sql.DB, dialect string) ([]string, error) {
	start := time.Now()
	migrationsPath := "migrations/" + dialect

	entries, err := fs.ReadDir(embeddedMigrations, migrationsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read embedded migrations (%s): %w", migrationsPath, err)
	}

	var ups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMP)`); err != nil {
		return nil, fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	selectQuery := "SELECT 1 FROM schema_migrations WHERE version = ?"
	insertQuery := "INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)"
	if dialect == dialectPostgres {
		selectQuery = "SELECT 1 FROM schema_migrations WHERE version = $1"
		insertQuery = "INSERT INTO schema_migrations(version, applied_at) VALUES($1, $2)"
	}

	var applied []string
	for _, fname := range ups {
		version := strings.TrimSuffix(fname, ".up.sql")

		var exists int
		err := db.QueryRowContext(ctx, selectQuery, version).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return applied, fmt.Errorf("failed to check migration version %s: %w", version, err)
		}

		p := path.Join(migrationsPath, fname)
		data, err := embeddedMigrations.ReadFile(p)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %s: %w", p, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("failed to begin transaction for migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("failed to execute migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, insertQuery, version, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("failed to record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("failed to commit migration %s: %w", version, err)
		}
		applied = append(applied, version)
	}

	dbLogf("applied %d migrations for %s in %s", len(applied), dialect, time.Since(start))
	return applied, nil
}

// Maintain runs engine-specific housekeeping: VACUUM ANALYZE on Postgres,
// optimize, vacuum and an integrity check on SQLite.
func (d *DB) Maintain(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	switch d.Dialect {
	case dialectSQLite:
		// optimize is not useful everywhere (in-memory databases); ignore failures.
		if _, err := d.SQL.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
			dbLogf("sqlite optimize failed (ignored): %v", err)
		}
		if _, err := d.SQL.ExecContext(ctx, "VACUUM;"); err != nil {
			return fmt.Errorf("sqlite vacuum failed: %w", err)
		}
		var res string
		if err := d.SQL.QueryRowContext(ctx, "PRAGMA integrity_check;").Scan(&res); err != nil {
			return fmt.Errorf("sqlite integrity_check failed: %w", err)
		}
		if res != "ok" {
			return fmt.Errorf("sqlite integrity_check failed: %s", res)
		}
	case dialectPostgres:
		if _, err := d.SQL.ExecContext(ctx, "VACUUM ANALYZE;"); err != nil {
			return fmt.Errorf("postgres vacuum failed: %w", err)
		}
	default:
		return fmt.Errorf("unsupported db type for maintenance: %s", d.Dialect)
	}
	return nil
}
