// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store implements the catalog backend on top of database/sql.
// SQLite (modernc), PostgreSQL (pgx) and MySQL are supported.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// Driver names a supported database/sql driver.
type Driver string

// Supported drivers
const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "pgx"
	DriverMySQL    Driver = "mysql"
)

// ParseDriver validates a driver name.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case DriverSQLite, DriverPostgres, DriverMySQL:
		return d, nil
	case "postgres", "postgresql":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", s)
	}
}

// DBConfig holds database configuration options.
type DBConfig struct {
	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int
	// MaxIdleConns is the maximum number of connections in the idle connection pool.
	MaxIdleConns int
	// ConnMaxLifetime is the maximum amount of time a connection may be reused.
	ConnMaxLifetime time.Duration
	// ConnMaxIdleTime is the maximum amount of time a connection may be idle.
	ConnMaxIdleTime time.Duration
}

// DefaultDBConfig returns pool defaults for driver.
func DefaultDBConfig(driver Driver) DBConfig {
	if driver == DriverSQLite {
		// WAL mode allows many readers but one writer.
		return DBConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		}
	}
	return DBConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// DB is a database handle that remembers its driver so queries can be
// written once with '?' placeholders.
type DB struct {
	*sql.DB
	driver Driver
}

// Driver returns the driver the handle was opened with.
func (db *DB) Driver() Driver {
	return db.driver
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver Driver, dsn string) (*DB, error) {
	return OpenWithConfig(ctx, driver, dsn, DefaultDBConfig(driver))
}

// OpenWithConfig connects with a custom pool configuration.
func OpenWithConfig(ctx context.Context, driver Driver, dsn string, cfg DBConfig) (*DB, error) {
	if driver == DriverMySQL {
		var err error
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, err
		}
	}

	sqlDB, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if driver == DriverSQLite {
		pragmas := []string{
			"PRAGMA journal_mode=WAL",   // Write-Ahead Logging for better concurrency
			"PRAGMA busy_timeout=5000",  // Wait 5s when database is locked
			"PRAGMA synchronous=NORMAL", // Good balance of safety and speed
			"PRAGMA cache_size=-64000",  // 64MB cache
			"PRAGMA foreign_keys=ON",    // Enforce foreign key constraints
			"PRAGMA temp_store=MEMORY",  // Store temp tables in memory
		}
		for _, pragma := range pragmas {
			if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
				_ = sqlDB.Close()
				return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
			}
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, mapError("ping", err)
	}

	return &DB{DB: sqlDB, driver: driver}, nil
}

// NewDB opens a SQLite database at path.
func NewDB(path string) (*DB, error) {
	return Open(context.Background(), DriverSQLite, path)
}

// mysqlDSN forces the options the store relies on: DATETIME columns
// scanned as time.Time, in UTC.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parsing mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Migrate runs all pending database migrations.
func Migrate(db *DB) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	dialect, dir := db.driver.goose()
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.Up(db.DB, dir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// MigrationStatus reports the current schema version.
func MigrationStatus(db *DB) (int64, error) {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	dialect, _ := db.driver.goose()
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("setting dialect: %w", err)
	}
	v, err := goose.GetDBVersion(db.DB)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

func (d Driver) goose() (dialect, dir string) {
	switch d {
	case DriverPostgres:
		return "postgres", "migrations/postgres"
	case DriverMySQL:
		return "mysql", "migrations/mysql"
	default:
		return "sqlite3", "migrations/sqlite"
	}
}

// rebind rewrites '?' placeholders for drivers that number them.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}
