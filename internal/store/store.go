// Package store persists visitor metrics and the contact dispatch log.
package store

import (
	"context"
	"database/sql"
	"embed"
	"net/http"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	_ "modernc.org/sqlite"
)

// MigrationAction is the type of migration to perform.
type MigrationAction int

const (
	// MigrateUp fully upgrades the schema.
	MigrateUp MigrationAction = iota
	// MigrateDown fully downgrades the schema.
	MigrateDown
)

var (
	//go:embed migrations
	migrations embed.FS

	ErrDBConnect = errors.New("db connect error")
	ErrMigrate   = errors.New("failed to migrate db schema")
	ErrNotFound  = errors.New("not found")
)

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

func configureConnection(ctx context.Context, conn *sql.DB, memory bool) error {
	parallelism := min(8, max(2, runtime.GOMAXPROCS(0)))
	if memory {
		// every connection to :memory: is a separate database
		parallelism = 1
	}
	conn.SetMaxOpenConns(parallelism)
	conn.SetMaxIdleConns(parallelism)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA main.synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			return errors.Mark(errors.Wrap(err, pragma), ErrDBConnect)
		}
	}
	return nil
}

// Open opens the database at path, or an in-memory database when path is
// empty, and optionally migrates it to the latest schema.
func Open(ctx context.Context, path string, autoMigrate bool) (*Store, error) {
	memory := path == "" || path == ":memory:"
	if memory {
		path = ":memory:"
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "open sqlite"), ErrDBConnect)
	}

	if err := configureConnection(ctx, conn, memory); err != nil {
		conn.Close()
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, errors.Mark(errors.Wrap(err, "ping sqlite"), ErrDBConnect)
	}

	if autoMigrate {
		if err := Migrate(conn, MigrateUp); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return &Store{db: conn}, nil
}

// Migrate applies the embedded migrations.
func Migrate(conn *sql.DB, action MigrationAction) error {
	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "migration driver"), ErrMigrate)
	}

	source, err := httpfs.New(http.FS(migrations), "migrations")
	if err != nil {
		return errors.Mark(errors.Wrap(err, "migration source"), ErrMigrate)
	}

	migrator, err := migrate.NewWithInstance("httpfs", source, "sqlite", driver)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "migrator"), ErrMigrate)
	}

	switch action {
	case MigrateDown:
		err = migrator.Down()
	default:
		err = migrator.Up()
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Mark(errors.Wrap(err, "apply migrations"), ErrMigrate)
	}
	return nil
}

// DB exposes the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
