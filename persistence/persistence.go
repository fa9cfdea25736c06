// Package persistence opens the bun database used by the credential store
// and applies the embedded schema migrations.
package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options configure Open
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the configured database and verifies the connection.
// SQLite in-memory databases are pinned to a single connection so every
// query sees the same schema.
func Open(ctx context.Context, opts Options) (*bun.DB, error) {
	if opts.DSN == "" {
		return nil, errors.New("database dsn is required", errors.CategoryBadInput)
	}

	var db *bun.DB

	switch strings.ToLower(opts.Driver) {
	case DriverSQLite, "sqlite3", "":
		sqldb, err := sql.Open(sqliteshim.ShimName, opts.DSN)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryExternal, "failed to open sqlite database")
		}
		if isMemoryDSN(opts.DSN) {
			opts.MaxOpenConns = 1
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres, "postgresql", "pgx":
		cfg, err := pgx.ParseConfig(opts.DSN)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to parse postgres dsn")
		}
		db = bun.NewDB(stdlib.OpenDB(*cfg), pgdialect.New())
	default:
		return nil, errors.New("unsupported database driver", errors.CategoryBadInput).
			WithMetadata(map[string]any{"driver": opts.Driver})
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CategoryExternal, "failed to reach database").
			WithMetadata(map[string]any{"driver": opts.Driver})
	}

	return db, nil
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
