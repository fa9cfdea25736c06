package persistence

import (
	"context"
	"io/fs"
	"path"

	auth "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"
)

const migrationsRoot = "data/sql/migrations"

// Migrate applies the embedded migrations for the database dialect that are
// not yet recorded in the bun_migrations table. It returns the names of the
// migrations applied by this call.
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	source, err := DialectMigrations(db)
	if err != nil {
		return nil, err
	}
	return MigrateFS(ctx, db, source)
}

// Rollback reverts the last applied migration group
func Rollback(ctx context.Context, db *bun.DB) ([]string, error) {
	source, err := DialectMigrations(db)
	if err != nil {
		return nil, err
	}

	migrator, err := newMigrator(ctx, db, source)
	if err != nil {
		return nil, err
	}

	group, err := migrator.Rollback(ctx)
	if err != nil {
		return names(group), errors.Wrap(err, errors.CategoryExternal, "rollback failed").
			WithMetadata(map[string]any{"reverted": names(group)})
	}
	return names(group), nil
}

// DialectMigrations returns the embedded migration files for the dialect of db
func DialectMigrations(db *bun.DB) (fs.FS, error) {
	dir, err := dialectDir(db.Dialect().Name())
	if err != nil {
		return nil, err
	}

	source, err := fs.Sub(auth.GetMigrationsFS(), path.Join(migrationsRoot, dir))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open migrations").
			WithMetadata(map[string]any{"dir": dir})
	}
	return source, nil
}

// MigrateFS applies the pending <version>_<name>.up.sql files found in source
func MigrateFS(ctx context.Context, db *bun.DB, source fs.FS) ([]string, error) {
	migrator, err := newMigrator(ctx, db, source)
	if err != nil {
		return nil, err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return names(group), errors.Wrap(err, errors.CategoryExternal, "migration failed").
			WithMetadata(map[string]any{"applied": names(group)})
	}
	return names(group), nil
}

func newMigrator(ctx context.Context, db *bun.DB, source fs.FS) (*migrate.Migrator, error) {
	migrations := migrate.NewMigrations()
	if err := migrations.Discover(source); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read migrations")
	}

	migrator := migrate.NewMigrator(db, migrations, migrate.WithMarkAppliedOnSuccess(true))
	if err := migrator.Init(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "failed to create migrations table")
	}
	return migrator, nil
}

func names(group *migrate.MigrationGroup) []string {
	if group == nil {
		return nil
	}
	out := make([]string, 0, len(group.Migrations))
	for _, m := range group.Migrations {
		out = append(out, m.String())
	}
	return out
}

func dialectDir(name dialect.Name) (string, error) {
	switch name {
	case dialect.SQLite:
		return "sqlite", nil
	case dialect.PG:
		return "postgres", nil
	default:
		return "", errors.New("no migrations for dialect", errors.CategoryBadInput).
			WithMetadata(map[string]any{"dialect": name.String()})
	}
}
