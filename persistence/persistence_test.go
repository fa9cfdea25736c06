package persistence_test

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-credentials/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func memoryDSN(t *testing.T) string {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

func openMemory(t *testing.T) *bun.DB {
	t.Helper()
	db, err := persistence.Open(context.Background(), persistence.Options{
		Driver: persistence.DriverSQLite,
		DSN:    memoryDSN(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableCount(t *testing.T, db *bun.DB, names ...string) int {
	t.Helper()
	var count int
	err := db.NewRaw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN (?)", bun.In(names)).
		Scan(context.Background(), &count)
	require.NoError(t, err)
	return count
}

func TestOpen_SQLiteAndMigrate(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	applied, err := persistence.Migrate(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_create_credentials"}, applied)

	// applied migrations are recorded and skipped
	applied, err = persistence.Migrate(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, applied)

	assert.Equal(t, 2, tableCount(t, db, "users", "credentials"))
	assert.Equal(t, 1, tableCount(t, db, "bun_migrations"))
}

func TestMigrateFS_SkipsAppliedMigrations(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	embedded, err := persistence.DialectMigrations(db)
	require.NoError(t, err)
	initial, err := fs.ReadFile(embedded, "0001_create_credentials.up.sql")
	require.NoError(t, err)

	source := fstest.MapFS{
		"0001_create_credentials.up.sql": {Data: initial},
		"0002_add_last_login.up.sql": {
			Data: []byte("ALTER TABLE credentials ADD COLUMN last_login_at TIMESTAMP;\n"),
		},
	}

	applied, err := persistence.MigrateFS(ctx, db, source)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_create_credentials", "0002_add_last_login"}, applied)

	// a non idempotent statement must not run again on restart
	applied, err = persistence.MigrateFS(ctx, db, source)
	require.NoError(t, err)
	assert.Empty(t, applied)

	var columns int
	err = db.NewRaw("SELECT count(*) FROM pragma_table_info('credentials') WHERE name = 'last_login_at'").
		Scan(ctx, &columns)
	require.NoError(t, err)
	assert.Equal(t, 1, columns)
}

func TestMigrateFS_FailedMigrationIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	source := fstest.MapFS{
		"0001_broken.up.sql": {Data: []byte("CREATE TABLE;\n")},
	}

	_, err := persistence.MigrateFS(ctx, db, source)
	require.Error(t, err)

	var recorded int
	err = db.NewRaw("SELECT count(*) FROM bun_migrations").Scan(ctx, &recorded)
	require.NoError(t, err)
	assert.Zero(t, recorded)
}

func TestRollback(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	_, err := persistence.Migrate(ctx, db)
	require.NoError(t, err)

	reverted, err := persistence.Rollback(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_create_credentials"}, reverted)
	assert.Zero(t, tableCount(t, db, "users", "credentials"))

	applied, err := persistence.Migrate(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_create_credentials"}, applied)
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		opts persistence.Options
	}{
		{name: "missing dsn", opts: persistence.Options{Driver: persistence.DriverSQLite}},
		{name: "unknown driver", opts: persistence.Options{Driver: "oracle", DSN: "whatever"}},
		{name: "bad postgres dsn", opts: persistence.Options{Driver: persistence.DriverPostgres, DSN: "postgres://%zz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := persistence.Open(ctx, tt.opts)
			assert.Error(t, err)
			assert.Nil(t, db)
		})
	}
}
