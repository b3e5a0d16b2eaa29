package migrations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/escrow-bridge/pkg/pgutil"
)

type testDao struct {
	bun.BaseModel `bun:"table:test_table"`
	ID            int64  `bun:",pk,autoincrement"`
	Name          string `bun:",notnull,type:varchar(100)"`
}

func setupDB(t *testing.T) *bun.DB {
	t.Helper()
	pgutil.RequireDockerAccess(t)
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)
	return db
}

func TestCreateAndDropSchema(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	require.NoError(t, CreateSchema(ctx, db, &testDao{}))
	pgutil.AssertTableExists(t, db, "test_table")
	require.NoError(t, CreateSchema(ctx, db, &testDao{}), "second call must be a no-op")

	require.NoError(t, DropTables(ctx, db, &testDao{}))
	pgutil.AssertTableNotExists(t, db, "test_table")
	require.NoError(t, DropTables(ctx, db, &testDao{}), "second call must be a no-op")
}

func TestTruncateTables(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	require.NoError(t, CreateSchema(ctx, db, &testDao{}))
	_, err := db.NewInsert().Model(&testDao{Name: "a"}).Exec(ctx)
	require.NoError(t, err)
	pgutil.AssertRowCount(t, db, "test_table", 1)

	require.NoError(t, TruncateTables(ctx, db, &testDao{}))
	pgutil.AssertRowCount(t, db, "test_table", 0)
	pgutil.AssertTableExists(t, db, "test_table")
}

func TestCreateModelIndexes(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	require.NoError(t, CreateSchema(ctx, db, &testDao{}))
	require.NoError(t, CreateModelIndexes(ctx, db, &testDao{}, "name"))
	pgutil.AssertIndexExists(t, db, "idx_test_table_name")
}

func TestModelIndexName_NilModel(t *testing.T) {
	_, err := modelIndexName(nil, nil, "name")
	assert.Error(t, err)
}

func TestRunMigrations_Commands(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	ms := migrate.NewMigrations()
	ms.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return CreateSchema(ctx, db, &testDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		return DropTables(ctx, db, &testDao{})
	})
	migrator := migrate.NewMigrator(db, ms)

	require.NoError(t, RunMigrations(ctx, migrator, "init"))
	require.NoError(t, RunMigrations(ctx, migrator, "up"))
	pgutil.AssertTableExists(t, db, "test_table")
	require.NoError(t, RunMigrations(ctx, migrator, "status"))
	require.NoError(t, RunMigrations(ctx, migrator, "down"))
	pgutil.AssertTableNotExists(t, db, "test_table")

	assert.Error(t, RunMigrations(ctx, migrator))
	assert.Error(t, RunMigrations(ctx, migrator, "sideways"))
}
