package migrate

import (
	"context"
	"os"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover_OrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0010_index_up.sql":   {Data: []byte("SELECT 1")},
		"sql/0002_table_up.sql":   {Data: []byte("SELECT 1")},
		"sql/0002_table_down.sql": {Data: []byte("SELECT 1")},
		"sql/readme.md":           {Data: []byte("x")},
		"sql/notes_up.sql":        {Data: []byte("SELECT 1")},
	}
	got, err := Runner{FS: fsys, Dir: "sql"}.Discover()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Version)
	assert.Equal(t, "sql/0002_table_up.sql", got[0].Path)
	assert.Equal(t, int64(10), got[1].Version)
}

func TestDiscover_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a_up.sql": {Data: []byte("SELECT 1")},
		"1_b_up.sql":    {Data: []byte("SELECT 1")},
	}
	_, err := Runner{FS: fsys}.Discover()
	assert.Error(t, err)
}

func TestDiscover_NoFS(t *testing.T) {
	_, err := Runner{}.Discover()
	assert.Error(t, err)
}

// 需要 TEST_DATABASE_URL，否则跳过
func TestUp_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL 未设置，跳过")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		t.Skipf("数据库不可用: %v", err)
	}

	fsys := fstest.MapFS{
		"900001_migrate_probe_up.sql": {Data: []byte("CREATE TABLE IF NOT EXISTS migrate_probe (id INT)")},
	}
	r := Runner{FS: fsys}
	_, err = r.Up(ctx, pool)
	require.NoError(t, err)

	// 第二次不再重复执行
	again, err := r.Up(ctx, pool)
	require.NoError(t, err)
	assert.Empty(t, again)

	_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS migrate_probe")
	_, _ = pool.Exec(ctx, "DELETE FROM schema_migrations WHERE version = 900001")
}
