package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// runCacheContract 所有后端共用的行为检查
func runCacheContract(t *testing.T, c Cache) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		var out payload
		assert.ErrorIs(t, c.Get(ctx, "missing", &out), ErrCacheMiss)
	})

	t.Run("set get delete", func(t *testing.T) {
		in := payload{Name: "transactionCount", Count: 7}
		require.NoError(t, c.Set(ctx, "k1", in, 0))

		var out payload
		require.NoError(t, c.Get(ctx, "k1", &out))
		assert.Equal(t, in, out)

		require.NoError(t, c.Delete(ctx, "k1"))
		assert.ErrorIs(t, c.Get(ctx, "k1", &out), ErrCacheMiss)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k2", "3", 0))
		require.NoError(t, c.Set(ctx, "k2", "4", 0))

		var out string
		require.NoError(t, c.Get(ctx, "k2", &out))
		assert.Equal(t, "4", out)
	})
}

func TestMemoryCache(t *testing.T) {
	runCacheContract(t, NewMemoryCache(5*time.Minute, 10*time.Minute))
}

func TestMemoryCacheCopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	in := &payload{Name: "a", Count: 1}
	require.NoError(t, c.Set(ctx, "k", in, 0))
	in.Count = 99

	var out payload
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, 1, out.Count)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)
	require.NoError(t, c.Set(ctx, "k", 1, 10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)
	var out int
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrCacheMiss)
}

func TestBadgerCache(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	c := NewBadgerCacheWithDB(db)
	defer c.Close()

	runCacheContract(t, c)
}

func TestBadgerCacheSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := NewBadgerCache(dir)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "transactionCount", "12", 0))
	require.NoError(t, c.Close())

	c, err = NewBadgerCache(dir)
	require.NoError(t, err)
	defer c.Close()

	var out string
	require.NoError(t, c.Get(ctx, "transactionCount", &out))
	assert.Equal(t, "12", out)
}

func TestSQLiteCache(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer c.Close()

	runCacheContract(t, c)

	t.Run("expired entry is a miss", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "short", 1, time.Millisecond))
		time.Sleep(5 * time.Millisecond)

		var out int
		assert.ErrorIs(t, c.Get(ctx, "short", &out), ErrCacheMiss)
	})
}

func TestSQLiteCacheRequiresPath(t *testing.T) {
	_, err := NewSQLiteCache("")
	assert.Error(t, err)
}

func TestMultiLevelCache(t *testing.T) {
	local := NewMemoryCache(time.Minute, time.Minute)
	remote := NewMemoryCache(time.Minute, time.Minute)
	runCacheContract(t, NewMultiLevelCache(local, remote))
}

func TestMultiLevelCacheFillsL1(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryCache(time.Minute, time.Minute)
	remote := NewMemoryCache(time.Minute, time.Minute)
	m := NewMultiLevelCache(local, remote)

	require.NoError(t, remote.Set(ctx, "k", "v", 0))

	var out string
	require.NoError(t, m.Get(ctx, "k", &out))
	assert.Equal(t, "v", out)

	// L2 删除后 L1 仍可命中
	require.NoError(t, remote.Delete(ctx, "k"))
	out = ""
	require.NoError(t, m.Get(ctx, "k", &out))
	assert.Equal(t, "v", out)
}

func TestRedisCacheIntegration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping redis integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	runCacheContract(t, NewRedisCache(client))
}

func TestPostgresCacheIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping postgres integration test")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	c, err := NewPostgresCache(db)
	require.NoError(t, err)
	defer c.Close()

	runCacheContract(t, c)
}
