package counter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-core/pkg/cache"
	"transfer-core/pkg/errno"
)

type brokenCache struct{ err error }

func (b brokenCache) Set(context.Context, string, interface{}, time.Duration) error { return b.err }
func (b brokenCache) Get(context.Context, string, interface{}) error                { return b.err }
func (b brokenCache) Delete(context.Context, string) error                          { return b.err }

func TestLoadSave(t *testing.T) {
	ctx := context.Background()
	backend := cache.NewMemoryCache(time.Minute, time.Minute)
	s := NewStore(backend)

	_, found, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, 17))
	n, found, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(17), n)

	// 存储格式是十进制字符串
	var raw string
	require.NoError(t, backend.Get(ctx, Key, &raw))
	assert.Equal(t, "17", raw)
}

func TestLoadCorruptValue(t *testing.T) {
	ctx := context.Background()
	backend := cache.NewMemoryCache(time.Minute, time.Minute)
	require.NoError(t, backend.Set(ctx, Key, "not-a-number", 0))

	_, found, err := NewStore(backend).Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBackendFailure(t *testing.T) {
	ctx := context.Background()
	s := NewStore(brokenCache{err: errors.New("disk full")})

	_, _, err := s.Load(ctx)
	assert.ErrorIs(t, err, errno.ErrPersistenceUnavailable)
	assert.ErrorIs(t, s.Save(ctx, 1), errno.ErrPersistenceUnavailable)
}
