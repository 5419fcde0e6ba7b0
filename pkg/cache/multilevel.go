package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"transfer-core/pkg/logger"
)

// l1FillTTL 回源后写回 L1 的存活时间，防止 L1 脏数据太久
const l1FillTTL = time.Minute

// MultiLevelCache 实现多级缓存 (L1: Memory, L2: Redis/Badger/...)
type MultiLevelCache struct {
	local  Cache
	remote Cache
}

func NewMultiLevelCache(local, remote Cache) *MultiLevelCache {
	return &MultiLevelCache{
		local:  local,
		remote: remote,
	}
}

func (m *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	// 先写 L2，L2 失败时 L1 不能领先
	if err := m.remote.Set(ctx, key, value, ttl); err != nil {
		_ = m.local.Delete(ctx, key)
		return err
	}

	// L1 的 TTL 为 L2 的一半；永不过期的 key 在 L1 只保留 l1FillTTL
	localTTL := ttl / 2
	if ttl <= 0 {
		localTTL = l1FillTTL
	}
	if err := m.local.Set(ctx, key, value, localTTL); err != nil {
		logger.Warn("L1 cache set failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (m *MultiLevelCache) Get(ctx context.Context, key string, target interface{}) error {
	// 1. 查 L1
	if err := m.local.Get(ctx, key, target); err == nil {
		return nil
	}

	// 2. 查 L2
	err := m.remote.Get(ctx, key, target)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return ErrCacheMiss
		}
		return err
	}

	// L2 Hit -> 回写 L1
	_ = m.local.Set(ctx, key, target, l1FillTTL)
	return nil
}

func (m *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = m.local.Delete(ctx, key)
	return m.remote.Delete(ctx, key)
}

func (m *MultiLevelCache) Close() error {
	if c, ok := m.remote.(Closer); ok {
		return c.Close()
	}
	return nil
}
