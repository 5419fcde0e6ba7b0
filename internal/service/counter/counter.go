package counter

import (
	"context"
	"errors"
	"strconv"

	"transfer-core/pkg/cache"
	"transfer-core/pkg/errno"
)

// Key 持久化计数使用的唯一 key
const Key = "transactionCount"

// Store 上一次已知的链上交易数
// 只是缓存，正确性相关的逻辑总是回源到合约
type Store struct {
	backend cache.Cache
}

func NewStore(backend cache.Cache) *Store {
	return &Store{backend: backend}
}

// Load 读取缓存值，不存在时 found=false
func (s *Store) Load(ctx context.Context) (uint64, bool, error) {
	var raw string
	if err := s.backend.Get(ctx, Key, &raw); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return 0, false, nil
		}
		return 0, false, errno.Wrap("loadCount", errno.ErrPersistenceUnavailable, err)
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		// 损坏的值当作不存在，下一次确认后会被覆盖
		return 0, false, nil
	}
	return n, true, nil
}

// Save 以十进制字符串写入，永不过期
func (s *Store) Save(ctx context.Context, count uint64) error {
	if err := s.backend.Set(ctx, Key, strconv.FormatUint(count, 10), 0); err != nil {
		return errno.Wrap("saveCount", errno.ErrPersistenceUnavailable, err)
	}
	return nil
}
