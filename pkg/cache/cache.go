package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss key 不存在或已过期
var ErrCacheMiss = errors.New("cache miss")

// Cache 定义通用缓存接口
// ttl 为 0 表示永不过期
type Cache interface {
	// Set 设置缓存
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Get 获取缓存，并将结果 Unmarshal 到 target 中
	Get(ctx context.Context, key string, target interface{}) error
	// Delete 删除缓存
	Delete(ctx context.Context, key string) error
}

// Closer 由持有文件句柄或连接的后端实现
type Closer interface {
	Close() error
}
