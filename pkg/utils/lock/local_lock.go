package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLock 进程内实现，单实例部署时替代 RedisLock
type LocalLock struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewLocalLock() *LocalLock {
	return &LocalLock{expires: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, held := l.expires[key]; held && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	l.expires[key] = exp
	return true, nil
}

func (l *LocalLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	delete(l.expires, key)
	l.mu.Unlock()
	return nil
}
