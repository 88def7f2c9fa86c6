package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrSyncInProgress 同一用户已有同步在执行
var ErrSyncInProgress = errors.New("该用户的同步正在进行中")

// UserLocker 按用户互斥；拿不到锁立即返回 ErrSyncInProgress，不排队等待
type UserLocker interface {
	TryLock(ctx context.Context, userID string) (release func(), err error)
}

// LocalLocker 进程内锁，未配置 redis 时使用
type LocalLocker struct {
	mu     sync.Mutex
	locked map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locked: make(map[string]struct{})}
}

func (l *LocalLocker) TryLock(ctx context.Context, userID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.locked[userID]; held {
		return nil, ErrSyncInProgress
	}
	l.locked[userID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.locked, userID)
			l.mu.Unlock()
		})
	}, nil
}
