package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"BetSync/internal/config"
)

// 只删除自己持有的锁，避免过期后误删别人的
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker 多实例部署时的分布式锁，TTL 兜底进程崩溃
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *logrus.Logger
}

func NewRedisLocker(client redis.UniversalClient, cfg *config.RedisConfig, logger *logrus.Logger) *RedisLocker {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLocker{client: client, prefix: cfg.KeyPrefix, ttl: ttl, logger: logger}
}

func (l *RedisLocker) key(userID string) string {
	return fmt.Sprintf("%s:%s", l.prefix, userID)
}

func (l *RedisLocker) TryLock(ctx context.Context, userID string) (func(), error) {
	key := l.key(userID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("获取同步锁失败: %w", err)
	}
	if !ok {
		return nil, ErrSyncInProgress
	}

	return func() {
		// 请求 ctx 可能已取消，释放锁用独立的超时
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.WithError(err).WithField("user_id", userID).Warn("释放同步锁失败，等待过期")
		}
	}, nil
}

// NewUserLocker 配置了 redis 地址时用分布式锁，否则退回进程内锁
func NewUserLocker(cfg *config.RedisConfig, logger *logrus.Logger) (UserLocker, *redis.Client) {
	if cfg.Addr == "" {
		logger.Info("未配置 redis，同步锁使用进程内实现")
		return NewLocalLocker(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	logger.WithField("addr", cfg.Addr).Info("同步锁使用 redis")
	return NewRedisLocker(client, cfg, logger), client
}
