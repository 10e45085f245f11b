package redis

import (
	"context"
	"sync"
	"time"

	"Chatty/config"

	"github.com/redis/go-redis/v9"
)

var (
	redisOnce sync.Once
	redisMgr  *Manager
)

type Manager struct {
	client *redis.Client
}

// Init 初始化 Redis 管理器（单例）
func Init(cfg config.RedisConfig) error {
	var initErr error
	redisOnce.Do(func() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			initErr = err
			return
		}
		redisMgr = &Manager{client: rdb}
	})
	return initErr
}

// Get 获取 Redis Client
func Get() *redis.Client {
	if redisMgr == nil {
		panic("Redis not initialized, call redis.Init first")
	}
	return redisMgr.client
}

// Ready 是否已初始化（Redis 可选部署）
func Ready() bool { return redisMgr != nil }

// Close 关闭连接
func Close() error {
	if redisMgr != nil && redisMgr.client != nil {
		return redisMgr.client.Close()
	}
	return nil
}
