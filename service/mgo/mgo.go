package mgo

import (
	"context"
	"sync"
	"time"

	"Chatty/config"
	"Chatty/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ===== Mongo 单例管理器 =====

type MongoManager struct {
	mu sync.RWMutex
	db *mongo.Database
}

var globalMgr MongoManager

const maxRetry = 5

// Init 建立连接（带重试），进程启动时调用一次。
func Init(ctx context.Context, cfg config.MongoConfig) error {
	if cfg.URI == "" {
		return errs.New("mongo uri is required")
	}
	opts := options.Client().ApplyURI(cfg.URI)

	var (
		cli *mongo.Client
		err error
	)
	for i := 0; i < maxRetry; i++ {
		cli, err = connect(ctx, opts)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second / 2):
		}
	}
	if err != nil {
		return errs.WrapMsg(err, "failed to connect to MongoDB", "uri", cfg.URI)
	}

	globalMgr.mu.Lock()
	globalMgr.db = cli.Database(cfg.Database)
	globalMgr.mu.Unlock()
	return nil
}

func connect(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return cli, nil
}

// GetDB 未初始化时 panic，启动顺序错误应尽早暴露。
func GetDB() *mongo.Database {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.db == nil {
		panic("Mongo not initialized, call mgo.Init first")
	}
	return globalMgr.db
}

func TryGetDB() (*mongo.Database, bool) {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.db == nil {
		return nil, false
	}
	return globalMgr.db, true
}

// Close 断开连接，进程退出前调用。
func Close(ctx context.Context) error {
	globalMgr.mu.Lock()
	defer globalMgr.mu.Unlock()
	if globalMgr.db == nil {
		return nil
	}
	err := globalMgr.db.Client().Disconnect(ctx)
	globalMgr.db = nil
	return err
}
