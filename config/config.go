package config

import (
	"os"
	"strconv"
	"time"

	"Chatty/logger"

	"github.com/joho/godotenv"
)

// ===== 配置 =====
//
// 全部来自环境变量，支持 .env（开发环境）。
// 生产环境直接注入 ENV，不读文件。

type ServerConfig struct {
	Addr      string // HTTP/WS 监听地址
	GatewayID string // 节点ID，参与 presence 镜像 key；空则自动生成
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enable   bool // false 时未读计数退化为进程内存储
}

type NatsConfig struct {
	URL    string
	Enable bool // 单节点部署可关
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type AppConfig struct {
	Server ServerConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	Nats   NatsConfig
	JWT    JWTConfig
}

// Load 读取 .env（若存在）再取环境变量。
func Load() *AppConfig {
	if err := godotenv.Load(); err != nil {
		logger.Infof("[config] no .env file, using process env only")
	}

	cfg := &AppConfig{
		Server: ServerConfig{
			Addr:      getEnv("CHATTY_ADDR", ":8080"),
			GatewayID: getEnv("CHATTY_GATEWAY_ID", ""),
		},
		Mongo: MongoConfig{
			URI:      getEnv("CHATTY_MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("CHATTY_MONGO_DB", "chatty"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("CHATTY_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("CHATTY_REDIS_PASSWORD", ""),
			DB:       getEnvInt("CHATTY_REDIS_DB", 0),
			Enable:   getEnvBool("CHATTY_REDIS_ENABLE", true),
		},
		Nats: NatsConfig{
			URL:    getEnv("CHATTY_NATS_URL", "nats://localhost:4222"),
			Enable: getEnvBool("CHATTY_NATS_ENABLE", false),
		},
		JWT: JWTConfig{
			Secret: getEnv("CHATTY_JWT_SECRET", "dev-secret-change-me"),
			TTL:    getEnvDuration("CHATTY_JWT_TTL", 7*24*time.Hour),
		},
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		logger.Warnf("[config] bad int for %s=%q, using %d", key, v, def)
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		logger.Warnf("[config] bad bool for %s=%q, using %v", key, v, def)
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		logger.Warnf("[config] bad duration for %s=%q, using %s", key, v, def)
	}
	return def
}
