package redis

import (
	"PetCare/internal/api/config"
	"PetCare/internal/pkg/logger"
	"context"

	"github.com/redis/go-redis/v9"
)

var Rdb *redis.Client

// InitRedis 初始化 Redis 客户端连接
func InitRedis(cfg config.RedisConfig) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	rdb.AddHook(logger.NewRedisLogger())

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return err
	}

	Rdb = rdb
	return nil
}

// GetRdbClient 获取 redis 客户端
func GetRdbClient() *redis.Client {
	return Rdb
}
