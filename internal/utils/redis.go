package utils

import (
	"github.com/redis/go-redis/v9"

	"regiokaart/internal/config"
	"regiokaart/internal/logger"
)

// OpenRedis：按显式参数创建客户端；addr 为空时返回 nil
func OpenRedis(addr, pass string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

// OpenRedisFromConfig：REDIS_ENABLE 未开启时返回 nil，边界缓存只用进程内一层
func OpenRedisFromConfig(c config.RedisConfig) *redis.Client {
	if !c.Enable {
		return nil
	}
	db := c.DB
	if db < 0 {
		db = 0
	}
	logger.L().Debug("redis_open", "addr", c.Addr(), "db", db)
	return OpenRedis(c.Addr(), c.Password, db)
}
