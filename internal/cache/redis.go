package cache

import (
	"context"
	"time"
	"todo_tracker/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

func SetupRedis(redisCfg *config.RedisConfig) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr(),
		Password: redisCfg.RedisPassword,
		DB:       redisCfg.RedisDB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}

	logrus.WithField("addr", redisCfg.Addr()).Info("Redis connection established")
	return rdb
}
