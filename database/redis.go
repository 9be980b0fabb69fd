package database

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"insightflow/api/config"
	"insightflow/api/logger"
)

func NewRedisClient(cfg *config.Config, log *logger.Logger) (*goredis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("Connected to Redis metrics cache", "addr", cfg.RedisAddr)
	return rdb, nil
}
