package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"sel_rubric_backend/internal/config"

	"github.com/go-redis/redis/v8"
)

// InitRedis returns nil, nil when redis is disabled; the distribution cache is then bypassed.
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		log.Println("Redis disabled, distribution cache off")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     50,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, err
	}

	log.Println("Redis connection established")
	return rdb, nil
}
