package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"backend_cmms/config"
	"backend_cmms/logger"
)

// InitRedis инициализирует подключение к Redis
func InitRedis(cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		logger.Log.Info("Redis отключен, кэш и ограничение частоты запросов не используются")
		return nil, nil
	}

	addr := cfg.URL
	if addr == "" {
		addr = fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConns,
		MinIdleConns: 2,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  300 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	logger.Log.WithField("addr", addr).Info("Успешно подключено к Redis")
	return client, nil
}

// GenerateCacheKey генерирует ключ кэша для мультитенантности
func GenerateCacheKey(companyID uint, prefix string, suffix string) string {
	return fmt.Sprintf("tenant:%d:%s:%s", companyID, prefix, suffix)
}

// RateLimitCheck увеличивает счетчик запросов в окне и проверяет лимит
func RateLimitCheck(ctx context.Context, client *redis.Client, key string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}

	// TTL выставляется только для первого запроса в окне
	if count == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return false, count, err
		}
	}

	return count <= limit, count, nil
}
