package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisRateLimiter: общий для всех реплик лимитер с фиксированным окном:
// INCR ключа окна и EXPIRE при первом запросе.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisRateLimiter создаёт лимитер поверх готового клиента.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window, prefix: "zoobot:rl"}
}

// Allow считает апдейт. Если Redis недоступен, пропускает (fail open).
func (rl *RedisRateLimiter) Allow(ctx context.Context, userID int64) bool {
	slot := time.Now().UnixNano() / int64(rl.window)
	key := fmt.Sprintf("%s:%d:%d", rl.prefix, userID, slot)

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Redis rate limit недоступен")
		return true
	}
	return incr.Val() <= int64(rl.limit)
}

// Close закрывает клиент Redis.
func (rl *RedisRateLimiter) Close() {
	if err := rl.client.Close(); err != nil {
		log.WithError(err).Warn("Ошибка закрытия Redis")
	}
}
