package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateCounterRepository хранит один истекающий счётчик на клиента.
// Get и Set это два отдельных запроса, потерянные между ними обновления
// лимитер допускает.
type RateCounterRepository interface {
	// Get возвращает 0 для отсутствующего или истёкшего счётчика
	Get(ctx context.Context, identity string) (int64, error)
	// Set перезаписывает счётчик и заново выставляет TTL
	Set(ctx context.Context, identity string, count int64, ttl time.Duration) error
}

type rateCounterRepository struct {
	redis *RedisDB
}

func NewRateCounterRepository(redis *RedisDB) RateCounterRepository {
	return &rateCounterRepository{redis: redis}
}

func (r *rateCounterRepository) Get(ctx context.Context, identity string) (int64, error) {
	n, err := r.redis.Client.Get(ctx, r.key(identity)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read rate counter: %w", err)
	}
	return n, nil
}

func (r *rateCounterRepository) Set(ctx context.Context, identity string, count int64, ttl time.Duration) error {
	if err := r.redis.Client.Set(ctx, r.key(identity), count, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write rate counter: %w", err)
	}
	return nil
}

func (r *rateCounterRepository) key(identity string) string {
	return "rate:" + identity
}
