package service

import (
	"context"
	"errors"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/repository"
	"go.uber.org/zap"
)

var ErrRateExceeded = errors.New("rate limit exceeded")

const (
	DefaultClickLimit  = 100
	DefaultClickWindow = time.Hour
)

// RateLimiter ограничивает редиректы клиента истекающим счётчиком.
//
// Чтение и запись это два независимых обращения к хранилищу. Параллельные
// запросы одного клиента могут прочитать одно значение и недосчитать,
// это допустимо.
type RateLimiter struct {
	store  repository.RateCounterRepository
	limit  int64
	window time.Duration
	logger *zap.Logger
}

func NewRateLimiter(store repository.RateCounterRepository, limit int64, window time.Duration, logger *zap.Logger) *RateLimiter {
	if limit <= 0 {
		limit = DefaultClickLimit
	}
	if window <= 0 {
		window = DefaultClickWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, limit: limit, window: window, logger: logger}
}

// CheckAndIncrement возвращает значение счётчика до этого запроса. Когда за
// окно насчитано limit запросов, возвращает ErrRateExceeded и счётчик не трогает.
func (l *RateLimiter) CheckAndIncrement(ctx context.Context, identity string) (int64, error) {
	count, err := l.store.Get(ctx, identity)
	if err != nil {
		l.logger.Warn("Rate counter read failed, allowing request",
			zap.String("identity", identity),
			zap.Error(err),
		)
		count = 0
	}

	if count >= l.limit {
		return count, ErrRateExceeded
	}

	if err := l.store.Set(ctx, identity, count+1, l.window); err != nil {
		l.logger.Warn("Rate counter write failed",
			zap.String("identity", identity),
			zap.Error(err),
		)
	}

	return count, nil
}

func (l *RateLimiter) Limit() int64 {
	return l.limit
}
