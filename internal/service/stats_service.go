package service

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/analytics"
	"github.com/SergeiKhy/clicktrail/internal/models"
	"github.com/SergeiKhy/clicktrail/internal/repository"
	"go.uber.org/zap"
)

const DefaultActiveWindow = 5 * time.Minute

// ObserverCounter сообщает число подключённых наблюдателей
type ObserverCounter interface {
	Count() int
}

// StatsService отвечает на запросы дашборда только из хранилища
type StatsService interface {
	Aggregate(ctx context.Context, window, domain string, limit int) ([]models.AggregateRow, error)
	LiveStats(ctx context.Context, within time.Duration) (models.LiveStats, error)
}

type statsService struct {
	events    repository.EventRepository
	observers ObserverCounter
	logger    *zap.Logger
	now       func() time.Time
}

func NewStatsService(events repository.EventRepository, observers ObserverCounter, logger *zap.Logger) StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &statsService{
		events:    events,
		observers: observers,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *statsService) Aggregate(ctx context.Context, window, domain string, limit int) ([]models.AggregateRow, error) {
	if limit <= 0 {
		limit = analytics.DefaultLimit
	}
	if limit > analytics.MaxLimit {
		limit = analytics.MaxLimit
	}

	q := analytics.Query{
		Since:  analytics.ResolveWindow(window, s.now()),
		Domain: domain,
		Limit:  limit,
	}

	rows, err := s.events.Aggregate(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}
	if rows == nil {
		rows = []models.AggregateRow{}
	}

	s.logger.Debug("Stats aggregated",
		zap.String("window", window),
		zap.String("domain", domain),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

func (s *statsService) LiveStats(ctx context.Context, within time.Duration) (models.LiveStats, error) {
	if within <= 0 {
		within = DefaultActiveWindow
	}

	active, err := s.events.CountActiveSessions(ctx, s.now().Add(-within))
	if err != nil {
		return models.LiveStats{}, fmt.Errorf("failed to count active sessions: %w", err)
	}

	stats := models.LiveStats{ActiveSessions: active}
	if s.observers != nil {
		stats.Observers = s.observers.Count()
	}
	return stats, nil
}
