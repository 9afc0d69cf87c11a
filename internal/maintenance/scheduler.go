// Package maintenance периодически чистит таблицу живых сессий.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/repository"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	DefaultSchedule   = "*/15 * * * *"
	DefaultSessionTTL = 24 * time.Hour
)

// Scheduler удаляет сессии, неактивные дольше TTL
type Scheduler struct {
	c          *cron.Cron
	log        *zap.Logger
	events     repository.EventRepository
	schedule   string
	sessionTTL time.Duration
	now        func() time.Time
}

func NewScheduler(log *zap.Logger, events repository.EventRepository, schedule string, sessionTTL time.Duration) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)))
	return &Scheduler{
		c:          c,
		log:        log,
		events:     events,
		schedule:   schedule,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// Start регистрирует задачу очистки, сразу выполняет её один раз и
// останавливает cron по завершении ctx
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.c.AddFunc(s.schedule, func() { s.prune(ctx) }); err != nil {
		return fmt.Errorf("invalid session prune schedule %q: %w", s.schedule, err)
	}
	s.c.Start()
	s.log.Info("Session maintenance scheduled",
		zap.String("schedule", s.schedule),
		zap.Duration("session_ttl", s.sessionTTL),
	)

	go s.prune(ctx)

	go func() {
		<-ctx.Done()
		<-s.c.Stop().Done()
	}()
	return nil
}

// Stop дожидается завершения текущей задачи
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// PruneOnce удаляет сессии, неактивные дольше TTL
func (s *Scheduler) PruneOnce(ctx context.Context) (int64, error) {
	return s.events.PruneSessions(ctx, s.now().Add(-s.sessionTTL))
}

func (s *Scheduler) prune(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := s.PruneOnce(ctx)
	if err != nil {
		s.log.Error("Failed to prune live sessions", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("Pruned stale live sessions", zap.Int64("count", n))
	}
}
