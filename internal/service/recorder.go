package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/classify"
	"github.com/SergeiKhy/clicktrail/internal/models"
	"github.com/SergeiKhy/clicktrail/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultWorkerCount   = 3
	defaultChannelBuffer = 1000
	maxRetries           = 3
	defaultRetryBackoff  = 100 * time.Millisecond
	defaultWriteTimeout  = 5 * time.Second
	defaultSuspicious    = 50
)

// Broadcaster получает сводку каждого записанного клика
type Broadcaster interface {
	Broadcast(ev models.LiveEvent)
}

// EventPublisher выгружает клики во внешний поток
type EventPublisher interface {
	Publish(ctx context.Context, event *models.ClickEvent) error
}

// Locator подставляет страну и город, если edge их не прислал
type Locator interface {
	Locate(ip string) (country, city string)
}

// Visit метаданные запроса, которые редирект передаёт в Recorder
type Visit struct {
	Slug           string
	DestinationURL string
	Referrer       string
	UserAgent      string
	IP             string
	Country        string
	City           string
	QueryParams    string
	RateCount      int64
	StartedAt      time.Time
}

type RecorderConfig struct {
	Workers         int
	Buffer          int
	SuspiciousAbove int64
	RetryBackoff    time.Duration
	WriteTimeout    time.Duration
}

// Recorder превращает визиты в события кликов. Вставку события Record
// дожидается, сессии и рассылка идут через пул воркеров, выгрузка в поток
// через отдельную очередь. Редирект их не ждёт.
type Recorder struct {
	events      repository.EventRepository
	broadcaster Broadcaster
	publisher   EventPublisher
	locator     Locator
	logger      *zap.Logger
	cfg         RecorderConfig
	now         func() time.Time

	jobs    chan *models.ClickEvent
	exports chan *models.ClickEvent
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
}

type RecorderOption func(*Recorder)

func WithBroadcaster(b Broadcaster) RecorderOption {
	return func(r *Recorder) { r.broadcaster = b }
}

func WithPublisher(p EventPublisher) RecorderOption {
	return func(r *Recorder) { r.publisher = p }
}

func WithLocator(l Locator) RecorderOption {
	return func(r *Recorder) { r.locator = l }
}

// WithClock подменяет time.Now для тестов
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(events repository.EventRepository, cfg RecorderConfig, logger *zap.Logger, opts ...RecorderOption) *Recorder {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultChannelBuffer
	}
	if cfg.SuspiciousAbove <= 0 {
		cfg.SuspiciousAbove = defaultSuspicious
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Recorder{
		events: events,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
		jobs:   make(chan *models.ClickEvent, cfg.Buffer),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.publisher != nil {
		r.exports = make(chan *models.ClickEvent, cfg.Buffer)
	}
	return r
}

func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true

	r.logger.Info("Starting click recorder workers", zap.Int("count", r.cfg.Workers))
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	if r.exports != nil {
		r.wg.Add(1)
		go r.exporter()
	}
}

// Stop перестаёт принимать задачи и ждёт опустошения очередей
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.jobs)
	if r.exports != nil {
		close(r.exports)
	}
	started := r.started
	r.mu.Unlock()

	if !started {
		return
	}
	r.logger.Info("Stopping click recorder workers")
	r.wg.Wait()
	r.logger.Info("Click recorder workers stopped")
}

// Record строит событие клика, сохраняет его и ставит в очередь остальную
// работу. Ошибки хранилища только логируются, редирект от них не падает.
func (r *Recorder) Record(ctx context.Context, v Visit) models.ClickEvent {
	event := r.build(v)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.WriteTimeout)
	defer cancel()

	err := r.retry(writeCtx, func(ctx context.Context) error {
		return r.events.InsertClick(ctx, &event)
	})
	if err != nil {
		r.logger.Error("Failed to record click after retries",
			zap.String("slug", event.Slug),
			zap.String("session_id", event.SessionID),
			zap.Error(err),
		)
	}

	r.enqueue(&event)
	return event
}

func (r *Recorder) build(v Visit) models.ClickEvent {
	now := r.now()
	ts := now.UnixMilli()

	referrer := v.Referrer
	if referrer == "" {
		referrer = models.DirectReferrer
	}
	ua := v.UserAgent
	if ua == "" {
		ua = models.Unknown
	}
	ip := orUnknown(v.IP)

	country, city := v.Country, v.City
	if r.locator != nil && (isUnknown(country) || isUnknown(city)) {
		geoCountry, geoCity := r.locator.Locate(ip)
		if isUnknown(country) {
			country = geoCountry
		}
		if isUnknown(city) {
			city = geoCity
		}
	}

	agent := classify.ParseUserAgent(ua)

	var latency int64
	if !v.StartedAt.IsZero() {
		latency = now.Sub(v.StartedAt).Milliseconds()
		if latency < 0 {
			latency = 0
		}
	}

	return models.ClickEvent{
		Slug:           v.Slug,
		DestinationURL: v.DestinationURL,
		Referrer:       referrer,
		RefDomain:      classify.RefDomain(referrer),
		IP:             ip,
		Country:        orUnknown(country),
		City:           orUnknown(city),
		Disposition:    classify.Disposition(ua, v.RateCount, r.cfg.SuspiciousAbove),
		UserAgent:      ua,
		DeviceType:     agent.Device,
		Browser:        agent.Browser,
		OS:             agent.OS,
		QueryParams:    v.QueryParams,
		SessionID:      NewSessionID(ip, now),
		SourceType:     classify.DetectSource(referrer),
		Timestamp:      ts,
		ResponseTime:   latency,
		RateLimitCount: v.RateCount,
	}
}

// NewSessionID возвращает "<ip>:<unix-мс>:<случайный суффикс>"
func NewSessionID(ip string, at time.Time) string {
	return fmt.Sprintf("%s:%d:%s", ip, at.UnixMilli(), uuid.NewString())
}

func (r *Recorder) enqueue(event *models.ClickEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		r.logger.Warn("Recorder stopped, skipping session update", zap.String("slug", event.Slug))
		return
	}

	select {
	case r.jobs <- event:
	default:
		r.logger.Warn("Recorder buffer full, dropping session update",
			zap.String("slug", event.Slug),
		)
	}

	if r.exports == nil {
		return
	}
	select {
	case r.exports <- event:
	default:
		r.logger.Warn("Export buffer full, dropping click event",
			zap.String("slug", event.Slug),
		)
	}
}

func (r *Recorder) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("Recorder worker started", zap.Int("worker_id", id))
	for event := range r.jobs {
		r.process(event)
	}
	r.logger.Debug("Recorder worker stopped", zap.Int("worker_id", id))
}

func (r *Recorder) process(event *models.ClickEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	session := &models.SessionRecord{
		SessionID:  event.SessionID,
		IP:         event.IP,
		Slug:       event.Slug,
		LastActive: event.Timestamp,
	}
	err := r.retry(ctx, func(ctx context.Context) error {
		return r.events.UpsertSession(ctx, session)
	})
	if err != nil {
		r.logger.Error("Failed to upsert session after retries",
			zap.String("session_id", session.SessionID),
			zap.Error(err),
		)
	}

	if r.broadcaster != nil {
		r.broadcaster.Broadcast(event.Live())
	}
}

// exporter отдельной горутиной выгружает события во внешний поток,
// медленный брокер не задерживает сессии и рассылку
func (r *Recorder) exporter() {
	defer r.wg.Done()

	for event := range r.exports {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.Warn("Failed to export click event",
				zap.String("slug", event.Slug),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// retry вызывает fn до maxRetries раз с линейно растущей паузой
func (r *Recorder) retry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %w)", ctx.Err(), err)
		case <-time.After(time.Duration(i+1) * r.cfg.RetryBackoff):
		}
	}
	return err
}

func isUnknown(s string) bool {
	return s == "" || s == models.Unknown
}

func orUnknown(s string) string {
	if s == "" {
		return models.Unknown
	}
	return s
}
