// Package mocks содержит заглушки репозиториев с управляемыми сбоями.
package mocks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/analytics"
	"github.com/SergeiKhy/clicktrail/internal/models"
	"github.com/SergeiKhy/clicktrail/internal/repository"
)

var ErrStoreDown = errors.New("store unavailable")

// MockCacheRepository реализует repository.CacheRepository и запоминает TTL
// каждого Set
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.Link
	ttls  map[string]time.Duration
	Err   error
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Link),
		ttls:  make(map[string]time.Duration),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, slug string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	link, exists := m.cache[slug]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	out := *link
	return &out, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, slug string, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	stored := *link
	m.cache[slug] = &stored
	m.ttls[slug] = ttl
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, slug)
	delete(m.ttls, slug)
	return m.Err
}

func (m *MockCacheRepository) TTL(slug string) (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ttl, ok := m.ttls[slug]
	return ttl, ok
}

// FailingLinkRepository возвращает Err на любой запрос
type FailingLinkRepository struct {
	Err error
}

func (f FailingLinkRepository) Create(context.Context, *models.Link) error { return f.Err }

func (f FailingLinkRepository) GetBySlug(context.Context, string) (*models.Link, error) {
	return nil, f.Err
}

func (f FailingLinkRepository) Delete(context.Context, string) error { return f.Err }

// FailingRateCounterRepository ломает чтение через GetErr и запись через SetErr
type FailingRateCounterRepository struct {
	GetErr error
	SetErr error

	mu     sync.Mutex
	writes int
}

func (f *FailingRateCounterRepository) Get(context.Context, string) (int64, error) {
	return 0, f.GetErr
}

func (f *FailingRateCounterRepository) Set(context.Context, string, int64, time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	return f.SetErr
}

func (f *FailingRateCounterRepository) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// FlakyEventRepository оборачивает in-memory хранилище и ломает первые N
// вызовов каждой записи. Отрицательное значение ломает навсегда.
type FlakyEventRepository struct {
	*repository.MemoryEventRepository

	mu             sync.Mutex
	InsertFailures int
	UpsertFailures int
	AggregateErr   error
	insertCalls    int
	upsertCalls    int
}

func NewFlakyEventRepository() *FlakyEventRepository {
	return &FlakyEventRepository{MemoryEventRepository: repository.NewMemoryEventRepository()}
}

func (f *FlakyEventRepository) InsertClick(ctx context.Context, event *models.ClickEvent) error {
	f.mu.Lock()
	f.insertCalls++
	fail := f.InsertFailures < 0 || f.insertCalls <= f.InsertFailures
	f.mu.Unlock()

	if fail {
		return ErrStoreDown
	}
	return f.MemoryEventRepository.InsertClick(ctx, event)
}

func (f *FlakyEventRepository) UpsertSession(ctx context.Context, session *models.SessionRecord) error {
	f.mu.Lock()
	f.upsertCalls++
	fail := f.UpsertFailures < 0 || f.upsertCalls <= f.UpsertFailures
	f.mu.Unlock()

	if fail {
		return ErrStoreDown
	}
	return f.MemoryEventRepository.UpsertSession(ctx, session)
}

func (f *FlakyEventRepository) Aggregate(ctx context.Context, q analytics.Query) ([]models.AggregateRow, error) {
	if f.AggregateErr != nil {
		return nil, f.AggregateErr
	}
	return f.MemoryEventRepository.Aggregate(ctx, q)
}

func (f *FlakyEventRepository) InsertCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertCalls
}

func (f *FlakyEventRepository) UpsertCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upsertCalls
}

// SpyBroadcaster запоминает все разосланные события
type SpyBroadcaster struct {
	mu     sync.Mutex
	events []models.LiveEvent
}

func (s *SpyBroadcaster) Broadcast(ev models.LiveEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *SpyBroadcaster) Events() []models.LiveEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LiveEvent(nil), s.events...)
}

// SpyPublisher запоминает выгруженные события, может вернуть Err
type SpyPublisher struct {
	mu     sync.Mutex
	events []models.ClickEvent
	Err    error
}

func (s *SpyPublisher) Publish(ctx context.Context, event *models.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *SpyPublisher) Events() []models.ClickEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ClickEvent(nil), s.events...)
}

// BlockingPublisher зависает в Publish, пока не закрыт Release или не истёк ctx
type BlockingPublisher struct {
	Release chan struct{}
	calls   atomic.Int64
}

func NewBlockingPublisher() *BlockingPublisher {
	return &BlockingPublisher{Release: make(chan struct{})}
}

func (b *BlockingPublisher) Publish(ctx context.Context, event *models.ClickEvent) error {
	b.calls.Add(1)
	select {
	case <-b.Release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *BlockingPublisher) Calls() int64 {
	return b.calls.Load()
}

// StaticLocator на любой запрос отвечает одним и тем же местом
type StaticLocator struct {
	Country string
	City    string
}

func (l StaticLocator) Locate(string) (string, string) {
	return l.Country, l.City
}
