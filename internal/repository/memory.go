package repository

import (
	"context"
	"sync"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/analytics"
	"github.com/SergeiKhy/clicktrail/internal/models"
)

// In-memory реализации для драйвера "memory": локальный запуск и тесты
// хендлеров. Данные живут только в процессе и теряются при выходе.

// Проверка реализации интерфейсов на этапе компиляции
var (
	_ LinkRepository        = (*MemoryLinkRepository)(nil)
	_ CacheRepository       = (*noopCacheRepository)(nil)
	_ RateCounterRepository = (*MemoryRateCounterRepository)(nil)
	_ EventRepository       = (*MemoryEventRepository)(nil)
)

type MemoryLinkRepository struct {
	mu     sync.RWMutex
	links  map[string]*models.Link
	nextID int64
	now    func() time.Time
}

func NewMemoryLinkRepository() *MemoryLinkRepository {
	return &MemoryLinkRepository{
		links:  make(map[string]*models.Link),
		nextID: 1,
		now:    time.Now,
	}
}

func (m *MemoryLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[link.Slug]; exists {
		return ErrSlugExists
	}

	link.ID = m.nextID
	m.nextID++
	stored := *link
	m.links[link.Slug] = &stored
	return nil
}

func (m *MemoryLinkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[slug]
	if !exists || link.Expired(m.now()) {
		return nil, ErrLinkNotFound
	}
	out := *link
	return &out, nil
}

func (m *MemoryLinkRepository) Delete(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[slug]; !exists {
		return ErrLinkNotFound
	}
	delete(m.links, slug)
	return nil
}

// NewNoopCacheRepository используется без Redis, каждый Get промахивается
func NewNoopCacheRepository() CacheRepository {
	return &noopCacheRepository{}
}

type noopCacheRepository struct{}

func (noopCacheRepository) Get(context.Context, string) (*models.Link, error) {
	return nil, ErrLinkNotFound
}

func (noopCacheRepository) Set(context.Context, string, *models.Link, time.Duration) error {
	return nil
}

func (noopCacheRepository) Delete(context.Context, string) error {
	return nil
}

type counter struct {
	value     int64
	expiresAt time.Time
}

type MemoryRateCounterRepository struct {
	mu       sync.Mutex
	counters map[string]counter
	now      func() time.Time
}

func NewMemoryRateCounterRepository() *MemoryRateCounterRepository {
	return NewMemoryRateCounterRepositoryWithClock(time.Now)
}

// NewMemoryRateCounterRepositoryWithClock позволяет тестам двигать время
func NewMemoryRateCounterRepositoryWithClock(now func() time.Time) *MemoryRateCounterRepository {
	return &MemoryRateCounterRepository{
		counters: make(map[string]counter),
		now:      now,
	}
}

func (m *MemoryRateCounterRepository) Get(ctx context.Context, identity string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[identity]
	if !ok {
		return 0, nil
	}
	if !m.now().Before(c.expiresAt) {
		delete(m.counters, identity)
		return 0, nil
	}
	return c.value, nil
}

func (m *MemoryRateCounterRepository) Set(ctx context.Context, identity string, count int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[identity] = counter{value: count, expiresAt: m.now().Add(ttl)}
	return nil
}

type MemoryEventRepository struct {
	mu       sync.RWMutex
	events   []models.ClickEvent
	sessions map[string]models.SessionRecord
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{
		sessions: make(map[string]models.SessionRecord),
	}
}

func (m *MemoryEventRepository) InsertClick(ctx context.Context, event *models.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

func (m *MemoryEventRepository) UpsertSession(ctx context.Context, session *models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[session.SessionID]; ok && existing.LastActive > session.LastActive {
		return nil
	}
	m.sessions[session.SessionID] = *session
	return nil
}

func (m *MemoryEventRepository) Aggregate(ctx context.Context, q analytics.Query) ([]models.AggregateRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return analytics.Summarize(m.events, q), nil
}

func (m *MemoryEventRepository) CountActiveSessions(ctx context.Context, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := since.UnixMilli()
	var n int64
	for _, s := range m.sessions {
		if s.LastActive >= cutoff {
			n++
		}
	}
	return n, nil
}

func (m *MemoryEventRepository) PruneSessions(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := before.UnixMilli()
	var n int64
	for id, s := range m.sessions {
		if s.LastActive < cutoff {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Events возвращает копию всех сохранённых кликов
func (m *MemoryEventRepository) Events() []models.ClickEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ClickEvent(nil), m.events...)
}

// Session возвращает сохранённую запись сессии
func (m *MemoryEventRepository) Session(id string) (models.SessionRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}
