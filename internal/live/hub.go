// Package live рассылает записанные клики подключённым наблюдателям дашборда.
// Доставка без гарантий: новому наблюдателю ничего не повторяется, медленный
// наблюдатель теряет сообщения и не тормозит остальных.
package live

import (
	"encoding/json"
	"sync"

	"github.com/SergeiKhy/clicktrail/internal/models"
	"go.uber.org/zap"
)

// Observer одно открытое живое соединение. Send не должен блокироваться и
// сообщает, принято ли сообщение.
type Observer interface {
	Send(msg []byte) bool
}

type Hub struct {
	mu        sync.RWMutex
	observers map[Observer]struct{}
	logger    *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		observers: make(map[Observer]struct{}),
		logger:    logger,
	}
}

// Add регистрирует o, false если он уже зарегистрирован
func (h *Hub) Add(o Observer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.observers[o]; exists {
		return false
	}
	h.observers[o] = struct{}{}
	return true
}

func (h *Hub) Remove(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.observers, o)
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Broadcast отправляет ev всем наблюдателям, зарегистрированным на момент
// вызова. Отправка идёт вне блокировки, регистрация не ждёт доставки.
// Отклонённое сообщение теряется, наблюдатель остаётся до закрытия.
func (h *Hub) Broadcast(ev models.LiveEvent) {
	targets := h.snapshot()
	if len(targets) == 0 {
		return
	}

	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode live event", zap.Error(err))
		return
	}

	dropped := 0
	for _, o := range targets {
		if !o.Send(msg) {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Debug("Live event dropped for slow observers",
			zap.String("slug", ev.Slug),
			zap.Int("dropped", dropped),
		)
	}
}

func (h *Hub) snapshot() []Observer {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Observer, 0, len(h.observers))
	for o := range h.observers {
		out = append(out, o)
	}
	return out
}
