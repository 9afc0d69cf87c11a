package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	rateCountKey = "rate_count"
	identityKey  = "client_identity"
	startedAtKey = "started_at"

	RateExceededBody = "Rate limit exceeded"
)

// ClickRateLimit учитывает каждый запрос в часовом лимите клиента.
// Отклонённые запросы получают 429 и не доходят до хендлера.
func ClickRateLimit(limiter *service.RateLimiter, identity func(*gin.Context) string) gin.HandlerFunc {
	if identity == nil {
		identity = ClientIdentity("")
	}
	return func(c *gin.Context) {
		c.Set(startedAtKey, time.Now())
		id := identity(c)

		count, err := limiter.CheckAndIncrement(c.Request.Context(), id)
		if errors.Is(err, service.ErrRateExceeded) {
			c.String(http.StatusTooManyRequests, RateExceededBody)
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Set(rateCountKey, count)
		c.Next()
	}
}

// RateCount возвращает значение счётчика до инкремента
func RateCount(c *gin.Context) int64 {
	return c.GetInt64(rateCountKey)
}

// StartedAt возвращает момент входа запроса в ClickRateLimit, чтобы время
// ответа включало обращения к счётчику. Без лимитера берётся текущее время.
func StartedAt(c *gin.Context) time.Time {
	if t := c.GetTime(startedAtKey); !t.IsZero() {
		return t
	}
	return time.Now()
}

// Identity возвращает идентификатор клиента, определённый в ClickRateLimit
func Identity(c *gin.Context) (string, bool) {
	id := c.GetString(identityKey)
	return id, id != ""
}
