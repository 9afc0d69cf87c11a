package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const DefaultAPIKeyHeader = "X-API-Key"

// APIKeyConfig список допустимых ключей. Без ключей middleware пропускает
// все запросы, так удобно при локальной разработке.
type APIKeyConfig struct {
	Keys       []string
	HeaderName string
}

type APIKey struct {
	config APIKeyConfig
}

func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = DefaultAPIKeyHeader
	}
	return &APIKey{config: config}
}

// Middleware принимает ключ из заголовка, параметра api_key или
// Authorization: Bearer
func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(ak.config.Keys) == 0 {
			c.Next()
			return
		}

		key := extractAPIKey(c, ak.config.HeaderName)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "API key required: send X-API-Key, api_key or Authorization: Bearer",
			})
			return
		}

		if !ak.valid(key) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "API key is not valid",
			})
			return
		}

		c.Next()
	}
}

func (ak *APIKey) valid(key string) bool {
	ok := false
	for _, k := range ak.config.Keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(k)) == 1 {
			ok = true
		}
	}
	return ok
}

func extractAPIKey(c *gin.Context, header string) string {
	if key := c.GetHeader(header); key != "" {
		return key
	}
	if key := c.Query("api_key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// RequireAPIKey защищает группу маршрутов ключами
func RequireAPIKey(keys []string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{Keys: keys}).Middleware()
}
