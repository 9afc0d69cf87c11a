package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultIPHeader заголовок, в который edge кладёт исходный адрес клиента
const DefaultIPHeader = "CF-Connecting-IP"

// ClientIdentity возвращает функцию ключа: адрес из заголовка edge, а при его
// отсутствии ClientIP из gin
func ClientIdentity(header string) func(*gin.Context) string {
	if header == "" {
		header = DefaultIPHeader
	}
	return func(c *gin.Context) string {
		if ip := strings.TrimSpace(c.GetHeader(header)); ip != "" {
			return ip
		}
		return c.ClientIP()
	}
}
