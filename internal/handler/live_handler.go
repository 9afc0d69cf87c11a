package handler

import (
	"net/http"

	"github.com/SergeiKhy/clicktrail/internal/live"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const ExpectedWebSocketBody = live.ExpectedWebSocketBody

type LiveHandler struct {
	hub      *live.Hub
	upgrader *websocket.Upgrader
	cfg      live.Config
	logger   *zap.Logger
}

func NewLiveHandler(hub *live.Hub, cfg live.Config, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{
		hub:      hub,
		upgrader: live.NewUpgrader(cfg),
		cfg:      cfg,
		logger:   logger,
	}
}

// Live godoc
// @Summary Live click feed over websocket
// @Tags stats
// @Success 101
// @Failure 426 {string} string "Expected WebSocket"
// @Router /live [get]
func (h *LiveHandler) Live(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.String(http.StatusUpgradeRequired, ExpectedWebSocketBody)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader уже записал ответ с ошибкой
		h.logger.Warn("Live upgrade failed", zap.String("ip", c.ClientIP()), zap.Error(err))
		return
	}

	h.logger.Debug("Live observer connected", zap.String("ip", c.ClientIP()))
	live.NewWSObserver(conn, h.hub, h.cfg, h.logger).Serve()
	h.logger.Debug("Live observer disconnected", zap.String("ip", c.ClientIP()))
}
