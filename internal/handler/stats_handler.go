package handler

import (
	"net/http"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/analytics"
	"github.com/SergeiKhy/clicktrail/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const statsCacheControl = "public, max-age=60"

type StatsHandler struct {
	stats  service.StatsService
	logger *zap.Logger
}

func NewStatsHandler(stats service.StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

// Stats godoc
// @Summary Per-referrer click statistics
// @Tags stats
// @Produce json
// @Param time query string false "Window: 1h, 24h, 7d or 30d" default(24h)
// @Param domain query string false "Only this referrer domain"
// @Param limit query int false "Maximum rows" default(100)
// @Success 200 {array} models.AggregateRow
// @Failure 500 {object} ErrorResponse
// @Router /stats [get]
func (h *StatsHandler) Stats(c *gin.Context) {
	window := c.DefaultQuery("time", analytics.DefaultWindow)
	domain := c.Query("domain")
	limit := analytics.ParseLimit(c.Query("limit"))

	rows, err := h.stats.Aggregate(c.Request.Context(), window, domain, limit)
	if err != nil {
		h.logger.Error("Failed to load stats",
			zap.String("window", window),
			zap.String("domain", domain),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "stats_unavailable",
			Message: "Failed to load statistics",
		})
		return
	}

	c.Header("Cache-Control", statsCacheControl)
	c.JSON(http.StatusOK, rows)
}

// LiveSessions godoc
// @Summary Sessions active within a recent window
// @Tags stats
// @Produce json
// @Param within query string false "Go duration" default(5m)
// @Success 200 {object} models.LiveStats
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/live/sessions [get]
func (h *StatsHandler) LiveSessions(c *gin.Context) {
	within := service.DefaultActiveWindow
	if raw := c.Query("within"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_window",
				Message: "within must be a positive duration such as 5m",
			})
			return
		}
		within = d
	}

	stats, err := h.stats.LiveStats(c.Request.Context(), within)
	if err != nil {
		h.logger.Error("Failed to count live sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "stats_unavailable",
			Message: "Failed to count sessions",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
