package handler

import (
	"time"

	"github.com/SergeiKhy/clicktrail/internal/live"
	"github.com/SergeiKhy/clicktrail/internal/middleware"
	"github.com/SergeiKhy/clicktrail/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Dependencies struct {
	Links        service.LinkService
	Stats        service.StatsService
	Recorder     ClickRecorder
	ClickLimiter *service.RateLimiter
	// BurstLimiter защищает эндпоинты дашборда, nil отключает
	BurstLimiter *middleware.RateLimiter
	Hub          *live.Hub
	Live         live.Config
	Edge         EdgeHeaders
	APIKeys      []string
	Logger       *zap.Logger
}

func NewRouter(deps Dependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	redirectHandler := NewRedirectHandler(deps.Links, deps.Recorder, deps.Edge, logger)
	statsHandler := NewStatsHandler(deps.Stats, logger)
	liveHandler := NewLiveHandler(deps.Hub, deps.Live, logger)
	linkHandler := NewLinkHandler(deps.Links, logger)

	dashboard := []gin.HandlerFunc{dashboardCORS(deps.Live.AllowedOrigins)}
	if deps.BurstLimiter != nil {
		dashboard = append(dashboard, deps.BurstLimiter.Middleware())
	}
	dash := router.Group("/", dashboard...)
	{
		dash.GET("/stats", statsHandler.Stats)
		dash.GET("/live", liveHandler.Live)
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck)
		v1.GET("/live/sessions", statsHandler.LiveSessions)

		admin := v1.Group("/links", middleware.RequireAPIKey(deps.APIKeys))
		admin.POST("", linkHandler.CreateLink)
		admin.DELETE("/:slug", linkHandler.DeleteLink)
	}

	// В часовой лимит кликов попадает только редирект
	identity := middleware.ClientIdentity(redirectHandler.headers.IP)
	router.GET("/:slug", middleware.ClickRateLimit(deps.ClickLimiter, identity), redirectHandler.Redirect)

	return router
}

func dashboardCORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Cache-Control"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
