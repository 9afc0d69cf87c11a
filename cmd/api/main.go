package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/config"
	"github.com/SergeiKhy/clicktrail/internal/geoip"
	"github.com/SergeiKhy/clicktrail/internal/handler"
	"github.com/SergeiKhy/clicktrail/internal/live"
	"github.com/SergeiKhy/clicktrail/internal/maintenance"
	"github.com/SergeiKhy/clicktrail/internal/middleware"
	"github.com/SergeiKhy/clicktrail/internal/repository"
	"github.com/SergeiKhy/clicktrail/internal/service"
	"github.com/SergeiKhy/clicktrail/internal/stream"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
)

type stores struct {
	links    repository.LinkRepository
	cache    repository.CacheRepository
	counters repository.RateCounterRepository
	events   repository.EventRepository
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.App)
	defer logger.Sync()

	if !cfg.App.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer st.close()

	hub := live.NewHub(logger)

	opts := []service.RecorderOption{service.WithBroadcaster(hub)}

	if cfg.GeoIP.Path != "" {
		locator, err := geoip.Open(cfg.GeoIP.Path)
		if err != nil {
			logger.Warn("GeoIP database unavailable, relying on edge headers", zap.Error(err))
		} else {
			defer locator.Close()
			opts = append(opts, service.WithLocator(locator))
			logger.Info("GeoIP lookup enabled", zap.String("path", cfg.GeoIP.Path))
		}
	}

	if cfg.Kafka.Enabled() {
		publisher := stream.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer publisher.Close()
		opts = append(opts, service.WithPublisher(publisher))
		logger.Info("Click stream export enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	recorder := service.NewRecorder(st.events, service.RecorderConfig{
		Workers:         cfg.Tracking.Workers,
		Buffer:          cfg.Tracking.Buffer,
		SuspiciousAbove: cfg.Tracking.SuspiciousAbove,
	}, logger, opts...)
	recorder.Start()
	defer recorder.Stop()

	scheduler := maintenance.NewScheduler(logger, st.events, cfg.Maintenance.Schedule, cfg.Maintenance.SessionTTL)
	if err := scheduler.Start(rootCtx); err != nil {
		logger.Fatal("Failed to start session maintenance", zap.Error(err))
	}
	defer scheduler.Stop()

	burst := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
		KeyFunc:           middleware.ClientIdentity(cfg.Tracking.IPHeader),
	})
	defer burst.Stop()

	apiKeys := lo.Keys(cfg.Auth.APIKeys)
	if len(apiKeys) > 0 {
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(apiKeys)))
	}

	router := handler.NewRouter(handler.Dependencies{
		Links:        service.NewLinkService(st.links, st.cache, cfg.Tracking.LinkCacheTTL, logger),
		Stats:        service.NewStatsService(st.events, hub, logger),
		Recorder:     recorder,
		ClickLimiter: service.NewRateLimiter(st.counters, cfg.Tracking.ClickLimit, cfg.Tracking.Window, logger),
		BurstLimiter: burst,
		Hub:          hub,
		Live: live.Config{
			AllowedOrigins: cfg.Live.AllowedOrigins,
			PingInterval:   cfg.Live.PingInterval,
			SendBuffer:     cfg.Live.SendBuffer,
		},
		Edge: handler.EdgeHeaders{
			IP:      cfg.Tracking.IPHeader,
			Country: cfg.Tracking.CountryHeader,
			City:    cfg.Tracking.CityHeader,
		},
		APIKeys: apiKeys,
		Logger:  logger,
	})

	// Без WriteTimeout: соединения /live долгоживущие
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.App.Port),
			zap.String("storage", cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(app config.AppConfig) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if app.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	return logger
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return &stores{
			links:    repository.NewMemoryLinkRepository(),
			cache:    repository.NewNoopCacheRepository(),
			counters: repository.NewMemoryRateCounterRepository(),
			events:   repository.NewMemoryEventRepository(),
			close:    func() {},
		}, nil
	}

	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to PostgreSQL")

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Connected to Redis")

	return &stores{
		links:    repository.NewLinkRepository(db),
		cache:    repository.NewCacheRepository(redis),
		counters: repository.NewRateCounterRepository(redis),
		events:   repository.NewEventRepository(db),
		close: func() {
			redis.Close()
			db.Close()
		},
	}, nil
}
