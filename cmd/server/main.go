package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stockroom/internal/client/platform"
	"stockroom/internal/config"
	cronrunner "stockroom/internal/cron"
	"stockroom/internal/db"
	"stockroom/internal/handler"
	"stockroom/internal/logger"
	"stockroom/internal/models"
	gormrepository "stockroom/internal/repository/gorm"
	"stockroom/internal/service"
)

func main() {
	cfgPath := os.Getenv("SR_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SR_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	platformHTTP := &http.Client{Timeout: cfg.Platform.Timeout}
	platformClient := platform.NewClient(platformHTTP, cfg.Platform.BaseURL, cfg.Platform.Token)
	store := gormrepository.New(dbConn.Gorm)

	ledger := &service.CursorLedger{Repo: store, Logger: logger}
	reconciler := &service.Reconciler{
		Repo:       store,
		Normalizer: service.NewPassthroughNormalizer(),
		Logger:     logger,
	}
	states := &service.OrderStateService{Repo: store, Logger: logger}
	availability := &service.AvailabilityService{Repo: store, Logger: logger}
	fulfillment := &service.FulfillmentService{
		Repo:         store,
		Availability: availability,
		States:       states,
		Cfg:          cfg.Allocation,
		Logger:       logger,
	}
	ingest := &service.IngestService{
		Repo:               store,
		Platform:           platformClient,
		Ledger:             ledger,
		Reconciler:         reconciler,
		States:             states,
		Cfg:                cfg.Sync,
		DefaultWarehouseID: cfg.Allocation.DefaultWarehouseID,
		Logger:             logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(engine)
	syncHandler := &handler.SyncHandler{
		Ingest:      ingest,
		Fulfillment: fulfillment,
		Repo:        store,
		Logger:      logger,
	}
	syncHandler.Register(engine)
	orderHandler := &handler.OrderHandler{
		Fulfillment:  fulfillment,
		Availability: availability,
		Repo:         store,
		Logger:       logger,
	}
	orderHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		streams := []struct {
			spec   string
			entity string
		}{
			{cfg.Cron.ArticleSync, models.EntityArticle},
			{cfg.Cron.CategorySync, models.EntityCategory},
			{cfg.Cron.AttributeSync, models.EntityAttribute},
			{cfg.Cron.OrderSync, models.EntityOrder},
		}
		for _, stream := range streams {
			entity := stream.entity
			_, err := cronRunner.Add(stream.spec, func(ctx context.Context) {
				report, err := ingest.RunIngestion(ctx, entity)
				if err != nil {
					logger.Warn("cron sync failed", zap.String("entity", entity), zap.Error(err))
					return
				}
				logger.Info("cron sync ok",
					zap.String("entity", entity),
					zap.String("result", report.Result),
					zap.Int("imported", report.Imported),
					zap.Int("failed", report.Failed),
					zap.Int("pages", report.Pages))
			})
			if err != nil {
				logger.Warn("cron register sync failed", zap.String("entity", entity), zap.Error(err))
			}
		}

		_, err := cronRunner.Add(cfg.Cron.AllocationBatch, func(ctx context.Context) {
			processed, err := fulfillment.AllocatePending(ctx)
			if err != nil {
				logger.Warn("cron allocation batch failed", zap.Error(err))
				return
			}
			if processed > 0 {
				logger.Info("cron allocation batch ok", zap.Int("processed", processed))
			}
		})
		if err != nil {
			logger.Warn("cron register allocation batch failed", zap.Error(err))
		}

		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
