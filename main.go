// Package main provides the entry point of the safelink blog and link gate
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/safelink/app/handlers"
	"github.com/amirphl/safelink/app/middleware"
	"github.com/amirphl/safelink/app/router"
	"github.com/amirphl/safelink/app/services"
	"github.com/amirphl/safelink/app/views"
	businessflow "github.com/amirphl/safelink/business_flow"
	"github.com/amirphl/safelink/config"
	"github.com/amirphl/safelink/repository"
	"github.com/amirphl/safelink/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	logger    *zap.Logger
	stopFuncs []func()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runServer starts the HTTP server and blocks until SIGINT or SIGTERM
func runServer(cfg *config.ProductionConfig, logger *zap.Logger) error {
	app, err := initializeApplication(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, fn := range app.stopFuncs {
			fn()
		}
	}()

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		errCh <- app.router.Start(address)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case sig := <-sigChan:
		logger.Info("Shutting down gracefully...", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server stopped")
	return nil
}

// initializeLogger builds the application logger from the logging config
func initializeLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	return utils.NewLogger(utils.LoggerOptions{
		Level:            cfg.Level,
		Format:           cfg.Format,
		Output:           cfg.Output,
		FilePath:         cfg.FilePath,
		MaxSize:          cfg.MaxSize,
		MaxBackups:       cfg.MaxBackups,
		MaxAge:           cfg.MaxAge,
		Compress:         cfg.Compress,
		EnableCaller:     cfg.EnableCaller,
		EnableStacktrace: cfg.EnableStacktrace,
	})
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormCfg := &gorm.Config{
		Logger: gormlogger.Discard,
	}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)
	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity. It returns nil when caching is disabled.
func initializeCache(cfg config.CacheConfig, logger *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established", zap.Int("db", opt.DB))
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis. The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *zap.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("Redis healthcheck failed", zap.Error(err))
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeContentSource builds the Blogger client, wrapped in the Redis cache when one is configured
func initializeContentSource(cfg *config.ProductionConfig, rc *redis.Client, logger *zap.Logger) services.ContentSource {
	origin := services.NewBloggerClient(services.BloggerClientConfig{
		BaseURL:         cfg.Blogger.BaseURL,
		BlogID:          cfg.Blogger.BlogID,
		APIKey:          cfg.Blogger.APIKey,
		Timeout:         cfg.Blogger.Timeout,
		RandomPoolPages: cfg.Blogger.RandomPoolPages,
	})
	if rc == nil {
		return origin
	}
	store := services.NewRedisCacheStore(rc, cfg.Cache.RedisPrefix)
	return services.NewCachedContentSource(origin, store, cfg.Cache.DefaultTTL, cfg.Cache.PostTTL, cfg.Blogger.RandomPoolPages, logger.Named("content"))
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logger *zap.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second, logger))
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
	}

	// Repositories
	shortLinkRepo := repository.NewShortLinkRepository(db)
	shortLinkClickRepo := repository.NewShortLinkClickRepository(db)

	// Services
	clock := utils.SystemClock{}
	content := initializeContentSource(cfg, rc, logger)
	codec := services.NewDestinationCodec()
	metrics := services.NewGateMetrics(prometheus.DefaultRegisterer)

	tickets, err := services.NewGateTicketService(cfg.Gate.TicketSecret, cfg.Gate.TicketTTL, "safelink", clock)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gate tickets: %w", err)
	}

	var captcha services.CaptchaService
	if cfg.Gate.CaptchaEnabled {
		captcha, err = services.NewCaptchaServiceRotate(cfg.Gate.CaptchaTTL, 15, 300, clock)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize captcha: %w", err)
		}
	}

	// Flows
	gateFlow := businessflow.NewGateFlow(
		codec,
		content,
		tickets,
		captcha,
		services.NewCountdownRunner(utils.GateTickInterval),
		metrics,
		businessflow.GateFlowConfig{
			VerifyDwell:      cfg.Gate.VerifyDwell,
			ProcessingDelay:  cfg.Gate.ProcessingDelay,
			CountdownSeconds: cfg.Gate.CountdownSeconds,
		},
		logger.Named("gate"),
	)

	blogFlow := businessflow.NewBlogFlow(
		content,
		services.NewContentMarkup(cfg.Content.Sanitize),
		businessflow.BlogSettings{
			SiteTitle:     cfg.Content.SiteTitle,
			AdsenseClient: cfg.Content.AdsenseClient,
			ContactEmail:  cfg.Content.ContactEmail,
		},
		logger.Named("blog"),
	)

	shortLinkSettings := businessflow.ShortLinkSettings{
		PublicBaseURL: cfg.ShortLink.PublicBaseURL,
		CodeLength:    cfg.ShortLink.CodeLength,
	}
	resolveFlow := businessflow.NewShortLinkResolveFlow(shortLinkRepo, shortLinkClickRepo, db, codec, metrics, logger.Named("short_link"))
	botShortLinkFlow := businessflow.NewBotShortLinkFlow(shortLinkRepo, codec, shortLinkSettings, logger.Named("short_link"))
	adminShortLinkFlow := businessflow.NewAdminShortLinkFlow(shortLinkRepo, shortLinkClickRepo, codec, shortLinkSettings, logger.Named("short_link"))

	// Handlers
	hs := router.Handlers{
		Gate:           handlers.NewGateHandler(gateFlow, blogFlow, logger),
		ShortLink:      handlers.NewShortLinkHandler(resolveFlow, gateFlow, blogFlow, logger),
		ShortLinkBot:   handlers.NewShortLinkBotHandler(botShortLinkFlow, logger),
		ShortLinkAdmin: handlers.NewShortLinkAdminHandler(adminShortLinkFlow, logger),
		Blog:           handlers.NewBlogHandler(blogFlow, gateFlow, logger),
	}

	engine := views.New()
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.Security.BotAPIKeyHashes, cfg.Security.AdminAPIKeyHashes)
	if len(cfg.Security.BotAPIKeyHashes) == 0 || len(cfg.Security.AdminAPIKeyHashes) == 0 {
		logger.Warn("API key hashes are not fully configured; protected endpoints will reject every request")
	}

	appRouter := router.NewFiberRouter(cfg, hs, authMiddleware, engine, prometheus.DefaultGatherer, logger)

	return &Application{
		router:    appRouter,
		config:    cfg,
		logger:    logger,
		stopFuncs: stopFuncs,
	}, nil
}
