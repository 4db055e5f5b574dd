package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Baaaki/storyline/internal/avatar"
	"github.com/Baaaki/storyline/internal/broker"
	"github.com/Baaaki/storyline/internal/config"
	"github.com/Baaaki/storyline/internal/database"
	"github.com/Baaaki/storyline/internal/handler"
	"github.com/Baaaki/storyline/internal/metrics"
	"github.com/Baaaki/storyline/internal/outbox"
	"github.com/Baaaki/storyline/internal/quotebook"
	"github.com/Baaaki/storyline/internal/repository"
	"github.com/Baaaki/storyline/internal/service"
	"github.com/Baaaki/storyline/internal/session"
	"github.com/Baaaki/storyline/internal/storage"
	"github.com/Baaaki/storyline/internal/throttle"
	"github.com/Baaaki/storyline/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	if err := logger.Init(!cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Log.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to connect database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Redis: sessions, login throttle, rate limiter, live feed
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Log.Fatal("Invalid REDIS_URL", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Log.Fatal("Failed to connect Redis", zap.Error(err))
	}
	events := broker.NewRedisEventBroker(redisClient)
	defer events.Close()

	// Avatar storage
	var (
		avatarStore storage.Store
		avatarDir   string
	)
	switch cfg.AvatarStorage {
	case "s3":
		avatarStore, err = storage.NewS3Store(ctx, storage.S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
	default:
		var local *storage.LocalStore
		local, err = storage.NewLocalStore(cfg.AvatarDir, cfg.AvatarURLPrefix)
		if err == nil {
			avatarStore, avatarDir = local, local.Dir()
		}
	}
	if err != nil {
		logger.Log.Fatal("Failed to initialize avatar storage", zap.String("storage", cfg.AvatarStorage), zap.Error(err))
	}

	mail, err := outbox.New(cfg.MailOutboxPath)
	if err != nil {
		logger.Log.Fatal("Failed to open mail outbox", zap.Error(err))
	}
	defer mail.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	storyRepo := repository.NewStoryRepository(db)
	flowerRepo := repository.NewFlowerRepository(db)
	resetRepo := repository.NewPasswordResetRepository(db)

	// Services
	quoteClient := quotebook.NewClient(cfg.QuoteAPIURL, cfg.QuoteFetchTimeout)
	quoteService := service.NewQuoteService(quoteRepo, quoteClient, cfg.Timezone, nil)
	storyService := service.NewStoryService(storyRepo, quoteService, events, cfg.StoryMaxWords, cfg.StoryRequireQuote)
	flowerService := service.NewFlowerService(flowerRepo, storyService, events)
	userService := service.NewUserService(userRepo, storyRepo, avatar.NewProcessor(cfg.AvatarMaxBytes, avatar.DefaultMaxDimension), avatarStore)
	resetService := service.NewPasswordResetService(resetRepo, userRepo, mail, cfg.AppURL, cfg.ResetTokenTTL, nil)
	adminService := service.NewAdminService(quoteService, storyRepo, userRepo, flowerRepo)

	router := handler.NewRouter(handler.Deps{
		Config:    cfg,
		Redis:     redisClient,
		Sessions:  session.NewManager(session.NewRedisStore(redisClient), cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction()),
		Throttle:  throttle.New(throttle.NewRedisStore(redisClient, "throttle:login:"), cfg.LoginMaxFailures, cfg.LoginBaseLock, nil),
		Metrics:   metrics.New(),
		Events:    events,
		Catalog:   quotebook.NewCatalog(cfg.QuotesPath, cfg.QuoteEpoch),
		Quotes:    quoteService,
		Stories:   storyService,
		Flowers:   flowerService,
		Users:     userService,
		Resets:    resetService,
		Admin:     adminService,
		AvatarDir: avatarDir,
	})

	go func() {
		if err := router.Feed.Run(ctx); err != nil {
			logger.Log.Error("Live feed stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server starting",
			zap.String("addr", cfg.ServerPort),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Graceful shutdown failed", zap.Error(err))
	}
}
