package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/road-maintenance/internal/api/http"
	"github.com/spec-kit/road-maintenance/internal/api/http/handlers"
	"github.com/spec-kit/road-maintenance/internal/audit"
	"github.com/spec-kit/road-maintenance/internal/auth"
	"github.com/spec-kit/road-maintenance/internal/config"
	"github.com/spec-kit/road-maintenance/internal/events"
	"github.com/spec-kit/road-maintenance/internal/history"
	"github.com/spec-kit/road-maintenance/internal/observability"
	"github.com/spec-kit/road-maintenance/internal/persistence"
	"github.com/spec-kit/road-maintenance/internal/repository"
	"github.com/spec-kit/road-maintenance/internal/service"
	"github.com/spec-kit/road-maintenance/internal/storage"
	"github.com/spec-kit/road-maintenance/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	store, err := storage.NewMinioStore(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to init object storage", zap.Error(err))
	}
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Warn("attachment bucket unavailable", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
	}

	accountRepo := repository.NewAccountRepository(pool)
	activityRepo := repository.NewActivityRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)
	issueRepo := repository.NewIssueRepository(pool)
	historyRepo := repository.NewIssueHistoryRepository(pool)
	commentRepo := repository.NewIssueCommentRepository(pool)
	attachmentRepo := repository.NewIssueAttachmentRepository(pool)
	reportRepo := repository.NewReportRepository(pool)

	txManager := persistence.NewTxManager(pool)
	dispatcher := events.NewInMemoryDispatcher()
	activityWriter := audit.NewWriter(activityRepo, logger)
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartEventSubscribers(dispatcher, activityWriter, notifications)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL())
	revoker := auth.NewRedisRevoker(redis.Client)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		AccountRepo:       accountRepo,
		PasswordResetRepo: resetRepo,
		TxManager:         txManager,
		Dispatcher:        dispatcher,
		Activity:          activityWriter,
		TokenManager:      tokens,
		Revoker:           revoker,
		Logger:            logger,
	})
	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:      issueRepo,
		CommentRepo:    commentRepo,
		AttachmentRepo: attachmentRepo,
		AccountRepo:    accountRepo,
		Recorder:       history.NewRecorder(historyRepo),
		Store:          store,
		TxManager:      txManager,
		Dispatcher:     dispatcher,
		Logger:         logger,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	})
	reportService := service.NewReportService(service.ReportDependencies{
		ReportRepo:  reportRepo,
		IssueRepo:   issueRepo,
		AccountRepo: accountRepo,
	})

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
		BodyLimit:    int(cfg.Storage.MaxUploadBytes) + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
			"minio":    store,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Issues:         handlers.NewIssuesHandler(issueService),
		Reports:        handlers.NewReportsHandler(reportService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, accountRepo, revoker),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
