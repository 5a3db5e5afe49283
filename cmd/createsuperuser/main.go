// Command createsuperuser creates an administrator account.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/road-maintenance/internal/audit"
	"github.com/spec-kit/road-maintenance/internal/auth"
	"github.com/spec-kit/road-maintenance/internal/config"
	"github.com/spec-kit/road-maintenance/internal/events"
	"github.com/spec-kit/road-maintenance/internal/observability"
	"github.com/spec-kit/road-maintenance/internal/persistence"
	"github.com/spec-kit/road-maintenance/internal/repository"
	"github.com/spec-kit/road-maintenance/internal/service"
)

func main() {
	email := flag.String("email", "", "superuser email address")
	password := flag.String("password", "", "superuser password")
	firstName := flag.String("first-name", "", "optional first name")
	lastName := flag.String("last-name", "", "optional last name")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		log.Fatal("email and password are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	dispatcher := events.NewInMemoryDispatcher()
	activityWriter := audit.NewWriter(repository.NewActivityRepository(pool), logger)
	activityWriter.RegisterHandlers(dispatcher)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		AccountRepo:       repository.NewAccountRepository(pool),
		PasswordResetRepo: repository.NewPasswordResetRepository(pool),
		TxManager:         persistence.NewTxManager(pool),
		Dispatcher:        dispatcher,
		Activity:          activityWriter,
		TokenManager:      auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL()),
		Logger:            logger,
	})

	account, err := authService.CreateSuperuser(ctx, *email, *password, *firstName, *lastName)
	if err != nil {
		logger.Fatal("failed to create superuser", zap.Error(err))
	}
	logger.Info("superuser created", zap.String("account_id", account.ID), zap.String("email", account.Email))
}
