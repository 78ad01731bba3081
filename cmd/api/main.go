package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/helpdesk-kit/helpdesk/internal/api/http"
	"github.com/helpdesk-kit/helpdesk/internal/api/http/handlers"
	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/config"
	"github.com/helpdesk-kit/helpdesk/internal/events"
	"github.com/helpdesk-kit/helpdesk/internal/observability"
	"github.com/helpdesk-kit/helpdesk/internal/persistence"
	"github.com/helpdesk-kit/helpdesk/internal/repository"
	"github.com/helpdesk-kit/helpdesk/internal/service"
	"github.com/helpdesk-kit/helpdesk/internal/worker"
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	retry := persistence.NewRetryer(cfg.Postgres.RetryMaxTries)
	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool, retry)
	ticketRepo := repository.NewTicketRepository(pool, retry)

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	userService := service.NewUserService(cfg.Auth, service.UserDependencies{
		UserRepo:   userRepo,
		Dispatcher: dispatcher,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
	})

	tokenMgr := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL())
	sessionMgr := auth.NewSessionManager(tokenMgr, auth.NewRedisSessionStore(redis.Client))
	authMiddleware := auth.NewMiddleware(sessionMgr, userRepo)

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, cfg.App, logger, metrics)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(userService, sessionMgr, cfg.Auth),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
