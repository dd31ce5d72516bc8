package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/deskops/helpdesk/internal/api/http"
	"github.com/deskops/helpdesk/internal/api/http/handlers"
	"github.com/deskops/helpdesk/internal/auth"
	"github.com/deskops/helpdesk/internal/clock"
	"github.com/deskops/helpdesk/internal/config"
	"github.com/deskops/helpdesk/internal/events"
	"github.com/deskops/helpdesk/internal/observability"
	"github.com/deskops/helpdesk/internal/persistence"
	"github.com/deskops/helpdesk/internal/repository"
	"github.com/deskops/helpdesk/internal/service"
	"github.com/deskops/helpdesk/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
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

	var store repository.Store
	if pg.Configured() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pg.PoolHandle())
	} else {
		logger.Warn("using in-memory store; data is lost on restart")
		store = repository.NewMemoryStore(nil)
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var sessions session.Store
	if redis.Configured() {
		sessions = session.NewRedisStore(redis.Client)
	} else {
		sessions = session.NewMemoryStore(clock.Real())
	}

	clk := clock.Real()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger, cfg.Notification).RegisterHandlers()

	userService := service.NewUserService(cfg.Auth, service.UserDependencies{
		Store:      store,
		Clock:      clk,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Users:    userService,
		Sessions: sessions,
		Logger:   logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:       store,
		Assignment:  service.NewAssignmentService(cfg.Assignment, nil),
		Clock:       clk,
		Dispatcher:  dispatcher,
		Logger:      logger,
		PublicFeeds: cfg.App.PublicTicketFeeds,
	})
	reportService := service.NewReportService(store, clk)

	var checks []handlers.DependencyCheck
	if pg.Configured() {
		checks = append(checks, handlers.DependencyCheck{Name: "postgres", Ping: pg.Ping})
	}
	if redis.Configured() {
		checks = append(checks, handlers.DependencyCheck{Name: "redis", Ping: redis.Ping})
	}

	app := httptransport.NewApp(httptransport.ServerOptions{
		AppName:        cfg.App.Name,
		RequestTimeout: cfg.App.RequestTimeout(),
		Logger:         logger,
		Metrics:        metrics,
	}, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, checks...),
		Auth:           handlers.NewAuthHandler(authService, cfg.Auth.SecureCookie),
		Tickets:        handlers.NewTicketsHandler(ticketService, logger),
		Technician:     handlers.NewTechnicianHandler(ticketService),
		AdminTickets:   handlers.NewAdminTicketsHandler(ticketService, userService),
		Users:          handlers.NewUsersHandler(userService),
		Profile:        handlers.NewProfileHandler(userService),
		Stats:          handlers.NewStatsHandler(reportService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), sessions, store.Users()),
	})

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("assignment", cfg.Assignment.Strategy),
			zap.Bool("public_ticket_feeds", cfg.App.PublicTicketFeeds))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
