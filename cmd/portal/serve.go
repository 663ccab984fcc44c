package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/campusportal/portal-rest/internal/app"
	"github.com/campusportal/portal-rest/internal/auth"
	"github.com/campusportal/portal-rest/internal/groups"
	"github.com/campusportal/portal-rest/internal/integration"
	"github.com/campusportal/portal-rest/internal/observability"
	"github.com/campusportal/portal-rest/internal/permissions"
	"github.com/campusportal/portal-rest/internal/person"
	"github.com/campusportal/portal-rest/internal/platform/cache"
	"github.com/campusportal/portal-rest/internal/platform/db"
	"github.com/campusportal/portal-rest/internal/portlets"
	"github.com/campusportal/portal-rest/internal/rbac"
	"github.com/campusportal/portal-rest/internal/shared"
	"github.com/campusportal/portal-rest/internal/student"
	"github.com/campusportal/portal-rest/internal/windows"
	"github.com/campusportal/portal-rest/jobs"
)

func serve(ctx context.Context) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{ApplicationName: "portal-rest"})
	if err != nil {
		return err
	}
	defer dbpool.Close()

	integrationPool := dbpool
	if cfg.IntegrationsPGDSN != cfg.PGDSN {
		integrationPool, err = db.New(ctx, cfg.IntegrationsPGDSN, db.Options{ApplicationName: "portal-rest-integrations", MaxConns: 4})
		if err != nil {
			return err
		}
		defer integrationPool.Close()
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "portal_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	membership := groups.NewCache(groups.NewPGRepository(dbpool), redisClient, cfg.GroupCacheTTL, logger)
	store := permissions.NewPGStore(dbpool)
	rbacService := rbac.NewService(store, membership, logger)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	registry := permissions.NewPGRegistry(dbpool, map[string]permissions.TargetProvider{
		permissions.ProviderPortlets: permissions.NewPortletTargets(dbpool),
		permissions.ProviderGroups:   permissions.NewGroupTargets(dbpool),
	})
	resolver := permissions.NewResolver(store, membership, rbacService, registry, groups.NewDirectory(dbpool), logger)

	people := person.NewManager(dbpool)
	records := integration.NewDAO(integrationPool, logger)
	portletService := portlets.NewService(portlets.NewPGRepository(dbpool), rbacService, logger)

	authService := auth.NewService(auth.NewRepository(dbpool))

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		RBACMiddleware:     rbacMiddleware,
		Metrics:            metrics,
		AuthHandler:        auth.NewHandler(logger, authService, sessionManager, csrfManager),
		PermissionsHandler: permissions.NewHandler(logger, resolver, registry),
		PortletsHandler:    portlets.NewHandler(logger, portletService),
		StudentHandler:     student.NewHandler(logger, student.NewService(records, people, cfg.Student(), logger)),
		WindowsHandler:     windows.NewHandler(logger, windows.NewService(portletService, people, records, cfg.Windows())),
		JobHandler:         jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server", slog.Any("error", err))
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return err
	}
	return nil
}
