package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/meridian-admin/meridian-admin/internal/app"
	"github.com/meridian-admin/meridian-admin/internal/audit"
	"github.com/meridian-admin/meridian-admin/internal/auth"
	"github.com/meridian-admin/meridian-admin/internal/depts"
	"github.com/meridian-admin/meridian-admin/internal/dicts"
	"github.com/meridian-admin/meridian-admin/internal/menus"
	"github.com/meridian-admin/meridian-admin/internal/observability"
	"github.com/meridian-admin/meridian-admin/internal/platform/cache"
	"github.com/meridian-admin/meridian-admin/internal/platform/db"
	"github.com/meridian-admin/meridian-admin/internal/policy"
	"github.com/meridian-admin/meridian-admin/internal/rbac"
	"github.com/meridian-admin/meridian-admin/internal/roles"
	"github.com/meridian-admin/meridian-admin/internal/session"
	"github.com/meridian-admin/meridian-admin/internal/token"
	"github.com/meridian-admin/meridian-admin/internal/users"
	"github.com/meridian-admin/meridian-admin/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	codec, err := token.NewCodec(cfg.TokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		logger.Error("build token codec", slog.Any("error", err))
		os.Exit(1)
	}

	policyStore, err := policy.NewStore(ctx, dbpool)
	if err != nil {
		logger.Error("load policy store", slog.Any("error", err))
		os.Exit(1)
	}

	sessionStore := session.NewStore(redisClient)
	validate := validator.New()
	metrics := observability.NewMetrics()

	queueClient := jobs.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	auditRepo := audit.NewRepository(dbpool)
	auditRecorder := audit.NewRecorder(logger, auditRepo, queueClient)
	auditHandler := audit.NewHandler(logger, auditRepo)

	usersRepo := users.NewRepository(dbpool)
	rolesRepo := roles.NewRepository(dbpool)
	menusRepo := menus.NewRepository(dbpool)
	deptsRepo := depts.NewRepository(dbpool)
	dictsRepo := dicts.NewRepository(dbpool)

	usersService := users.NewService(logger, usersRepo, deptsRepo, rolesRepo, sessionStore, policyStore, cfg.TokenAccessPrefix, cfg.TokenRefreshPrefix)
	usersHandler := users.NewHandler(logger, usersService, validate)

	rolesService := roles.NewService(logger, rolesRepo, menusRepo, policyStore)
	rolesHandler := roles.NewHandler(logger, rolesService, validate)

	menusService := menus.NewService(logger, menusRepo)
	menusHandler := menus.NewHandler(logger, menusService, validate)

	deptsService := depts.NewService(logger, deptsRepo)
	deptsHandler := depts.NewHandler(logger, deptsService, validate)

	dictsService := dicts.NewService(logger, dictsRepo)
	dictsHandler := dicts.NewHandler(logger, dictsService, validate)

	authService := auth.NewService(logger, usersRepo, codec, sessionStore, auditRecorder, cfg.TokenAccessPrefix, cfg.TokenRefreshPrefix)
	authHandler := auth.NewHandler(logger, authService, validate)

	policyHandler := policy.NewHandler(logger, policyStore, validate)

	evaluator := rbac.NewEvaluator(policyStore, menusRepo, cfg.Mode())
	rbacMiddleware := rbac.Middleware{
		Logger:       logger,
		Codec:        codec,
		Sessions:     sessionStore,
		Principals:   usersService,
		Evaluator:    evaluator,
		Decisions:    metrics,
		AccessPrefix: cfg.TokenAccessPrefix,
		ExcludePaths: cfg.ExcludePaths(),
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthHandler:    authHandler,
		UsersHandler:   usersHandler,
		RolesHandler:   rolesHandler,
		MenusHandler:   menusHandler,
		DeptsHandler:   deptsHandler,
		DictsHandler:   dictsHandler,
		PolicyHandler:  policyHandler,
		AuditHandler:   auditHandler,
		AuditRecorder:  auditRecorder,
		RBACMiddleware: rbacMiddleware,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
