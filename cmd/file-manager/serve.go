package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/file-manager/internal/api/contract"
	"github.com/bigkaa/goartstore/file-manager/internal/api/handlers"
	"github.com/bigkaa/goartstore/file-manager/internal/api/middleware"
	"github.com/bigkaa/goartstore/file-manager/internal/config"
	"github.com/bigkaa/goartstore/file-manager/internal/database"
	"github.com/bigkaa/goartstore/file-manager/internal/server"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запуск HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

//nolint:funlen // линейная сборка зависимостей
func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, logger := a.cfg, a.logger
	logger.Info("File Manager запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("default_provider", cfg.DefaultProvider),
		slog.String("auth_mode", cfg.AuthMode),
	)

	// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(a.pool)
	defer pgDB.Close()

	dephealthCfg := service.DephealthConfig{
		ServiceID:     dephealthServiceID(),
		Group:         cfg.DephealthGroup,
		PGConnURL:     cfg.DatabaseURL(),
		S3HealthPath:  cfg.DephealthS3HealthPath,
		CheckInterval: cfg.DephealthCheckInterval,
	}
	if cfg.S3Enabled() {
		dephealthCfg.S3Endpoint = cfg.S3Endpoint
	}
	if os.Getenv("FM_DEPHEALTH_GROUP") == "" {
		logger.Warn("FM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}
	depSvc, err := service.NewDephealthService(dephealthCfg, pgDB, logger)
	if err != nil {
		return fmt.Errorf("topologymetrics: %w", err)
	}
	if err := depSvc.Start(ctx); err != nil {
		return fmt.Errorf("запуск topologymetrics: %w", err)
	}
	defer depSvc.Stop()

	if cfg.CleanupInterval > 0 {
		if err := a.cleanup.Start(ctx, cfg.CleanupInterval); err != nil {
			return fmt.Errorf("запуск очистки: %w", err)
		}
		defer a.cleanup.Stop()
	} else {
		logger.Info("Фоновая очистка выключена (FM_CLEANUP_INTERVAL=0)")
	}

	healthHandler := handlers.NewHealthHandler(
		handlers.HealthCheck{Name: "postgresql", Checker: database.NewReadinessChecker(a.pool), Critical: true},
		handlers.HealthCheck{Name: "storage", Checker: a.local, Critical: true},
		handlers.HealthCheck{Name: "dependencies", Checker: depSvc},
	)
	apiHandler := handlers.NewAPIHandler(a.fileManager, healthHandler, cfg.MaxFileSize, logger)

	authMW, err := buildAuth(cfg, logger)
	if err != nil {
		return err
	}

	doc, err := contract.Load(ctx)
	if err != nil {
		return err
	}
	validator, err := middleware.NewRequestValidator(doc, logger)
	if err != nil {
		return err
	}

	srv := server.New(cfg, logger, apiHandler,
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
		server.AuthWithExclusions(authMW, "/health/", "/metrics", "/api/v1/openapi.yaml"),
		validator.Middleware(),
	)

	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("File Manager остановлен")
	return nil
}

// buildAuth выбирает middleware аутентификации по FM_AUTH_MODE.
func buildAuth(cfg *config.Config, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	if cfg.AuthMode == config.AuthModeHeader {
		logger.Warn("Режим аутентификации header: X-User-ID принимается без проверки, сервис должен быть закрыт API Gateway")
		return middleware.HeaderAuth(), nil
	}

	jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
		JWKSURL:         cfg.JWKSURL,
		ClientTimeout:   cfg.JWKSClientTimeout,
		RefreshInterval: cfg.JWKSRefreshInterval,
		JWTLeeway:       cfg.JWTLeeway,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("JWT middleware: %w", err)
	}
	logger.Info("JWT аутентификация включена", slog.String("jwks_url", cfg.JWKSURL))
	return jwtAuth.Middleware(), nil
}
