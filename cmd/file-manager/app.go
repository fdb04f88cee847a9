package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/goartstore/file-manager/internal/config"
	"github.com/bigkaa/goartstore/file-manager/internal/database"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/repository"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/provider"
)

// app — общие зависимости команд.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool

	local     *provider.LocalProvider
	providers *provider.Registry

	files    repository.FileRepository
	versions repository.VersionRepository

	fileManager *service.FileManager
	cleanup     *service.CleanupService
}

// newApp загружает конфигурацию, применяет миграции, подключается к
// PostgreSQL и собирает сервисный слой. Вызывающий обязан вызвать Close.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("загрузка конфигурации: %w", err)
	}
	logger := config.SetupLogger(cfg)

	if err := database.Migrate(cfg, logger); err != nil {
		return nil, fmt.Errorf("миграции БД: %w", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("подключение к PostgreSQL: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, pool: pool}
	if err := a.initProviders(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	a.files = repository.NewFileRepository(pool)
	a.versions = repository.NewVersionRepository(pool)

	a.fileManager = service.NewFileManager(
		a.files,
		repository.NewPermissionRepository(pool),
		repository.NewAccessLogRepository(pool),
		a.versions,
		a.providers,
		service.NewFileCache(cfg.CacheSize, cfg.CacheTTL),
		service.FileManagerConfig{
			MaxFileSize:       cfg.MaxFileSize,
			AllowedExtensions: cfg.AllowedExtensions,
			PresignTTL:        cfg.S3PresignTTL,
		},
		logger,
	)

	a.cleanup = service.NewCleanupService(
		a.files,
		a.versions,
		repository.NewPurger(pool),
		database.NewAdvisoryLocker(pool, database.CleanupLockKey),
		a.providers,
		service.CleanupConfig{
			GracePeriod:  cfg.CleanupGracePeriod,
			OrphanMinAge: cfg.OrphanMinAge,
		},
		logger,
	)
	return a, nil
}

// initProviders создаёт локальный провайдер всегда, S3 — если задан bucket.
func (a *app) initProviders(ctx context.Context) error {
	local, err := provider.NewLocal(a.cfg.UploadDir, a.cfg.LocalBaseURL)
	if err != nil {
		return fmt.Errorf("локальный провайдер: %w", err)
	}
	a.local = local
	providers := []provider.Provider{local}

	if a.cfg.S3Enabled() {
		s3p, err := provider.NewS3(ctx, provider.S3Config{
			Bucket:       a.cfg.S3Bucket,
			Region:       a.cfg.S3Region,
			Endpoint:     a.cfg.S3Endpoint,
			AccessKey:    a.cfg.S3AccessKey,
			SecretKey:    a.cfg.S3SecretKey,
			UsePathStyle: a.cfg.S3UsePathStyle,
			CDNURL:       a.cfg.S3CDNURL,
		})
		if err != nil {
			return fmt.Errorf("S3 провайдер: %w", err)
		}
		providers = append(providers, s3p)
		a.logger.Info("S3 провайдер включён",
			slog.String("bucket", a.cfg.S3Bucket),
			slog.String("region", a.cfg.S3Region),
		)
	}

	registry, err := provider.NewRegistry(model.StorageProvider(a.cfg.DefaultProvider), providers...)
	if err != nil {
		return fmt.Errorf("реестр провайдеров: %w", err)
	}
	a.providers = registry
	return nil
}

// Close освобождает пул соединений.
func (a *app) Close() {
	a.pool.Close()
}

var (
	deploymentSuffix  = regexp.MustCompile(`-[a-z0-9]{6,10}-[a-z0-9]{5}$`)
	statefulSetSuffix = regexp.MustCompile(`-\d+$`)
)

// parseOwnerName извлекает имя владельца пода из hostname:
// Deployment "<name>-<hash>-<id>", StatefulSet "<name>-<ordinal>".
func parseOwnerName(hostname string) string {
	if loc := deploymentSuffix.FindStringIndex(hostname); loc != nil {
		return hostname[:loc[0]]
	}
	if loc := statefulSetSuffix.FindStringIndex(hostname); loc != nil {
		return hostname[:loc[0]]
	}
	return hostname
}

// dephealthServiceID — имя вершины графа зависимостей.
func dephealthServiceID() string {
	hostname, err := os.Hostname()
	if err != nil || strings.TrimSpace(hostname) == "" {
		return "file-manager"
	}
	return parseOwnerName(hostname)
}
