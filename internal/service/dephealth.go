// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// File Manager мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - S3-совместимое хранилище — HTTP checker к health endpoint (если задан FM_S3_ENDPOINT)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID — имя вершины графа текущего приложения
	ServiceID string
	// Group — имя группы в метриках (FM_DEPHEALTH_GROUP)
	Group string
	// PGConnURL — URL PostgreSQL для лейблов, не для подключения
	PGConnURL string
	// S3Endpoint — пусто: S3 не мониторится (AWS без собственного endpoint)
	S3Endpoint    string
	S3HealthPath  string
	CheckInterval time.Duration
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
// db — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool().
func NewDephealthService(cfg DephealthConfig, db *sql.DB, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, db, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	cfg DephealthConfig, db *sql.DB, logger *slog.Logger, registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(cfg, db, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	cfg DephealthConfig, db *sql.DB, logger *slog.Logger, extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)),
			dephealth.FromURL(cfg.PGConnURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		),
	)

	if cfg.S3Endpoint != "" {
		s3Opts := []dephealth.DependencyOption{
			dephealth.FromURL(cfg.S3Endpoint),
			dephealth.WithHTTPHealthPath(cfg.S3HealthPath),
			dephealth.CheckInterval(cfg.CheckInterval),
			// Локальный провайдер продолжает работать без S3
			dephealth.Critical(false),
		}
		if parsed, err := url.Parse(cfg.S3Endpoint); err == nil && parsed.Scheme == "https" {
			s3Opts = append(s3Opts, dephealth.WithHTTPTLSSkipVerify(false))
		}
		opts = append(opts, dephealth.HTTP("object-storage", s3Opts...))
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — "имя:host:port", значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

// CheckReady сводит состояние зависимостей для /health/ready.
// Недоступная зависимость даёт degraded: критичность PostgreSQL
// проверяется отдельно прямым ping.
func (ds *DephealthService) CheckReady() (status, message string) {
	var failed []string
	for key, healthy := range ds.dh.Health() {
		if !healthy {
			failed = append(failed, key)
		}
	}
	if len(failed) == 0 {
		return "ok", "все зависимости доступны"
	}
	slices.Sort(failed)
	return "degraded", "недоступны: " + strings.Join(failed, ", ")
}
