// cleanup.go — задание очистки хранилища.
//
// Один запуск выполняет две фазы:
//  1. Purge: файлы с истёкшим TTL и soft-deleted старше grace-периода
//     удаляются физически (объект + версии), затем удаляется строка БД
//     и пишется запись аудита без пользователя.
//  2. Orphan-сверка: объекты локального провайдера, о которых не знает БД,
//     удаляются. Сначала перечисляется диск, затем снимается список путей
//     из БД: файл, загруженный во время сверки, не будет принят за orphan.
//
// Параллельные запуски исключены мьютексом процесса и advisory lock в PostgreSQL.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/repository"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/provider"
)

// Prometheus-метрики очистки.
var (
	cleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_cleanup_runs_total",
		Help: "Общее количество запусков очистки (по статусу).",
	}, []string{"status"})

	cleanupPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_cleanup_purged_total",
		Help: "Общее количество файлов, удалённых очисткой.",
	})

	cleanupOrphansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_cleanup_orphans_removed_total",
		Help: "Общее количество удалённых orphan-объектов.",
	})

	cleanupErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_cleanup_errors_total",
		Help: "Ошибки обработки отдельных объектов при очистке (по фазе).",
	}, []string{"phase"})

	cleanupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fm_cleanup_duration_seconds",
		Help:    "Длительность запуска очистки.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// JobLocker — межпроцессная блокировка задания очистки.
type JobLocker interface {
	// TryLock пытается взять блокировку без ожидания.
	TryLock(ctx context.Context) (unlock func(), acquired bool, err error)
}

// RecordPurger удаляет строку файла и пишет запись аудита атомарно.
type RecordPurger interface {
	Purge(ctx context.Context, fileID string, entry *model.FileAccessLog) error
}

// CleanupConfig — параметры очистки.
type CleanupConfig struct {
	// GracePeriod — сколько хранится soft-deleted файл
	GracePeriod time.Duration
	// OrphanMinAge — объекты моложе не считаются orphan (загрузка в процессе)
	OrphanMinAge time.Duration
	// BatchSize — размер выборки purge-кандидатов
	BatchSize int
}

// CleanupResult — итоги одного запуска.
type CleanupResult struct {
	Purged         int           `json:"purged"`
	PurgeFailed    int           `json:"purge_failed"`
	OrphansRemoved int           `json:"orphans_removed"`
	OrphansFailed  int           `json:"orphans_failed"`
	Duration       time.Duration `json:"duration"`
}

// CleanupService — задание очистки.
type CleanupService struct {
	files     repository.FileRepository
	versions  repository.VersionRepository
	purger    RecordPurger
	locker    JobLocker
	providers *provider.Registry
	cfg       CleanupConfig
	logger    *slog.Logger

	now func() time.Time

	mu        sync.Mutex // защита от параллельного запуска RunOnce
	scheduler *gocron.Scheduler
}

// NewCleanupService создаёт сервис очистки. locker == nil — только
// внутрипроцессная защита.
func NewCleanupService(
	files repository.FileRepository,
	versions repository.VersionRepository,
	purger RecordPurger,
	locker JobLocker,
	providers *provider.Registry,
	cfg CleanupConfig,
	logger *slog.Logger,
) *CleanupService {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 7 * 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &CleanupService{
		files:     files,
		versions:  versions,
		purger:    purger,
		locker:    locker,
		providers: providers,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "cleanup")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start запускает периодическую очистку через gocron. Первый запуск —
// сразу после старта. Задание в singleton-режиме: следующий тик не
// начнётся, пока не завершился предыдущий.
func (c *CleanupService) Start(ctx context.Context, interval time.Duration) error {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	_, err := s.Every(interval).Do(func() {
		runCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		if _, err := c.RunOnce(runCtx); err != nil {
			if errors.Is(err, ErrCleanupRunning) {
				c.logger.Debug("Очистка уже выполняется, пропуск")
				return
			}
			c.logger.Error("Ошибка очистки", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("планирование очистки: %w", err)
	}

	s.StartAsync()
	c.scheduler = s

	c.logger.Info("Очистка запущена",
		slog.String("interval", interval.String()),
		slog.String("grace_period", c.cfg.GracePeriod.String()),
	)
	return nil
}

// Stop останавливает планировщик. Выполняющийся запуск дорабатывает.
func (c *CleanupService) Stop() {
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	c.logger.Info("Очистка остановлена")
}

// RunOnce выполняет один запуск очистки. Если очистка уже идёт в этом
// или другом процессе, возвращает ErrCleanupRunning.
// Ошибки отдельных объектов не прерывают запуск и учитываются в результате.
func (c *CleanupService) RunOnce(ctx context.Context) (*CleanupResult, error) {
	if !c.mu.TryLock() {
		cleanupRunsTotal.WithLabelValues("skipped").Inc()
		return nil, ErrCleanupRunning
	}
	defer c.mu.Unlock()

	if c.locker != nil {
		unlock, acquired, err := c.locker.TryLock(ctx)
		if err != nil {
			cleanupRunsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("блокировка очистки: %w", err)
		}
		if !acquired {
			cleanupRunsTotal.WithLabelValues("skipped").Inc()
			return nil, ErrCleanupRunning
		}
		defer unlock()
	}

	start := time.Now()
	result := &CleanupResult{}
	c.logger.Debug("Очистка начата")

	purgeErr := c.purge(ctx, result)
	orphanErr := c.sweepOrphans(ctx, result)
	result.Duration = time.Since(start)

	err := errors.Join(purgeErr, orphanErr)
	status := "success"
	if err != nil {
		status = "error"
	}
	cleanupRunsTotal.WithLabelValues(status).Inc()
	cleanupPurgedTotal.Add(float64(result.Purged))
	cleanupOrphansTotal.Add(float64(result.OrphansRemoved))
	cleanupDuration.Observe(result.Duration.Seconds())

	c.logger.Info("Очистка завершена",
		slog.Int("purged", result.Purged),
		slog.Int("purge_failed", result.PurgeFailed),
		slog.Int("orphans_removed", result.OrphansRemoved),
		slog.Int("orphans_failed", result.OrphansFailed),
		slog.Duration("duration", result.Duration),
	)
	return result, err
}

// purge удаляет кандидатов пачками. Файл, который не удалось удалить
// физически, остаётся в БД и обрабатывается в следующем запуске.
// Выборка расширяется на число ошибочных файлов, чтобы они не блокировали остальных.
func (c *CleanupService) purge(ctx context.Context, result *CleanupResult) error {
	now := c.now()
	deletedBefore := now.Add(-c.cfg.GracePeriod)
	failed := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		limit := c.cfg.BatchSize + len(failed)
		batch, err := c.files.ListPurgeable(ctx, now, deletedBefore, limit)
		if err != nil {
			return fmt.Errorf("выборка файлов для очистки: %w", err)
		}

		pending := 0
		for _, f := range batch {
			if failed[f.ID] {
				continue
			}
			pending++
			if err := c.purgeFile(ctx, f); err != nil {
				failed[f.ID] = true
				result.PurgeFailed++
				cleanupErrorsTotal.WithLabelValues("purge").Inc()
				c.logger.Error("Очистка: ошибка удаления файла",
					slog.String("file_id", f.ID),
					slog.String("path", f.FilePath),
					slog.String("error", err.Error()),
				)
				continue
			}
			result.Purged++
		}

		if pending == 0 || len(batch) < limit {
			return nil
		}
	}
}

// purgeFile удаляет объекты версий, объект файла и строку БД.
func (c *CleanupService) purgeFile(ctx context.Context, f *model.FileRecord) error {
	store, err := c.providers.Get(f.StorageProvider)
	if err != nil {
		return err
	}

	versions, err := c.versions.ListByFile(ctx, f.ID)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if err := store.Delete(ctx, v.FilePath); err != nil {
			return fmt.Errorf("версия %d: %w", v.VersionNumber, err)
		}
	}
	if err := store.Delete(ctx, f.FilePath); err != nil {
		return err
	}

	fileID := f.ID
	entry := &model.FileAccessLog{
		FileID:     &fileID,
		AccessType: model.AccessTypeDelete,
		Success:    true,
		AccessedAt: c.now(),
	}
	if err := c.purger.Purge(ctx, f.ID, entry); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("удаление записи: %w", err)
	}

	c.logger.Debug("Очистка: файл удалён",
		slog.String("file_id", f.ID),
		slog.Bool("expired", f.IsExpired(c.now())),
	)
	return nil
}

// sweepOrphans удаляет объекты локального провайдера без записи в БД.
func (c *CleanupService) sweepOrphans(ctx context.Context, result *CleanupResult) error {
	store, err := c.providers.Get(model.ProviderLocal)
	if err != nil {
		return nil
	}
	lister, ok := store.(provider.Lister)
	if !ok {
		return nil
	}

	// Диск перечисляется до снимка БД
	objects, err := lister.List(ctx)
	if err != nil {
		return fmt.Errorf("перечисление локального хранилища: %w", err)
	}
	paths, err := c.files.ListLocalPaths(ctx)
	if err != nil {
		return fmt.Errorf("выборка известных путей: %w", err)
	}

	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
	}

	cutoff := c.now().Add(-c.cfg.OrphanMinAge)
	for _, obj := range objects {
		if _, ok := known[obj.Path]; ok {
			continue
		}
		if obj.ModTime.After(cutoff) {
			continue
		}
		if err := store.Delete(ctx, obj.Path); err != nil {
			result.OrphansFailed++
			cleanupErrorsTotal.WithLabelValues("orphan").Inc()
			c.logger.Error("Очистка: ошибка удаления orphan-объекта",
				slog.String("path", obj.Path),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.OrphansRemoved++
		c.logger.Info("Очистка: удалён orphan-объект",
			slog.String("path", obj.Path),
			slog.Int64("size", obj.Size),
		)
	}
	return nil
}
