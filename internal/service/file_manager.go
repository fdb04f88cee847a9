package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/access"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/repository"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/provider"
)

// Prometheus-метрики отказов в доступе.
var accessDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fm_access_denied_total",
	Help: "Количество отказов в доступе к файлам (по операции).",
}, []string{"operation"})

// categoryPattern — допустимая бизнес-категория (используется как сегмент пути).
var categoryPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// FileManagerConfig — параметры FileManager.
type FileManagerConfig struct {
	// MaxFileSize — жёсткий предел размера файла в байтах
	MaxFileSize int64
	// AllowedExtensions — расширения без точки, нижний регистр
	AllowedExtensions []string
	// PresignTTL — время жизни presigned URL для приватных файлов S3
	PresignTTL time.Duration
	// ThumbnailSize — большая сторона миниатюры в пикселях
	ThumbnailSize int
}

// FileManager оркестрирует извлечение метаданных, провайдеры хранения,
// записи файлов, разрешения и журнал аудита.
type FileManager struct {
	files     repository.FileRepository
	perms     repository.PermissionRepository
	audit     repository.AccessLogRepository
	versions  repository.VersionRepository
	providers *provider.Registry
	cache     *FileCache
	cfg       FileManagerConfig
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewFileManager создаёт сервис управления файлами.
func NewFileManager(
	files repository.FileRepository,
	perms repository.PermissionRepository,
	audit repository.AccessLogRepository,
	versions repository.VersionRepository,
	providers *provider.Registry,
	cache *FileCache,
	cfg FileManagerConfig,
	logger *slog.Logger,
) *FileManager {
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = 256
	}
	if cache == nil {
		cache = NewFileCache(0, 0)
	}
	return &FileManager{
		files:     files,
		perms:     perms,
		audit:     audit,
		versions:  versions,
		providers: providers,
		cache:     cache,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "file_manager")),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// loadFile возвращает видимую запись файла: из кэша или БД.
// Удалённые и просроченные файлы — ErrNotFound.
func (s *FileManager) loadFile(ctx context.Context, fileID string) (*model.FileRecord, error) {
	if err := uuid.Validate(fileID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}

	record, ok := s.cache.Get(fileID)
	if !ok {
		var err error
		record, err = s.files.GetByID(ctx, fileID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
			}
			return nil, fmt.Errorf("получение записи файла: %w", err)
		}
		if !record.IsDeleted {
			s.cache.Set(record)
		}
	}

	if record.IsDeleted || record.IsExpired(s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	return record, nil
}

// authorize проверяет разрешение perm пользователя на файл.
func (s *FileManager) authorize(
	ctx context.Context, file *model.FileRecord, userID int64, perm model.PermissionType, operation string,
) error {
	decision, err := access.Check(ctx, s.perms, file, userID, perm, s.now())
	if err != nil {
		return fmt.Errorf("проверка разрешения: %w", err)
	}
	if !decision.Allowed() {
		accessDeniedTotal.WithLabelValues(operation).Inc()
		return fmt.Errorf("%w: требуется разрешение %s", ErrAccessDenied, perm)
	}

	s.logger.Debug("Доступ разрешён",
		slog.String("file_id", file.ID),
		slog.Int64("user_id", userID),
		slog.String("permission", string(perm)),
		slog.String("decision", decision.String()),
	)
	return nil
}

// providerFor возвращает провайдер по значению перечисления.
func (s *FileManager) providerFor(kind model.StorageProvider) (provider.Provider, error) {
	p, err := s.providers.Get(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageProvider, err)
	}
	return p, nil
}

// record добавляет запись в журнал аудита. Ошибка записи аудита
// логируется и не меняет результат операции.
func (s *FileManager) record(
	ctx context.Context, fileID *string, userID *int64, accessType model.AccessType, opErr error,
) {
	entry := &model.FileAccessLog{
		FileID:     fileID,
		UserID:     userID,
		AccessType: accessType,
		Success:    opErr == nil,
		AccessedAt: s.now(),
	}
	if opErr != nil {
		msg := opErr.Error()
		entry.ErrorMessage = &msg
	}

	// Аудит пишется и при отменённом контексте запроса
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.audit.Append(auditCtx, entry); err != nil {
		s.logger.Error("Ошибка записи журнала аудита",
			slog.String("access_type", string(accessType)),
			slog.String("error", err.Error()),
		)
	}
}

// checkContent проверяет размер и расширение. Возвращает расширение.
func (s *FileManager) checkContent(content []byte, fileName string) (string, error) {
	if int64(len(content)) > s.cfg.MaxFileSize {
		return "", fmt.Errorf("%w: %d байт при пределе %d", ErrFileTooLarge, len(content), s.cfg.MaxFileSize)
	}
	ext := model.Extension(fileName)
	if ext == "" || !slices.Contains(s.cfg.AllowedExtensions, ext) {
		return "", fmt.Errorf("%w: тип файла %q не разрешён", ErrValidation, ext)
	}
	return ext, nil
}

