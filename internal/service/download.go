package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/extract"
	"github.com/bigkaa/goartstore/file-manager/internal/repository"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/provider"
)

// Prometheus-метрики скачивания.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_downloads_total",
		Help: "Общее количество скачиваний файлов (по виду и статусу).",
	}, []string{"kind", "status"})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_download_bytes_total",
		Help: "Общее количество отданных байт.",
	})
)

// DownloadRequest — параметры скачивания.
type DownloadRequest struct {
	FileID string
	UserID int64
	// VersionNumber — номер версии; nil или 1 — исходное содержимое
	VersionNumber *int
	// Preview — просмотр в браузере; в журнале аудита фиксируется как preview
	Preview bool
	// GenerateThumbnail — для изображений вернуть уменьшенную копию
	GenerateThumbnail bool
}

// FileDownloadResponse — содержимое файла для отдачи клиенту.
type FileDownloadResponse struct {
	Content      []byte
	ContentType  string
	FileName     string
	FileSize     int64
	ChecksumMD5  string
	LastModified time.Time
	// Thumbnail — true, если Content содержит миниатюру
	Thumbnail bool
}

// DownloadFile проверяет разрешение read и возвращает содержимое файла.
// Отсутствие объекта у провайдера при живой записи — ErrStorageProvider.
func (s *FileManager) DownloadFile(ctx context.Context, req DownloadRequest) (*FileDownloadResponse, error) {
	accessType := model.AccessTypeDownload
	kind := "download"
	if req.Preview {
		accessType = model.AccessTypePreview
		kind = "preview"
	}

	resp, err := s.download(ctx, req)
	if err != nil {
		downloadsTotal.WithLabelValues(kind, "error").Inc()
		s.record(ctx, auditFileID(req.FileID), &req.UserID, accessType, err)
		return nil, err
	}

	downloadsTotal.WithLabelValues(kind, "success").Inc()
	downloadBytesTotal.Add(float64(len(resp.Content)))
	s.record(ctx, &req.FileID, &req.UserID, accessType, nil)

	s.logger.Debug("Файл отдан",
		slog.String("file_id", req.FileID),
		slog.Int64("user_id", req.UserID),
		slog.String("kind", kind),
		slog.Int("bytes", len(resp.Content)),
	)
	return resp, nil
}

func (s *FileManager) download(ctx context.Context, req DownloadRequest) (*FileDownloadResponse, error) {
	file, err := s.loadFile(ctx, req.FileID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, file, req.UserID, model.PermissionRead, "download"); err != nil {
		return nil, err
	}

	resp := &FileDownloadResponse{
		ContentType:  file.MimeType,
		FileName:     file.OriginalName,
		FileSize:     file.FileSize,
		ChecksumMD5:  file.ChecksumMD5,
		LastModified: file.UpdatedAt,
	}
	objectPath := file.FilePath

	if n := req.VersionNumber; n != nil && *n != 1 {
		version, err := s.resolveVersion(ctx, file.ID, *n)
		if err != nil {
			return nil, err
		}
		objectPath = version.FilePath
		resp.FileSize = version.FileSize
		resp.ChecksumMD5 = version.ChecksumMD5
		resp.LastModified = version.CreatedAt
	}

	store, err := s.providerFor(file.StorageProvider)
	if err != nil {
		return nil, err
	}
	content, err := store.Download(ctx, objectPath)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			s.logger.Error("Объект файла отсутствует в хранилище",
				slog.String("file_id", file.ID),
				slog.String("provider", string(file.StorageProvider)),
				slog.String("path", objectPath),
			)
		}
		return nil, fmt.Errorf("%w: чтение объекта: %w", ErrStorageProvider, err)
	}
	resp.Content = content

	if req.GenerateThumbnail && file.FileType.IsImage() {
		thumb, err := extract.Thumbnail(content, s.cfg.ThumbnailSize)
		if err != nil {
			s.logger.Warn("Не удалось построить миниатюру, отдаётся оригинал",
				slog.String("file_id", file.ID),
				slog.String("error", err.Error()),
			)
		} else {
			resp.Content = thumb
			resp.ContentType = extract.ThumbnailContentType
			resp.FileSize = int64(len(thumb))
			resp.Thumbnail = true
		}
	}

	s.touch(ctx, file)
	return resp, nil
}

// resolveVersion находит сохранённую версию файла по номеру.
func (s *FileManager) resolveVersion(ctx context.Context, fileID string, number int) (*model.FileVersion, error) {
	if number < 1 {
		return nil, fmt.Errorf("%w: номер версии должен быть положительным, получено %d", ErrValidation, number)
	}
	version, err := s.versions.GetByNumber(ctx, fileID, number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: версия %d файла %s", ErrNotFound, number, fileID)
		}
		return nil, fmt.Errorf("получение версии: %w", err)
	}
	return version, nil
}

// touch обновляет last_accessed_at. Ошибка не влияет на скачивание.
func (s *FileManager) touch(ctx context.Context, file *model.FileRecord) {
	at := s.now()
	if err := s.files.TouchAccessed(ctx, file.ID, at); err != nil {
		s.logger.Warn("Не удалось обновить last_accessed_at",
			slog.String("file_id", file.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	file.LastAccessedAt = &at
	s.cache.Set(file)
}
