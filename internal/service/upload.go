package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/extract"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/provider"
)

// Prometheus-метрики загрузки.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_uploads_total",
		Help: "Общее количество загрузок файлов (по статусу).",
	}, []string{"status"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_upload_bytes_total",
		Help: "Общее количество загруженных байт.",
	})

	uploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fm_upload_duration_seconds",
		Help:    "Длительность конвейера загрузки.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// maxOriginalNameLen — предел длины исходного имени (символы).
const maxOriginalNameLen = 255

// UploadRequest — входные данные загрузки. Content уже прочитан в память
// и ограничен сверху транспортом.
type UploadRequest struct {
	Content      []byte
	OriginalName string
	Category     string
	// MimeType — заявленный клиентом тип; на допуск не влияет
	MimeType string
	IsPublic bool
	// AccessLevel — пусто: public для IsPublic, иначе private
	AccessLevel model.AccessLevel
	// StorageProvider — пусто: провайдер по умолчанию
	StorageProvider  model.StorageProvider
	OrganizationID   *string
	ParentEntityType *string
	ParentEntityID   *string
	Tags             []string
	Metadata         map[string]string
	ExpiresAt        *time.Time
}

// FileUploadResponse — результат успешной загрузки.
type FileUploadResponse struct {
	ID           string         `json:"id"`
	OriginalName string         `json:"original_name"`
	StoredName   string         `json:"stored_name"`
	FilePath     string         `json:"file_path"`
	FileType     model.FileType `json:"file_type"`
	FileCategory string         `json:"file_category"`
	FileSize     int64          `json:"file_size"`
	MimeType     string         `json:"mime_type"`
	URL          string         `json:"url"`
	CDNURL       *string        `json:"cdn_url,omitempty"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	UploadedBy   int64          `json:"uploaded_by"`
}

// UploadFile выполняет конвейер загрузки:
// валидация → тип → storedName → контрольные суммы → физическая запись →
// метаданные (best-effort) → запись в БД → аудит.
//
// Физическая запись идёт до вставки в БД: при ошибке вставки объект
// удаляется best-effort, остаток подбирает orphan-сверка задания очистки.
func (s *FileManager) UploadFile(ctx context.Context, req UploadRequest, uploadedBy int64) (*FileUploadResponse, error) {
	start := time.Now()

	resp, err := s.upload(ctx, req, uploadedBy)
	if err != nil {
		status := "error"
		if IsClientError(err) {
			status = "rejected"
		}
		uploadsTotal.WithLabelValues(status).Inc()
		// Неудачная загрузка — без file_id
		s.record(ctx, nil, &uploadedBy, model.AccessTypeUpload, err)

		s.logger.Warn("Загрузка отклонена",
			slog.Int64("user_id", uploadedBy),
			slog.String("original_name", req.OriginalName),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	uploadsTotal.WithLabelValues("success").Inc()
	uploadBytesTotal.Add(float64(resp.FileSize))
	uploadDuration.Observe(time.Since(start).Seconds())
	s.record(ctx, &resp.ID, &uploadedBy, model.AccessTypeUpload, nil)

	s.logger.Info("Файл загружен",
		slog.String("file_id", resp.ID),
		slog.Int64("user_id", uploadedBy),
		slog.String("category", resp.FileCategory),
		slog.Int64("size", resp.FileSize),
	)
	return resp, nil
}

//nolint:funlen // линейный конвейер
func (s *FileManager) upload(ctx context.Context, req UploadRequest, uploadedBy int64) (*FileUploadResponse, error) {
	// (a) Валидация
	originalName, err := sanitizeOriginalName(req.OriginalName)
	if err != nil {
		return nil, err
	}
	ext, err := s.checkContent(req.Content, originalName)
	if err != nil {
		return nil, err
	}
	category := req.Category
	if category == "" {
		category = model.CategoryOther
	}
	if !categoryPattern.MatchString(category) {
		return nil, fmt.Errorf("%w: недопустимая категория %q", ErrValidation, category)
	}
	accessLevel := req.AccessLevel
	if accessLevel == "" {
		accessLevel = model.AccessPrivate
		if req.IsPublic {
			accessLevel = model.AccessPublic
		}
	}
	if !accessLevel.Valid() {
		return nil, fmt.Errorf("%w: недопустимый уровень доступа %q", ErrValidation, accessLevel)
	}
	if (req.ParentEntityType == nil) != (req.ParentEntityID == nil) {
		return nil, fmt.Errorf("%w: parent_entity_type и parent_entity_id задаются вместе", ErrValidation)
	}
	now := s.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expires_at в прошлом", ErrValidation)
	}
	kind := req.StorageProvider
	if kind == "" {
		kind = s.providers.DefaultKind()
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: неизвестный провайдер хранения %q", ErrValidation, kind)
	}
	store, err := s.providerFor(kind)
	if err != nil {
		return nil, err
	}

	// (b) Тип по таблице расширений
	fileType := model.FileTypeFromName(originalName)
	mimeType := resolveMimeType(req.MimeType, ext, req.Content)

	// (c) Уникальное имя объекта
	id := s.newID()
	storedName := s.storedNameFor(id, ext)

	// (d) Контрольные суммы
	sums := extract.ComputeChecksums(req.Content)

	// (e) Физическая запись
	res, err := store.Upload(ctx, provider.UploadInput{
		FileID:      id,
		Data:        req.Content,
		FileName:    storedName,
		Category:    category,
		ContentType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: запись объекта: %w", ErrStorageProvider, err)
	}

	// (f) Метаданные — best-effort
	meta, err := extract.Metadata(req.Content, fileType, req.Metadata)
	if err != nil {
		s.logger.Warn("Не удалось извлечь метаданные файла",
			slog.String("file_id", id),
			slog.String("file_type", string(fileType)),
			slog.String("error", err.Error()),
		)
	}

	// (g) Запись в БД
	record := &model.FileRecord{
		ID:               id,
		OriginalName:     originalName,
		StoredName:       storedName,
		FilePath:         res.Path,
		StorageProvider:  kind,
		CDNURL:           res.CDNURL,
		FileType:         fileType,
		FileCategory:     category,
		MimeType:         mimeType,
		FileSize:         int64(len(req.Content)),
		ChecksumMD5:      sums.MD5,
		ChecksumSHA256:   sums.SHA256,
		IsPublic:         req.IsPublic,
		AccessLevel:      accessLevel,
		UploadedBy:       uploadedBy,
		OrganizationID:   req.OrganizationID,
		ParentEntityType: req.ParentEntityType,
		ParentEntityID:   req.ParentEntityID,
		ExpiresAt:        req.ExpiresAt,
		Metadata:         meta,
		Tags:             normalizeTags(req.Tags),
	}
	if err := s.files.Create(ctx, record); err != nil {
		s.discardObject(store, res.Path)
		return nil, fmt.Errorf("%w: сохранение записи файла: %w", ErrUpload, err)
	}
	s.cache.Set(record)

	return &FileUploadResponse{
		ID:           record.ID,
		OriginalName: record.OriginalName,
		StoredName:   record.StoredName,
		FilePath:     record.FilePath,
		FileType:     record.FileType,
		FileCategory: record.FileCategory,
		FileSize:     record.FileSize,
		MimeType:     record.MimeType,
		URL:          res.URL,
		CDNURL:       record.CDNURL,
		UploadedAt:   record.CreatedAt,
		UploadedBy:   record.UploadedBy,
	}, nil
}

// storedNameFor — имя физического объекта: <uuid>_<unix ms>.<ext>.
func (s *FileManager) storedNameFor(id, ext string) string {
	return fmt.Sprintf("%s_%d.%s", id, s.now().UnixMilli(), ext)
}

// discardObject удаляет физический объект после неудачной вставки записи.
func (s *FileManager) discardObject(store provider.Provider, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.Delete(ctx, key); err != nil && !errors.Is(err, provider.ErrNotFound) {
		s.logger.Warn("Не удалось удалить объект после ошибки записи в БД, его удалит очистка",
			slog.String("provider", string(store.Kind())),
			slog.String("error", err.Error()),
		)
	}
}

// sanitizeOriginalName оставляет только имя файла без каталогов.
func sanitizeOriginalName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	name = path.Base(name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("%w: пустое имя файла", ErrValidation)
	}
	if !utf8.ValidString(name) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: недопустимые символы в имени файла", ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxOriginalNameLen {
		return "", fmt.Errorf("%w: имя файла длиннее %d символов", ErrValidation, maxOriginalNameLen)
	}
	return name, nil
}

// resolveMimeType: заявленный тип, иначе по расширению, иначе по содержимому.
func resolveMimeType(declared, ext string, content []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
	}
	if mt := mime.TypeByExtension("." + ext); mt != "" {
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			return base
		}
	}
	return http.DetectContentType(content)
}

// normalizeTags убирает пустые и повторяющиеся теги, сохраняя порядок.
func normalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		result = append(result, t)
	}
	return result
}
