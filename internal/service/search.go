package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/repository"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/provider"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	// analyticsTrendDays — глубина дневного тренда загрузок
	analyticsTrendDays = 30
)

// SearchFilter — фильтр поиска файлов. nil-поля не применяются.
type SearchFilter struct {
	Category         *string
	FileType         *string
	UploadedBy       *int64
	ParentEntityType *string
	ParentEntityID   *string
	// IncludeDeleted — искать среди soft-deleted файлов вместо живых
	IncludeDeleted bool
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	Name           *string
	Tags           []string
	SortBy         string
	SortOrder      string
	Limit          int
	Offset         int
}

// SearchResult — страница результатов поиска.
type SearchResult struct {
	Files   []*model.FileRecord `json:"files"`
	Total   int                 `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
	HasMore bool                `json:"has_more"`
}

// FileURL — ссылка на содержимое файла.
type FileURL struct {
	URL    string  `json:"url"`
	CDNURL *string `json:"cdn_url,omitempty"`
	// ExpiresAt — для presigned URL
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// SearchFiles возвращает страницу файлов по фильтру и общее количество.
func (s *FileManager) SearchFiles(ctx context.Context, filter SearchFilter) (*SearchResult, error) {
	params, err := buildSearchParams(filter)
	if err != nil {
		return nil, err
	}

	files, total, err := s.files.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("поиск файлов: %w", err)
	}
	if files == nil {
		files = []*model.FileRecord{}
	}

	return &SearchResult{
		Files:   files,
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
		HasMore: params.Offset+len(files) < total,
	}, nil
}

// buildSearchParams проверяет фильтр и применяет значения по умолчанию.
func buildSearchParams(f SearchFilter) (repository.SearchParams, error) {
	if (f.ParentEntityType == nil) != (f.ParentEntityID == nil) {
		return repository.SearchParams{}, fmt.Errorf("%w: parent_entity_type и parent_entity_id задаются вместе", ErrValidation)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return repository.SearchParams{}, fmt.Errorf("%w: limit и offset не могут быть отрицательными", ErrValidation)
	}
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return repository.SearchParams{}, fmt.Errorf("%w: created_after позже created_before", ErrValidation)
	}

	limit := f.Limit
	switch {
	case limit == 0:
		limit = defaultSearchLimit
	case limit > maxSearchLimit:
		limit = maxSearchLimit
	}

	params := repository.SearchParams{
		Category:         f.Category,
		FileType:         f.FileType,
		UploadedBy:       f.UploadedBy,
		ParentEntityType: f.ParentEntityType,
		ParentEntityID:   f.ParentEntityID,
		CreatedAfter:     f.CreatedAfter,
		CreatedBefore:    f.CreatedBefore,
		Tags:             normalizeTags(f.Tags),
		SortBy:           strings.ToLower(f.SortBy),
		SortOrder:        strings.ToLower(f.SortOrder),
		Limit:            limit,
		Offset:           f.Offset,
	}
	if f.Name != nil && strings.TrimSpace(*f.Name) != "" {
		name := strings.TrimSpace(*f.Name)
		params.Name = &name
	}
	if f.IncludeDeleted {
		deleted := true
		params.IsDeleted = &deleted
	}
	return params, nil
}

// GetFile возвращает метаданные файла при наличии разрешения read.
func (s *FileManager) GetFile(ctx context.Context, fileID string, userID int64) (*model.FileRecord, error) {
	file, err := s.loadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, file, userID, model.PermissionRead, "get"); err != nil {
		return nil, err
	}
	return file, nil
}

// GetFileURL возвращает ссылку на файл. Для непубличных файлов провайдера
// с поддержкой подписи выдаётся presigned URL с ограниченным сроком.
func (s *FileManager) GetFileURL(ctx context.Context, fileID string, userID int64) (*FileURL, error) {
	file, err := s.GetFile(ctx, fileID, userID)
	if err != nil {
		return nil, err
	}
	store, err := s.providerFor(file.StorageProvider)
	if err != nil {
		return nil, err
	}

	if !file.IsPublic {
		if signer, ok := store.(provider.Presigner); ok {
			url, expiresAt, err := signer.PresignedURL(ctx, file.FilePath, s.cfg.PresignTTL)
			if err == nil {
				return &FileURL{URL: url, ExpiresAt: &expiresAt}, nil
			}
			s.logger.Warn("Не удалось подписать URL, возвращается прямая ссылка",
				slog.String("file_id", file.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	result := &FileURL{URL: store.URL(file.ID, file.FilePath), CDNURL: file.CDNURL}
	if cdn, ok := store.(provider.CDNProvider); ok && file.IsPublic {
		if u, ok := cdn.CDNURL(file.FilePath); ok {
			result.CDNURL = &u
		}
	}
	return result, nil
}

// GetFileAnalytics агрегирует неудалённые файлы: всех или одного пользователя.
// Тренд загрузок — за последние 30 дней.
func (s *FileManager) GetFileAnalytics(ctx context.Context, userID *int64) (*model.FileAnalytics, error) {
	since := s.now().AddDate(0, 0, -analyticsTrendDays)

	analytics, err := s.files.Analytics(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("аналитика файлов: %w", err)
	}
	return analytics, nil
}
