// files.go — HTTP handlers файловых операций: загрузка, поиск,
// метаданные, скачивание, ссылки, удаление и аналитика.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/file-manager/internal/api/errors"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
)

const (
	// multipartMemory — сколько multipart-данных держать в памяти до временных файлов
	multipartMemory = 32 << 20
	// multipartOverhead — запас на заголовки и текстовые поля формы
	multipartOverhead = 1 << 20
)

// UploadFile обрабатывает POST /api/v1/files (multipart/form-data).
func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	content, header, ok := h.readMultipartFile(w, r)
	if !ok {
		return
	}

	req, err := parseUploadForm(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	req.Content = content
	req.OriginalName = header.Filename
	req.MimeType = header.Header.Get("Content-Type")

	resp, err := h.files.UploadFile(r.Context(), req, userID)
	if err != nil {
		h.handleServiceError(w, r, "upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// readMultipartFile разбирает форму и читает поле file целиком.
// При ошибке ответ уже записан.
func (h *APIHandler) readMultipartFile(w http.ResponseWriter, r *http.Request) ([]byte, *multipart.FileHeader, bool) {
	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает %d байт", h.maxFileSize))
			return nil, nil, false
		}
		apierrors.ValidationError(w, "Ожидается multipart/form-data")
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return nil, nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		apierrors.ValidationError(w, "Не удалось прочитать файл")
		return nil, nil, false
	}
	return content, header, true
}

// parseUploadForm разбирает необязательные поля формы загрузки.
func parseUploadForm(r *http.Request) (service.UploadRequest, error) {
	req := service.UploadRequest{
		Category:         r.FormValue("category"),
		AccessLevel:      model.AccessLevel(r.FormValue("access_level")),
		StorageProvider:  model.StorageProvider(r.FormValue("storage_provider")),
		OrganizationID:   optionalString(r.FormValue("organization_id")),
		ParentEntityType: optionalString(r.FormValue("parent_entity_type")),
		ParentEntityID:   optionalString(r.FormValue("parent_entity_id")),
	}

	if raw := r.FormValue("is_public"); raw != "" {
		isPublic, err := strconv.ParseBool(raw)
		if err != nil {
			return req, fmt.Errorf("некорректное значение is_public: %q", raw)
		}
		req.IsPublic = isPublic
	}

	if raw := r.FormValue("tags"); raw != "" {
		req.Tags = strings.Split(raw, ",")
	}

	if raw := r.FormValue("expires_at"); raw != "" {
		expiresAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return req, fmt.Errorf("expires_at должен быть в формате RFC3339: %q", raw)
		}
		req.ExpiresAt = &expiresAt
	}
	return req, nil
}

// SearchFiles обрабатывает GET /api/v1/files. Поиск ограничен файлами
// вызывающего пользователя.
func (h *APIHandler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	filter, err := parseSearchFilter(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	filter.UploadedBy = &userID

	result, err := h.files.SearchFiles(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseSearchFilter(r *http.Request) (service.SearchFilter, error) {
	q := r.URL.Query()

	var (
		filter         service.SearchFilter
		tags           *[]string
		sortBy         *string
		sortOrder      *string
		limit          *int
		offset         *int
		includeDeleted *bool
	)

	bindings := []struct {
		name    string
		explode bool
		dest    any
	}{
		{"category", true, &filter.Category},
		{"file_type", true, &filter.FileType},
		{"parent_entity_type", true, &filter.ParentEntityType},
		{"parent_entity_id", true, &filter.ParentEntityID},
		{"created_after", true, &filter.CreatedAfter},
		{"created_before", true, &filter.CreatedBefore},
		{"name", true, &filter.Name},
		{"tags", false, &tags},
		{"sort_by", true, &sortBy},
		{"sort_order", true, &sortOrder},
		{"limit", true, &limit},
		{"offset", true, &offset},
		{"include_deleted", true, &includeDeleted},
	}
	for _, b := range bindings {
		if err := bindQuery(q, b.name, b.explode, b.dest); err != nil {
			return filter, fmt.Errorf("некорректный параметр %s", b.name)
		}
	}

	if tags != nil {
		filter.Tags = *tags
	}
	if sortBy != nil {
		filter.SortBy = *sortBy
	}
	if sortOrder != nil {
		filter.SortOrder = *sortOrder
	}
	if limit != nil {
		filter.Limit = *limit
	}
	if offset != nil {
		filter.Offset = *offset
	}
	if includeDeleted != nil {
		filter.IncludeDeleted = *includeDeleted
	}
	return filter, nil
}

// GetFile обрабатывает GET /api/v1/files/{id}.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	file, err := h.files.GetFile(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.handleServiceError(w, r, "get_file", err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

// DeleteFile обрабатывает DELETE /api/v1/files/{id} (мягкое удаление).
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := h.files.SoftDeleteFile(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		h.handleServiceError(w, r, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadFile обрабатывает GET /api/v1/files/{id}/download.
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	h.serveContent(w, r, false)
}

// PreviewFile обрабатывает GET /api/v1/files/{id}/preview.
func (h *APIHandler) PreviewFile(w http.ResponseWriter, r *http.Request) {
	h.serveContent(w, r, true)
}

func (h *APIHandler) serveContent(w http.ResponseWriter, r *http.Request, preview bool) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var thumbnail *bool
	if err := bindQuery(r.URL.Query(), "thumbnail", true, &thumbnail); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр thumbnail")
		return
	}

	var version *int
	if err := bindQuery(r.URL.Query(), "version", true, &version); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр version")
		return
	}

	resp, err := h.files.DownloadFile(r.Context(), service.DownloadRequest{
		FileID:            chi.URLParam(r, "id"),
		UserID:            userID,
		VersionNumber:     version,
		Preview:           preview,
		GenerateThumbnail: thumbnail != nil && *thumbnail,
	})
	if err != nil {
		h.handleServiceError(w, r, "download", err)
		return
	}

	disposition := "attachment"
	if preview {
		disposition = "inline"
	}
	if value := mime.FormatMediaType(disposition, map[string]string{"filename": resp.FileName}); value != "" {
		disposition = value
	}

	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Content)))
	w.Header().Set("Cache-Control", "private")
	if !resp.LastModified.IsZero() {
		w.Header().Set("Last-Modified", resp.LastModified.UTC().Format(http.TimeFormat))
	}
	if !resp.Thumbnail && resp.ChecksumMD5 != "" {
		w.Header().Set("ETag", `"`+resp.ChecksumMD5+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Content)
}

// GetFileURL обрабатывает GET /api/v1/files/{id}/url.
func (h *APIHandler) GetFileURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	u, err := h.files.GetFileURL(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.handleServiceError(w, r, "get_url", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GetFileAnalytics обрабатывает GET /api/v1/files/analytics.
// Без user_id возвращает агрегаты по всем файлам; с user_id пользователь
// может запросить только собственную статистику.
func (h *APIHandler) GetFileAnalytics(w http.ResponseWriter, r *http.Request) {
	callerUserID, ok := callerID(w, r)
	if !ok {
		return
	}

	var userID *int64
	if err := bindQuery(r.URL.Query(), "user_id", true, &userID); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр user_id")
		return
	}
	if userID != nil && *userID != callerUserID {
		apierrors.Forbidden(w, "Статистика другого пользователя недоступна")
		return
	}

	analytics, err := h.files.GetFileAnalytics(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, "analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
