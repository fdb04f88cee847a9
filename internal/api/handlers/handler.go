// handler.go — маршруты HTTP API File Manager. Обработчики разбирают
// запрос, берут user id из контекста и делегируют в FileService.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/bigkaa/goartstore/file-manager/internal/api/contract"
	apierrors "github.com/bigkaa/goartstore/file-manager/internal/api/errors"
	"github.com/bigkaa/goartstore/file-manager/internal/api/middleware"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
)

// FileService — операции сервисного слоя, доступные через HTTP.
type FileService interface {
	UploadFile(ctx context.Context, req service.UploadRequest, uploadedBy int64) (*service.FileUploadResponse, error)
	DownloadFile(ctx context.Context, req service.DownloadRequest) (*service.FileDownloadResponse, error)
	SearchFiles(ctx context.Context, filter service.SearchFilter) (*service.SearchResult, error)
	GetFile(ctx context.Context, fileID string, userID int64) (*model.FileRecord, error)
	GetFileURL(ctx context.Context, fileID string, userID int64) (*service.FileURL, error)
	GetFileAnalytics(ctx context.Context, userID *int64) (*model.FileAnalytics, error)
	SoftDeleteFile(ctx context.Context, fileID string, deletedBy int64) error

	GrantFilePermission(ctx context.Context, req service.GrantRequest) (*model.FilePermission, error)
	RevokeFilePermission(ctx context.Context, fileID string, userID int64, permType model.PermissionType, revokedBy int64) error
	ListFilePermissions(ctx context.Context, fileID string, userID int64) ([]*model.FilePermission, error)

	UploadFileVersion(ctx context.Context, fileID string, content []byte, userID int64) (*model.FileVersion, error)
	ListFileVersions(ctx context.Context, fileID string, userID int64) ([]*model.FileVersion, error)
}

// APIHandler собирает обработчики всех endpoints.
type APIHandler struct {
	files  FileService
	health *HealthHandler
	// maxFileSize — предел размера файла; тело запроса ограничивается с запасом
	maxFileSize int64
	logger      *slog.Logger
}

// NewAPIHandler создаёт обработчик API.
func NewAPIHandler(files FileService, health *HealthHandler, maxFileSize int64, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		files:       files,
		health:      health,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "api_handler")),
	}
}

// Register монтирует все маршруты.
func (h *APIHandler) Register(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)
	r.Get("/api/v1/openapi.yaml", h.GetOpenAPI)

	r.Route("/api/v1/files", func(r chi.Router) {
		r.Get("/", h.SearchFiles)
		r.Post("/", h.UploadFile)
		r.Get("/analytics", h.GetFileAnalytics)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetFile)
			r.Delete("/", h.DeleteFile)
			r.Get("/download", h.DownloadFile)
			r.Get("/preview", h.PreviewFile)
			r.Get("/url", h.GetFileURL)

			r.Get("/permissions", h.ListPermissions)
			r.Post("/permissions", h.GrantPermission)
			r.Delete("/permissions/{userId}/{type}", h.RevokePermission)

			r.Get("/versions", h.ListVersions)
			r.Post("/versions", h.UploadVersion)
		})
	})
}

// GetOpenAPI отдаёт встроенный контракт.
func (h *APIHandler) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(contract.YAML())
}

// callerID возвращает user id или пишет 401.
func callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
	}
	return id, ok
}

// bindQuery разбирает необязательный query-параметр стиля form.
// dest — указатель на указатель (nil, если параметр отсутствует).
func bindQuery(q url.Values, name string, explode bool, dest any) error {
	return runtime.BindQueryParameter("form", explode, false, name, q, dest)
}

// handleServiceError отображает ошибку сервиса в ответ и логирует 5xx.
func (h *APIHandler) handleServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !service.IsClientError(err) {
		h.logger.Error("Ошибка обработки запроса",
			slog.String("operation", op),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	apierrors.FromService(w, err)
}
