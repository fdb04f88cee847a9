// Пакет errors — ответы с ошибками HTTP API File Manager.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
package errors //nolint:revive // имя пакета совпадает со stdlib, импортируется как apierrors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/bigkaa/goartstore/file-manager/internal/service"
)

// Коды ошибок из OpenAPI контракта.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeUploadError        = "UPLOAD_ERROR"
	CodeCleanupRunning     = "CLEANUP_RUNNING"
	CodeInternalError      = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 файл не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// FileTooLarge — 413 файл превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// StorageUnavailable — 503 бэкенд хранения недоступен.
func StorageUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeStorageUnavailable, message)
}

// CleanupRunning — 409 очистка уже выполняется.
func CleanupRunning(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeCleanupRunning, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// FromService отображает ошибку сервисного слоя в HTTP-ответ.
// Текст клиентских ошибок отдаётся как есть: сервис не включает в него
// пути файловой системы. Для 5xx отдаётся обобщённое сообщение.
func FromService(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, service.ErrFileTooLarge):
		FileTooLarge(w, err.Error())
	case stderrors.Is(err, service.ErrValidation):
		ValidationError(w, err.Error())
	case stderrors.Is(err, service.ErrNotFound):
		NotFound(w, "Файл не найден")
	case stderrors.Is(err, service.ErrAccessDenied):
		Forbidden(w, "Доступ к файлу запрещён")
	case stderrors.Is(err, service.ErrStorageProvider):
		StorageUnavailable(w, "Хранилище файлов недоступно")
	case stderrors.Is(err, service.ErrCleanupRunning):
		CleanupRunning(w, "Очистка уже выполняется")
	case stderrors.Is(err, service.ErrUpload):
		WriteError(w, http.StatusInternalServerError, CodeUploadError, "Не удалось сохранить файл")
	default:
		InternalError(w, "Внутренняя ошибка сервера")
	}
}
