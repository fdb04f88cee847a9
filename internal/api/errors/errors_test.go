package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bigkaa/goartstore/file-manager/internal/service"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, CodeValidationError, "плохой запрос")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался статус 400, получен %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("ожидался application/json, получен %s", ct)
	}

	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("ошибка декодирования: %v", err)
	}
	if body.Error.Code != CodeValidationError || body.Error.Message != "плохой запрос" {
		t.Errorf("неожиданное тело: %+v", body)
	}
}

func TestFromService(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"валидация", fmt.Errorf("%w: пустой файл", service.ErrValidation), http.StatusBadRequest, CodeValidationError},
		{"размер", fmt.Errorf("%w: 200 МБ", service.ErrFileTooLarge), http.StatusRequestEntityTooLarge, CodeFileTooLarge},
		{"не найден", fmt.Errorf("%w: abc", service.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"доступ", service.ErrAccessDenied, http.StatusForbidden, CodeForbidden},
		{"хранилище", fmt.Errorf("%w: s3 timeout", service.ErrStorageProvider), http.StatusServiceUnavailable, CodeStorageUnavailable},
		{"загрузка", fmt.Errorf("%w: insert", service.ErrUpload), http.StatusInternalServerError, CodeUploadError},
		{"очистка", service.ErrCleanupRunning, http.StatusConflict, CodeCleanupRunning},
		{"прочее", fmt.Errorf("сбой"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromService(rec, tt.err)

			if rec.Code != tt.status {
				t.Errorf("ожидался статус %d, получен %d", tt.status, rec.Code)
			}
			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("ошибка декодирования: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Errorf("ожидался код %s, получен %s", tt.code, body.Error.Code)
			}
		})
	}
}

func TestFromService_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	FromService(rec, fmt.Errorf("%w: open /var/lib/uploads/TAX_DOCUMENT/x.pdf: permission denied", service.ErrStorageProvider))

	if strings.Contains(rec.Body.String(), "/var/lib/uploads") {
		t.Errorf("путь файловой системы попал в ответ: %s", rec.Body.String())
	}
}
