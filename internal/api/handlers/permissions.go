// permissions.go — HTTP handlers разрешений на файл.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/file-manager/internal/api/errors"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
)

// grantPermissionRequest — тело POST /api/v1/files/{id}/permissions.
type grantPermissionRequest struct {
	UserID         int64      `json:"user_id"`
	PermissionType string     `json:"permission_type"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// GrantPermission выдаёт или продлевает разрешение.
func (h *APIHandler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	callerUserID, ok := callerID(w, r)
	if !ok {
		return
	}

	var body grantPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	perm, err := h.files.GrantFilePermission(r.Context(), service.GrantRequest{
		FileID:         chi.URLParam(r, "id"),
		UserID:         body.UserID,
		PermissionType: model.PermissionType(body.PermissionType),
		GrantedBy:      callerUserID,
		ExpiresAt:      body.ExpiresAt,
	})
	if err != nil {
		h.handleServiceError(w, r, "grant", err)
		return
	}
	writeJSON(w, http.StatusCreated, perm)
}

// RevokePermission обрабатывает DELETE /api/v1/files/{id}/permissions/{userId}/{type}.
func (h *APIHandler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	callerUserID, ok := callerID(w, r)
	if !ok {
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || userID <= 0 {
		apierrors.ValidationError(w, "userId должен быть положительным целым числом")
		return
	}
	permType, err := model.ParsePermissionType(chi.URLParam(r, "type"))
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if err := h.files.RevokeFilePermission(r.Context(), chi.URLParam(r, "id"), userID, permType, callerUserID); err != nil {
		h.handleServiceError(w, r, "revoke", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPermissions обрабатывает GET /api/v1/files/{id}/permissions.
func (h *APIHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	perms, err := h.files.ListFilePermissions(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.handleServiceError(w, r, "list_permissions", err)
		return
	}
	if perms == nil {
		perms = []*model.FilePermission{}
	}
	writeJSON(w, http.StatusOK, perms)
}
