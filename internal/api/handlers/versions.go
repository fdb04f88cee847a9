// versions.go — HTTP handlers версий файла.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// UploadVersion обрабатывает POST /api/v1/files/{id}/versions (multipart, поле file).
func (h *APIHandler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	content, _, ok := h.readMultipartFile(w, r)
	if !ok {
		return
	}

	version, err := h.files.UploadFileVersion(r.Context(), chi.URLParam(r, "id"), content, userID)
	if err != nil {
		h.handleServiceError(w, r, "upload_version", err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

// ListVersions обрабатывает GET /api/v1/files/{id}/versions.
func (h *APIHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	versions, err := h.files.ListFileVersions(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.handleServiceError(w, r, "list_versions", err)
		return
	}
	if versions == nil {
		versions = []*model.FileVersion{}
	}
	writeJSON(w, http.StatusOK, versions)
}
