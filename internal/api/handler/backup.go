package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gatekeeper/gatekeeper/internal/api/models"
	"github.com/gatekeeper/gatekeeper/internal/api/response"
	"github.com/gatekeeper/gatekeeper/internal/backup"
)

// maxBackupSize bounds the restore request body at 10 MiB.
const maxBackupSize = 10 << 20

// BackupHandler handles backup export and restore endpoints.
type BackupHandler struct {
	manager *backup.Manager
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(m *backup.Manager) *BackupHandler {
	return &BackupHandler{manager: m}
}

// Export handles GET /v1/backup/export.
// The response body is the versioned backup envelope, served as a download.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.manager.Export(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to export backup")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.manager.Filename()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Restore handles POST /v1/backup/restore.
// The raw request body is the backup blob; malformed backups are repaired
// or salvaged where possible, and restored data is merged with existing
// data rather than replacing it.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBackupSize))
	if err != nil {
		response.BadRequest(w, r, "failed to read request body", nil)
		return
	}

	result, err := h.manager.Restore(r.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, backup.ErrEmptyBackup):
			response.BadRequest(w, r, "backup is empty", nil)
		case errors.Is(err, backup.ErrUnparseable), errors.Is(err, backup.ErrNoKeysFound):
			response.UnprocessableEntity(w, r, "no recoverable data found in backup")
		case errors.Is(err, backup.ErrNoKeysRestored):
			response.UnprocessableEntity(w, r, "backup contained no restorable keys")
		default:
			response.InternalError(w, r, "failed to restore backup")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, models.RestoreResponse{
		Tier:        string(result.Tier),
		KeysWritten: result.KeysWritten,
		KeysTotal:   result.KeysTotal,
		Merged:      result.Merged,
		Warnings:    result.Warnings,
	})
}
