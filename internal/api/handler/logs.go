package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatekeeper/gatekeeper/internal/api/response"
	"github.com/gatekeeper/gatekeeper/internal/store"
)

// LogHandler handles activity log endpoints.
type LogHandler struct {
	store *store.Store
}

// NewLogHandler creates a new LogHandler.
func NewLogHandler(s *store.Store) *LogHandler {
	return &LogHandler{store: s}
}

// ListDeviceLogs handles GET /v1/devices/{deviceId}/logs.
// Entries are returned newest first.
func (h *LogHandler) ListDeviceLogs(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	logs, err := h.store.Logs(r.Context(), deviceID)
	if err != nil {
		response.InternalError(w, r, "failed to list logs")
		return
	}

	response.JSON(w, r, http.StatusOK, logs)
}

// ClearDeviceLogs handles DELETE /v1/devices/{deviceId}/logs.
func (h *LogHandler) ClearDeviceLogs(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	if err := h.store.ClearLogs(r.Context(), deviceID); err != nil {
		response.InternalError(w, r, "failed to clear logs")
		return
	}

	response.NoContent(w, r)
}

// ListSystemLogs handles GET /v1/logs/system.
// The system bucket collects entries that carry no device id.
func (h *LogHandler) ListSystemLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.store.Logs(r.Context(), store.SystemLogBucket)
	if err != nil {
		response.InternalError(w, r, "failed to list logs")
		return
	}

	response.JSON(w, r, http.StatusOK, logs)
}

// ClearSystemLogs handles DELETE /v1/logs/system.
func (h *LogHandler) ClearSystemLogs(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearLogs(r.Context(), store.SystemLogBucket); err != nil {
		response.InternalError(w, r, "failed to clear logs")
		return
	}

	response.NoContent(w, r)
}
