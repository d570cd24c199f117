package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gatekeeper/gatekeeper/internal/api/models"
	"github.com/gatekeeper/gatekeeper/internal/api/response"
	"github.com/gatekeeper/gatekeeper/internal/store"
)

// SettingsHandler handles global settings endpoints.
type SettingsHandler struct {
	store *store.Store
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(s *store.Store) *SettingsHandler {
	return &SettingsHandler{store: s}
}

// GetSettings handles GET /v1/settings.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Settings(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to load settings")
		return
	}
	response.JSON(w, r, http.StatusOK, settings)
}

// UpdateSettings handles PATCH /v1/settings.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	settings, err := h.store.UpdateSettings(r.Context(), store.SettingsPatch{
		AdminNumber:    req.AdminNumber,
		CompletedSteps: req.CompletedSteps,
	})
	if err != nil {
		response.InternalError(w, r, "failed to update settings")
		return
	}

	response.JSON(w, r, http.StatusOK, settings)
}

// SetActiveDevice handles PUT /v1/settings/active-device.
// A null deviceId clears the selection.
func (h *SettingsHandler) SetActiveDevice(w http.ResponseWriter, r *http.Request) {
	var req models.SetActiveDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if err := h.store.SetActiveDevice(r.Context(), req.DeviceID); err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			response.NotFound(w, r, "device not found")
			return
		}
		response.InternalError(w, r, "failed to set active device")
		return
	}

	response.NoContent(w, r)
}

// CompleteStep handles POST /v1/settings/steps.
// Recording an already completed step is a no-op.
func (h *SettingsHandler) CompleteStep(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	if err := h.store.MarkStepCompleted(r.Context(), req.Step); err != nil {
		response.InternalError(w, r, "failed to record step")
		return
	}

	response.NoContent(w, r)
}
