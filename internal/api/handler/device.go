package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatekeeper/gatekeeper/internal/api/models"
	"github.com/gatekeeper/gatekeeper/internal/api/response"
	"github.com/gatekeeper/gatekeeper/internal/command"
	"github.com/gatekeeper/gatekeeper/internal/store"
)

// DeviceHandler handles device management endpoints.
type DeviceHandler struct {
	store *store.Store
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(s *store.Store) *DeviceHandler {
	return &DeviceHandler{store: s}
}

// ListDevices handles GET /v1/devices.
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.store.Devices(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to list devices")
		return
	}
	response.JSON(w, r, http.StatusOK, devices)
}

// CreateDevice handles POST /v1/devices.
func (h *DeviceHandler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	input := store.DeviceInput{
		Name:       req.Name,
		UnitNumber: req.UnitNumber,
		Password:   req.Password,
	}
	if req.RelaySettings != nil {
		input.RelaySettings = &store.RelaySettings{
			AccessControl: command.AccessMode(req.RelaySettings.AccessControl),
			LatchTime:     req.RelaySettings.LatchTime,
		}
	}

	device, err := h.store.AddDevice(r.Context(), input)
	if err != nil {
		response.InternalError(w, r, "failed to create device")
		return
	}

	response.Created(w, r, "/v1/devices/"+device.ID, device)
}

// GetDevice handles GET /v1/devices/{deviceId}.
func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	device, err := h.store.Device(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			response.NotFound(w, r, "device not found")
			return
		}
		response.InternalError(w, r, "failed to load device")
		return
	}

	response.JSON(w, r, http.StatusOK, device)
}

// UpdateDevice handles PATCH /v1/devices/{deviceId}.
func (h *DeviceHandler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	var req models.UpdateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	patch := store.DevicePatch{
		Name:       req.Name,
		UnitNumber: req.UnitNumber,
		Password:   req.Password,
	}
	if req.RelaySettings != nil {
		patch.RelaySettings = &store.RelaySettings{
			AccessControl: command.AccessMode(req.RelaySettings.AccessControl),
			LatchTime:     req.RelaySettings.LatchTime,
		}
	}

	device, err := h.store.UpdateDevice(r.Context(), deviceID, patch)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			response.NotFound(w, r, "device not found")
			return
		}
		response.InternalError(w, r, "failed to update device")
		return
	}

	response.JSON(w, r, http.StatusOK, device)
}

// DeleteDevice handles DELETE /v1/devices/{deviceId}.
func (h *DeviceHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	deleted, err := h.store.DeleteDevice(r.Context(), deviceID)
	if err != nil {
		response.InternalError(w, r, "failed to delete device")
		return
	}
	if !deleted {
		response.NotFound(w, r, "device not found")
		return
	}

	response.NoContent(w, r)
}

// ListDeviceUsers handles GET /v1/devices/{deviceId}/users.
func (h *DeviceHandler) ListDeviceUsers(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	users, err := h.store.DeviceUsers(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			response.NotFound(w, r, "device not found")
			return
		}
		response.InternalError(w, r, "failed to list device users")
		return
	}

	response.JSON(w, r, http.StatusOK, users)
}

// AuthorizeUser handles PUT /v1/devices/{deviceId}/users/{userId}.
// Granting an already granted user is a no-op.
func (h *DeviceHandler) AuthorizeUser(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	userID := chi.URLParam(r, "userId")

	_, err := h.store.AuthorizeUser(r.Context(), deviceID, userID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDeviceNotFound):
			response.NotFound(w, r, "device not found")
		case errors.Is(err, store.ErrUserNotFound):
			response.NotFound(w, r, "user not found")
		case errors.Is(err, store.ErrSerialTaken):
			response.Conflict(w, r, "serial number already authorized on this device")
		default:
			response.InternalError(w, r, "failed to authorize user")
		}
		return
	}

	response.NoContent(w, r)
}

// DeauthorizeUser handles DELETE /v1/devices/{deviceId}/users/{userId}.
// Revoking a grant that does not exist is a no-op.
func (h *DeviceHandler) DeauthorizeUser(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	userID := chi.URLParam(r, "userId")

	_, err := h.store.DeauthorizeUser(r.Context(), deviceID, userID)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			response.NotFound(w, r, "device not found")
			return
		}
		response.InternalError(w, r, "failed to deauthorize user")
		return
	}

	response.NoContent(w, r)
}
