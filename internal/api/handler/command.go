package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatekeeper/gatekeeper/internal/api/models"
	"github.com/gatekeeper/gatekeeper/internal/api/response"
	"github.com/gatekeeper/gatekeeper/internal/command"
	"github.com/gatekeeper/gatekeeper/internal/gsm"
	"github.com/gatekeeper/gatekeeper/internal/store"
)

// CommandHandler handles command dispatch endpoints.
type CommandHandler struct {
	dispatcher *gsm.Dispatcher
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(d *gsm.Dispatcher) *CommandHandler {
	return &CommandHandler{dispatcher: d}
}

// SendCommand handles POST /v1/devices/{deviceId}/commands.
// The command is encoded, sent to the device over SMS, and recorded in the
// device log. The resulting log entry is returned.
func (h *CommandHandler) SendCommand(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	var req models.SendCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	entry, err := h.dispatcher.Dispatch(r.Context(), deviceID, gsm.Request{
		Kind:        command.Kind(req.Type),
		NewPassword: req.NewPassword,
		Serial:      req.Serial,
		SerialEnd:   req.SerialEnd,
		Phone:       req.Phone,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Mode:        command.AccessMode(req.AccessControl),
		LatchTime:   req.LatchTime,
		AdminNumber: req.AdminNumber,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDeviceNotFound):
			response.NotFound(w, r, "device not found")
		case errors.Is(err, gsm.ErrInvalidRequest),
			errors.Is(err, gsm.ErrUnsupportedKind),
			errors.Is(err, gsm.ErrMissingUnitNumber),
			errors.Is(err, gsm.ErrInvalidPassword):
			response.BadRequest(w, r, err.Error(), nil)
		case errors.Is(err, gsm.ErrCircuitOpen):
			response.ServiceUnavailable(w, r, "messaging is temporarily unavailable")
		default:
			// The send failed after retries; the failure is already in
			// the device log.
			response.ServiceUnavailable(w, r, "command could not be delivered")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, entry)
}
