// Package handler provides HTTP handlers for the Gatekeeper API.
package handler

import (
	"net/http"
	"time"

	"github.com/gatekeeper/gatekeeper/internal/api/models"
	"github.com/gatekeeper/gatekeeper/internal/api/response"
	"github.com/gatekeeper/gatekeeper/internal/store"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	store     *store.Store
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, s *store.Store) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		store:     s,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// Ready means the store can be read through its storage port.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Devices(r.Context()); err != nil {
		health := models.Health{
			Status: models.HealthStatusFail,
			Time:   models.Timestamp(time.Now()),
			Details: map[string]interface{}{
				"storage": err.Error(),
			},
		}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}
