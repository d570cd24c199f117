package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatekeeper/gatekeeper/internal/api/models"
	"github.com/gatekeeper/gatekeeper/internal/api/response"
	"github.com/gatekeeper/gatekeeper/internal/store"
)

// UserHandler handles gate user management endpoints.
type UserHandler struct {
	store *store.Store
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(s *store.Store) *UserHandler {
	return &UserHandler{store: s}
}

// ListUsers handles GET /v1/users.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.Users(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to list users")
		return
	}
	response.JSON(w, r, http.StatusOK, users)
}

// CreateUser handles POST /v1/users.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	user, err := h.store.AddUser(r.Context(), store.UserInput{
		Name:         req.Name,
		PhoneNumber:  req.PhoneNumber,
		SerialNumber: req.SerialNumber,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	})
	if err != nil {
		response.InternalError(w, r, "failed to create user")
		return
	}

	response.Created(w, r, "/v1/users/"+user.ID, user)
}

// GetUser handles GET /v1/users/{userId}.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	user, err := h.store.User(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			response.NotFound(w, r, "user not found")
			return
		}
		response.InternalError(w, r, "failed to load user")
		return
	}

	response.JSON(w, r, http.StatusOK, user)
}

// UpdateUser handles PATCH /v1/users/{userId}.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	user, err := h.store.UpdateUser(r.Context(), userID, store.UserPatch{
		Name:         req.Name,
		PhoneNumber:  req.PhoneNumber,
		SerialNumber: req.SerialNumber,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	})
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			response.NotFound(w, r, "user not found")
			return
		}
		response.InternalError(w, r, "failed to update user")
		return
	}

	response.JSON(w, r, http.StatusOK, user)
}

// DeleteUser handles DELETE /v1/users/{userId}.
// The user is also removed from every device's authorized list.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	deleted, err := h.store.DeleteUser(r.Context(), userID)
	if err != nil {
		response.InternalError(w, r, "failed to delete user")
		return
	}
	if !deleted {
		response.NotFound(w, r, "user not found")
		return
	}

	response.NoContent(w, r)
}
