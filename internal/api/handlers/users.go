package handlers

import (
	"net/http"

	"github.com/acumant/ai-portal/internal/api/dto"
	"github.com/acumant/ai-portal/internal/api/middleware"
	"github.com/acumant/ai-portal/internal/database/models"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	service *entitlement.Service
}

func NewUserHandler(service *entitlement.Service) *UserHandler {
	return &UserHandler{service: service}
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ManagedUsers(r.Context(), middleware.GetCurrentUser(r.Context()))
	if err != nil {
		writeServiceError(w, err, "Failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTOs(users))
}

// Create handles POST /api/v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	user, err := h.service.CreateUser(r.Context(), middleware.GetCurrentUser(r.Context()), entitlement.CreateUserInput{
		ID:             req.ID,
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		Role:           models.Role(req.Role),
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewUserDTO(user))
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.User(r.Context(), middleware.GetCurrentUser(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

// Update handles PUT /api/v1/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.UpdateUser(r.Context(), middleware.GetCurrentUser(r.Context()), chi.URLParam(r, "id"), req.Input())
	if err != nil {
		writeServiceError(w, err, "Failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

// Deactivate handles POST /api/v1/users/{id}/deactivate
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.DeactivateUser(r.Context(), middleware.GetCurrentUser(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to deactivate user")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

// Tools handles GET /api/v1/users/{id}/tools
func (h *UserHandler) Tools(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.User(r.Context(), middleware.GetCurrentUser(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to get user")
		return
	}

	tools, err := h.service.UserTools(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "Failed to list user tools")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewToolDTOs(tools))
}

// UpdateTools handles PUT /api/v1/users/{id}/tools
func (h *UserHandler) UpdateTools(w http.ResponseWriter, r *http.Request) {
	var req dto.ToolIDsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	tools, err := h.service.AssignUserTools(r.Context(), middleware.GetCurrentUser(r.Context()), chi.URLParam(r, "id"), req.IDs())
	if err != nil {
		writeServiceError(w, err, "Failed to update user tools")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewToolDTOs(tools))
}
