package handlers

import (
	"net/http"

	"github.com/acumant/ai-portal/internal/api/dto"
	"github.com/acumant/ai-portal/internal/api/middleware"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/go-chi/chi/v5"
)

type ToolHandler struct {
	service *entitlement.Service
}

func NewToolHandler(service *entitlement.Service) *ToolHandler {
	return &ToolHandler{service: service}
}

// List handles GET /api/v1/tools
func (h *ToolHandler) List(w http.ResponseWriter, r *http.Request) {
	tools, err := h.service.AllTools(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to list tools")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewToolDTOs(tools))
}

// Create handles POST /api/v1/tools
func (h *ToolHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateToolRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	tool, err := h.service.CreateTool(r.Context(), middleware.GetCurrentUser(r.Context()), entitlement.CreateToolInput{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Slug:        req.Slug,
		LaunchURL:   req.LaunchURL,
		APIKey:      req.APIKey,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to create tool")
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewToolDTO(tool))
}

// Update handles PUT /api/v1/tools/{tool}
func (h *ToolHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateToolRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tool, err := h.service.UpdateTool(r.Context(), middleware.GetCurrentUser(r.Context()), chi.URLParam(r, "tool"), entitlement.UpdateToolInput{
		Name:        req.Name,
		Description: req.Description,
		Slug:        req.Slug,
		LaunchURL:   req.LaunchURL,
		APIKey:      req.APIKey,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to update tool")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewToolDTO(tool))
}

// Test handles POST /api/v1/tools/{tool}/test
func (h *ToolHandler) Test(w http.ResponseWriter, r *http.Request) {
	probe, err := h.service.TestTool(r.Context(), middleware.GetCurrentUser(r.Context()), chi.URLParam(r, "tool"))
	if err != nil {
		writeServiceError(w, err, "Failed to test tool")
		return
	}
	writeJSON(w, http.StatusOK, probe)
}
