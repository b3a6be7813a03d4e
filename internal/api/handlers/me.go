package handlers

import (
	"net/http"

	"github.com/acumant/ai-portal/internal/api/dto"
	"github.com/acumant/ai-portal/internal/api/middleware"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/go-chi/chi/v5"
)

// MeHandler serves the signed-in user's own view of the portal. Routes must
// sit behind middleware.LoadUser.
type MeHandler struct {
	service *entitlement.Service
}

func NewMeHandler(service *entitlement.Service) *MeHandler {
	return &MeHandler{service: service}
}

// Get handles GET /api/v1/me
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetCurrentUser(r.Context())
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

// Tools handles GET /api/v1/me/tools
func (h *MeHandler) Tools(w http.ResponseWriter, r *http.Request) {
	tools, err := h.service.AccessibleTools(r.Context(), middleware.GetCurrentUser(r.Context()))
	if err != nil {
		writeServiceError(w, err, "Failed to load tools")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewToolDTOs(tools))
}

// Navigation handles GET /api/v1/me/navigation
func (h *MeHandler) Navigation(w http.ResponseWriter, r *http.Request) {
	nav, err := h.service.Navigation(r.Context(), middleware.GetCurrentUser(r.Context()))
	if err != nil {
		writeServiceError(w, err, "Failed to load navigation")
		return
	}
	writeJSON(w, http.StatusOK, dto.NavigationResponse{
		Screens: nav.Screens,
		Tools:   dto.NewToolDTOs(nav.Tools),
	})
}

// Access handles GET /api/v1/tools/{tool}/access, keyed by slug. Tool pages
// call it before rendering; a 403 means the user must not see the tool.
func (h *MeHandler) Access(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "tool")

	allowed, err := h.service.CanAccessTool(r.Context(), middleware.GetCurrentUser(r.Context()), slug)
	if err != nil {
		writeServiceError(w, err, "Failed to check access")
		return
	}

	status := http.StatusOK
	if !allowed {
		status = http.StatusForbidden
	}
	writeJSON(w, status, dto.AccessResponse{Tool: slug, Allowed: allowed})
}
