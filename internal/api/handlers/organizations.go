package handlers

import (
	"net/http"

	"github.com/acumant/ai-portal/internal/api/dto"
	"github.com/acumant/ai-portal/internal/api/middleware"
	"github.com/acumant/ai-portal/internal/database/models"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead leaves room for form boundaries and headers around the
// logo part.
const multipartOverhead = 64 << 10

type OrganizationHandler struct {
	service *entitlement.Service
}

func NewOrganizationHandler(service *entitlement.Service) *OrganizationHandler {
	return &OrganizationHandler{service: service}
}

// List handles GET /api/v1/organizations
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.service.Organizations(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to list organizations")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewOrganizationDTOs(orgs))
}

// Create handles POST /api/v1/organizations
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateOrganizationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	org, err := h.service.CreateOrganization(r.Context(), middleware.GetCurrentUser(r.Context()), entitlement.CreateOrganizationInput{
		ID:           req.ID,
		Name:         req.Name,
		Subscription: models.Subscription(req.Subscription),
		Status:       models.OrganizationStatus(req.Status),
	})
	if err != nil {
		writeServiceError(w, err, "Failed to create organization")
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewOrganizationDTO(org))
}

// Get handles GET /api/v1/organizations/{id}
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.NewOrganizationDTO(org))
}

// Update handles PUT /api/v1/organizations/{id}
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateOrganizationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	org, err := h.service.UpdateOrganization(r.Context(), middleware.GetCurrentUser(r.Context()), chi.URLParam(r, "id"), req.Input())
	if err != nil {
		writeServiceError(w, err, "Failed to update organization")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewOrganizationDTO(org))
}

// Users handles GET /api/v1/organizations/{id}/users
func (h *OrganizationHandler) Users(w http.ResponseWriter, r *http.Request) {
	org, ok := h.loadManaged(w, r)
	if !ok {
		return
	}

	users, err := h.service.OrganizationUsers(r.Context(), org.ID)
	if err != nil {
		writeServiceError(w, err, "Failed to list organization users")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTOs(users))
}

// Tools handles GET /api/v1/organizations/{id}/tools
func (h *OrganizationHandler) Tools(w http.ResponseWriter, r *http.Request) {
	org, ok := h.loadManaged(w, r)
	if !ok {
		return
	}

	tools, err := h.service.OrganizationTools(r.Context(), org.ID)
	if err != nil {
		writeServiceError(w, err, "Failed to list organization tools")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewToolDTOs(tools))
}

// UpdateTools handles PUT /api/v1/organizations/{id}/tools
func (h *OrganizationHandler) UpdateTools(w http.ResponseWriter, r *http.Request) {
	var req dto.ToolIDsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	tools, err := h.service.AssignOrganizationTools(r.Context(), middleware.GetCurrentUser(r.Context()), chi.URLParam(r, "id"), req.IDs())
	if err != nil {
		writeServiceError(w, err, "Failed to update organization tools")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewToolDTOs(tools))
}

// UploadLogo handles POST /api/v1/organizations/{id}/logo with a multipart
// "logo" file part.
func (h *OrganizationHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, entitlement.MaxLogoSize+multipartOverhead)
	if err := r.ParseMultipartForm(entitlement.MaxLogoSize + multipartOverhead); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Invalid upload",
			Details: map[string]string{"logo": "Logo must be a multipart file of at most 2 MiB"},
		})
		return
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"logo": "Logo file is required"},
		})
		return
	}
	defer file.Close()

	org, err := h.service.SetOrganizationLogo(
		r.Context(),
		middleware.GetCurrentUser(r.Context()),
		chi.URLParam(r, "id"),
		file,
		header.Size,
	)
	if err != nil {
		writeServiceError(w, err, "Failed to upload logo")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewOrganizationDTO(org))
}

func (h *OrganizationHandler) load(w http.ResponseWriter, r *http.Request) (*models.Organization, bool) {
	org, err := h.service.OrganizationByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to get organization")
		return nil, false
	}
	if org == nil {
		writeServiceError(w, entitlement.ErrOrganizationNotFound, "")
		return nil, false
	}
	return org, true
}

// loadManaged answers 403 before 404 so admins cannot probe for other
// organizations' ids.
func (h *OrganizationHandler) loadManaged(w http.ResponseWriter, r *http.Request) (*models.Organization, bool) {
	if !entitlement.CanManageOrganization(middleware.GetCurrentUser(r.Context()), chi.URLParam(r, "id")) {
		writeServiceError(w, entitlement.ErrForbidden, "")
		return nil, false
	}
	return h.load(w, r)
}
