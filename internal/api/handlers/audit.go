package handlers

import (
	"net/http"
	"strconv"

	"github.com/acumant/ai-portal/internal/api/dto"
	"github.com/acumant/ai-portal/internal/database/models"
	"gorm.io/gorm"
)

// AuditHandler reads the events the worker persisted. It needs the
// database; with the memory driver it reports 503.
type AuditHandler struct {
	db *gorm.DB
}

func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{db: db}
}

// List handles GET /api/v1/audit?page=N&per_page=N. The older limit=N form
// is accepted as per_page.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Audit log requires the database store"})
		return
	}

	q := r.URL.Query()
	params := dto.PaginationParams{
		Page:    atoi(q.Get("page")),
		PerPage: atoi(q.Get("per_page")),
	}
	if params.PerPage == 0 {
		params.PerPage = atoi(q.Get("limit"))
	}
	params.Normalize()

	query := h.db.WithContext(r.Context()).Model(&models.AuditEvent{})
	if action := q.Get("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if actor := q.Get("actor_id"); actor != "" {
		query = query.Where("actor_id = ?", actor)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count audit events"})
		return
	}

	var events []models.AuditEvent
	if err := query.
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.PerPage).
		Find(&events).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list audit events"})
		return
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       dto.NewAuditEventDTOs(events),
		Total:      total,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: params.TotalPages(total),
	})
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
