package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/acumant/ai-portal/internal/audit"
	"github.com/acumant/ai-portal/internal/database/models"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	store  entitlement.Store
	logger *slog.Logger
}

func NewHandler(db *gorm.DB, store entitlement.Store, logger *slog.Logger) *Handler {
	return &Handler{
		db:     db,
		store:  store,
		logger: logger,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeAuditRecord, h.HandleAuditRecord)
	mux.HandleFunc(TypeIntegrityCheck, h.HandleIntegrityCheck)
}

// HandleAuditRecord persists one audit event. Malformed payloads are
// dropped instead of retried.
func (h *Handler) HandleAuditRecord(ctx context.Context, t *asynq.Task) error {
	var event audit.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if event.Action == "" {
		return fmt.Errorf("audit event without action: %w", asynq.SkipRetry)
	}

	return h.saveEvent(ctx, event)
}

// IntegrityReport counts edges whose endpoints no longer exist.
type IntegrityReport struct {
	OrganizationEdges int `json:"organization_edges"`
	UserEdges         int `json:"user_edges"`
	DanglingOrgEdges  int `json:"dangling_organization_edges"`
	DanglingUserEdges int `json:"dangling_user_edges"`
}

func (r IntegrityReport) Dangling() int {
	return r.DanglingOrgEdges + r.DanglingUserEdges
}

func (h *Handler) HandleIntegrityCheck(ctx context.Context, t *asynq.Task) error {
	var payload IntegrityCheckPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
		}
	}

	report, err := h.CheckIntegrity(ctx)
	if err != nil {
		return err
	}

	h.logger.Info("integrity check finished",
		"triggered_by", payload.TriggeredBy,
		"organization_edges", report.OrganizationEdges,
		"user_edges", report.UserEdges,
		"dangling", report.Dangling(),
	)
	if report.Dangling() == 0 {
		return nil
	}

	return h.saveEvent(ctx, audit.Event{
		Action:     audit.ActionIntegrityDangling,
		TargetType: "entitlement",
		Detail: map[string]interface{}{
			"dangling_organization_edges": report.DanglingOrgEdges,
			"dangling_user_edges":         report.DanglingUserEdges,
		},
	})
}

// CheckIntegrity scans both edge tables and logs every edge that points at a
// missing user, organization or tool. It reports and never repairs.
func (h *Handler) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	users, err := h.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	orgs, err := h.store.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	tools, err := h.store.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	userIDs := make(map[string]struct{}, len(users))
	for _, u := range users {
		userIDs[u.ID] = struct{}{}
	}
	orgIDs := make(map[string]struct{}, len(orgs))
	for _, o := range orgs {
		orgIDs[o.ID] = struct{}{}
	}
	toolIDs := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		toolIDs[t.ID] = struct{}{}
	}

	orgEdges, err := h.store.AllOrganizationTools(ctx)
	if err != nil {
		return nil, err
	}
	userEdges, err := h.store.AllUserTools(ctx)
	if err != nil {
		return nil, err
	}

	report := &IntegrityReport{
		OrganizationEdges: len(orgEdges),
		UserEdges:         len(userEdges),
	}
	for _, e := range orgEdges {
		_, orgOK := orgIDs[e.OrganizationID]
		_, toolOK := toolIDs[e.ToolID]
		if !orgOK || !toolOK {
			report.DanglingOrgEdges++
			h.logger.Warn("dangling organization tool edge",
				"org_id", e.OrganizationID,
				"tool_id", e.ToolID,
				"missing_org", !orgOK,
				"missing_tool", !toolOK,
			)
		}
	}
	for _, e := range userEdges {
		_, userOK := userIDs[e.UserID]
		_, toolOK := toolIDs[e.ToolID]
		if !userOK || !toolOK {
			report.DanglingUserEdges++
			h.logger.Warn("dangling user tool edge",
				"user_id", e.UserID,
				"tool_id", e.ToolID,
				"missing_user", !userOK,
				"missing_tool", !toolOK,
			)
		}
	}

	return report, nil
}

func (h *Handler) saveEvent(ctx context.Context, event audit.Event) error {
	row := models.AuditEvent{
		ActorID:    event.ActorID,
		Action:     event.Action,
		TargetType: event.TargetType,
		TargetID:   event.TargetID,
	}
	if len(event.Detail) > 0 {
		detail, err := json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("marshal detail: %w", err)
		}
		row.Detail = string(detail)
	}

	if err := h.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("saving audit event: %w", err)
	}

	h.logger.Debug("recorded audit event", "action", row.Action, "actor_id", row.ActorID, "target_id", row.TargetID)
	return nil
}
